// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package factory_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"testing"

	"github.com/custodia-foundation/custodia/lib/factory"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/venue"
	"github.com/custodia-foundation/custodia/lib/wallet"
)

var (
	factoryAddr = ref.BytesToAddress([]byte("factory"))
	admin       = ref.BytesToAddress([]byte("admin"))
	routerAddr  = ref.BytesToAddress([]byte("router"))
	baseAsset   = ref.BytesToAddress([]byte("usdc"))
	implV1      = ref.ImplementationIDOf("agent-wallet/v1")
	implV2      = ref.ImplementationIDOf("agent-wallet/v2")
)

type allowAllRegistry struct{}

func (allowAllRegistry) IsValidTarget(ref.Address) (bool, ref.Address) {
	return true, ref.BytesToAddress([]byte("adapter"))
}

type allowAllPolicy struct{}

func (allowAllPolicy) ValidateAction(_, _ ref.Address, _ *big.Int, _ []byte) error { return nil }

type noAdapters struct{}

func (noAdapters) Adapter(ref.Address) (venue.Adapter, bool) { return nil, false }

func newFactory(t *testing.T) *factory.Factory {
	t.Helper()
	f, err := factory.New(factory.Config{
		Address:        factoryAddr,
		Admin:          admin,
		Ledger:         state.NewLedger(),
		Registry:       allowAllRegistry{},
		Policy:         allowAllPolicy{},
		Adapters:       noAdapters{},
		Router:         routerAddr,
		Implementation: implV1,
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	return f
}

func ownerKey(t *testing.T) (ref.Address, ed25519.PublicKey) {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return ref.AddressFromPublicKey(pub), pub
}

func TestPredictAddressMatchesCreate(t *testing.T) {
	f := newFactory(t)
	owner, pub := ownerKey(t)

	predicted := f.PredictAddress(owner, 3, baseAsset)
	w, err := f.CreateWallet(owner, pub, 3, baseAsset)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Address() != predicted {
		t.Fatalf("address = %s, predicted %s", w.Address(), predicted)
	}
	if got, ok := f.Wallet(predicted); !ok || got != w {
		t.Fatal("wallet not indexed at predicted address")
	}
}

func TestCreateWalletRejectsDuplicates(t *testing.T) {
	f := newFactory(t)
	owner, pub := ownerKey(t)

	if _, err := f.CreateWallet(owner, pub, 0, baseAsset); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.CreateWallet(owner, pub, 0, baseAsset); !errors.Is(err, factory.ErrWalletExists) {
		t.Fatalf("duplicate create = %v, want ErrWalletExists", err)
	}

	// A different agent index is a different wallet.
	if _, err := f.CreateWallet(owner, pub, 1, baseAsset); err != nil {
		t.Fatalf("create second agent: %v", err)
	}
}

func TestDerivationCommitsToEveryInput(t *testing.T) {
	f := newFactory(t)
	owner, _ := ownerKey(t)
	other, _ := ownerKey(t)

	base := f.PredictAddress(owner, 0, baseAsset)
	if f.PredictAddress(other, 0, baseAsset) == base {
		t.Fatal("owner not mixed into derivation")
	}
	if f.PredictAddress(owner, 1, baseAsset) == base {
		t.Fatal("agent index not mixed into derivation")
	}
	if f.PredictAddress(owner, 0, ref.BytesToAddress([]byte("weth"))) == base {
		t.Fatal("base asset not mixed into derivation")
	}
}

func TestApproveImplementationAdminOnly(t *testing.T) {
	f := newFactory(t)
	stranger := ref.BytesToAddress([]byte("stranger"))

	if err := f.ApproveImplementation(stranger, implV2); !errors.Is(err, factory.ErrNotAdmin) {
		t.Fatalf("stranger approve = %v, want ErrNotAdmin", err)
	}
	if f.IsApprovedImplementation(implV2) {
		t.Fatal("implementation approved by stranger")
	}
	if err := f.ApproveImplementation(admin, implV2); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !f.IsApprovedImplementation(implV2) {
		t.Fatal("implementation not approved")
	}
	if err := f.ApproveImplementation(admin, implV2); !errors.Is(err, factory.ErrAlreadyApproved) {
		t.Fatalf("double approve = %v, want ErrAlreadyApproved", err)
	}
}

func TestSetDefaultImplementationRequiresApproval(t *testing.T) {
	f := newFactory(t)
	if err := f.SetDefaultImplementation(admin, implV2); err == nil {
		t.Fatal("unapproved default accepted")
	}
	if err := f.ApproveImplementation(admin, implV2); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := f.SetDefaultImplementation(admin, implV2); err != nil {
		t.Fatalf("set default: %v", err)
	}

	// New wallets now use the new implementation; derivation changes.
	owner, pub := ownerKey(t)
	w, err := f.CreateWallet(owner, pub, 0, baseAsset)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Implementation() != implV2 {
		t.Fatalf("implementation = %s, want %s", w.Implementation(), implV2)
	}
}

func TestSetRouterRotatesWiring(t *testing.T) {
	f := newFactory(t)
	newRouter := ref.BytesToAddress([]byte("router-v2"))

	if err := f.SetRouter(ref.BytesToAddress([]byte("stranger")), newRouter); !errors.Is(err, factory.ErrNotAdmin) {
		t.Fatalf("stranger rotate = %v, want ErrNotAdmin", err)
	}
	if err := f.SetRouter(admin, newRouter); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if got := f.CurrentRouter(); got != newRouter {
		t.Fatalf("router = %s, want %s", got, newRouter)
	}
	if got := f.Wiring().DefaultModule; got != newRouter {
		t.Fatalf("wiring default module = %s, want %s", got, newRouter)
	}
}

func TestBaseAssetLookup(t *testing.T) {
	f := newFactory(t)
	owner, pub := ownerKey(t)
	w, err := f.CreateWallet(owner, pub, 0, baseAsset)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got, ok := f.BaseAsset(w.Address()); !ok || got != baseAsset {
		t.Fatalf("base asset = %s, %v; want %s, true", got, ok, baseAsset)
	}
	if _, ok := f.BaseAsset(ref.BytesToAddress([]byte("nobody"))); ok {
		t.Fatal("base asset reported for unknown wallet")
	}
}

var _ wallet.Platform = (*factory.Factory)(nil)
