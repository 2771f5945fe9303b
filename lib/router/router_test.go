// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package router_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/factory"
	"github.com/custodia-foundation/custodia/lib/policy"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/registry"
	"github.com/custodia-foundation/custodia/lib/router"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/venue"
	"github.com/custodia-foundation/custodia/lib/venue/venuetest"
)

var (
	admin        = ref.BytesToAddress([]byte("admin"))
	emergency    = ref.BytesToAddress([]byte("guardian"))
	operator     = ref.BytesToAddress([]byte("operator"))
	stranger     = ref.BytesToAddress([]byte("stranger"))
	routerAddr   = ref.BytesToAddress([]byte("router"))
	factoryAddr  = ref.BytesToAddress([]byte("factory"))
	adapterVault = ref.BytesToAddress([]byte("adapter-vault"))
	adapterPool  = ref.BytesToAddress([]byte("adapter-pool"))
	tokenAddr    = ref.BytesToAddress([]byte("usdc"))
	implV1       = ref.ImplementationIDOf("agent-wallet/v1")
)

type codeSet map[ref.Address]bool

func (c codeSet) HasCode(addr ref.Address) bool { return c[addr] }

type bindingMap map[ref.Address]any

func (m bindingMap) Venue(target ref.Address) (any, bool) {
	v, ok := m[target]
	return v, ok
}

type adapterMap map[ref.Address]venue.Adapter

func (m adapterMap) Adapter(addr ref.Address) (venue.Adapter, bool) {
	a, ok := m[addr]
	return a, ok
}

type directory struct{ f *factory.Factory }

func (d directory) Wallet(addr ref.Address) (router.Executor, bool) {
	w, ok := d.f.Wallet(addr)
	if !ok {
		return nil, false
	}
	return w, true
}

type captureSink struct{ events []schema.Event }

func (s *captureSink) Emit(e schema.Event) { s.events = append(s.events, e) }

type fixture struct {
	ledger *state.Ledger
	policy *policy.Engine
	router *router.Router
	sink   *captureSink

	wallet ref.Address
	vault  *venuetest.Vault
	pool   *venuetest.Pool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ledger: state.NewLedger(), sink: &captureSink{}}

	f.vault = &venuetest.Vault{Addr: ref.BytesToAddress([]byte("vault")), Asset: tokenAddr}
	f.pool = &venuetest.Pool{Addr: ref.BytesToAddress([]byte("pool"))}
	code := codeSet{adapterVault: true, adapterPool: true, f.vault.Addr: true, f.pool.Addr: true}

	reg, err := registry.New(registry.Config{Admin: admin, Emergency: []ref.Address{emergency}, Code: code})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	for _, pair := range []struct{ adapter, target ref.Address }{
		{adapterVault, f.vault.Addr},
		{adapterPool, f.pool.Addr},
	} {
		if err := reg.RegisterAdapter(admin, pair.adapter); err != nil {
			t.Fatalf("register adapter: %v", err)
		}
		if err := reg.RegisterTarget(admin, pair.target, pair.adapter); err != nil {
			t.Fatalf("register target: %v", err)
		}
	}

	f.policy, err = policy.New(policy.Config{Admin: admin, Emergency: []ref.Address{emergency}})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	if err := f.policy.AddPolicy(admin, f.vault.Addr, calldata.SelectorVaultDeposit, policy.SentinelAllowAll); err != nil {
		t.Fatalf("add policy: %v", err)
	}
	if err := f.policy.AddPolicy(admin, f.vault.Addr, calldata.SelectorVaultRedeem, policy.SentinelAllowAll); err != nil {
		t.Fatalf("add policy: %v", err)
	}

	binds := bindingMap{f.vault.Addr: f.vault, f.pool.Addr: f.pool}
	adapters := adapterMap{
		adapterVault: venue.VaultAdapter{Bindings: binds},
		adapterPool:  venue.LendingAdapter{Bindings: binds},
	}

	fac, err := factory.New(factory.Config{
		Address:        factoryAddr,
		Admin:          admin,
		Ledger:         f.ledger,
		Registry:       reg,
		Policy:         f.policy,
		Adapters:       adapters,
		Router:         routerAddr,
		Implementation: implV1,
	})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	f.router, err = router.New(router.Config{
		Address:   routerAddr,
		Admin:     admin,
		Emergency: []ref.Address{emergency},
		Wallets:   directory{fac},
		Ledger:    f.ledger,
		Events:    f.sink,
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	if err := f.router.AddOperator(admin, operator); err != nil {
		t.Fatalf("add operator: %v", err)
	}

	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	owner := ref.AddressFromPublicKey(pub)
	w, err := fac.CreateWallet(owner, pub, 0, tokenAddr)
	if err != nil {
		t.Fatalf("create wallet: %v", err)
	}
	f.wallet = w.Address()
	if err := f.ledger.Mint(tokenAddr, f.wallet, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	return f
}

func deposit(f *fixture, amount int64) venue.Call {
	return venue.Call{
		Target: f.vault.Addr,
		Data: calldata.MustEncode(calldata.SelectorVaultDeposit,
			calldata.VaultDepositArgs{Asset: f.vault.Asset, Amount: big.NewInt(amount)}),
	}
}

func supply(f *fixture, amount int64) venue.Call {
	return venue.Call{
		Target: f.pool.Addr,
		Data: calldata.MustEncode(calldata.SelectorPoolSupply,
			calldata.PoolSupplyArgs{Asset: tokenAddr, Amount: big.NewInt(amount)}),
	}
}

func TestExecuteActionRequiresOperator(t *testing.T) {
	f := newFixture(t)
	err := f.router.ExecuteAction(stranger, f.wallet, deposit(f, 10))
	if !errors.Is(err, router.ErrNotOperator) {
		t.Fatalf("stranger execute = %v, want ErrNotOperator", err)
	}
}

func TestExecuteActionUnknownWallet(t *testing.T) {
	f := newFixture(t)
	err := f.router.ExecuteAction(operator, stranger, deposit(f, 10))
	if !errors.Is(err, router.ErrUnknownWallet) {
		t.Fatalf("unknown wallet = %v, want ErrUnknownWallet", err)
	}
}

func TestExecuteActionSuccess(t *testing.T) {
	f := newFixture(t)
	if err := f.router.ExecuteAction(operator, f.wallet, deposit(f, 250)); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := f.ledger.BalanceOf(f.vault.Addr, f.wallet); got.Cmp(big.NewInt(250)) != 0 {
		t.Fatalf("shares = %s, want 250", got)
	}
	// Routed value only ever moves between the wallet and the venue.
	for _, addr := range []ref.Address{routerAddr, operator} {
		if got := f.ledger.BalanceOf(tokenAddr, addr); got.Sign() != 0 {
			t.Fatalf("funds landed on %s: %s", addr, got)
		}
	}

	var seen bool
	for _, e := range f.sink.events {
		if ae, ok := e.(schema.ActionExecuted); ok {
			seen = true
			if ae.Operator != operator || ae.Target != f.vault.Addr || ae.BatchSize != 1 {
				t.Fatalf("event = %+v", ae)
			}
		}
	}
	if !seen {
		t.Fatal("no ActionExecuted event")
	}
}

func TestBatchSizeLimits(t *testing.T) {
	f := newFixture(t)
	if err := f.router.ExecuteActions(operator, f.wallet, nil); !errors.Is(err, router.ErrEmptyBatch) {
		t.Fatalf("empty batch = %v, want ErrEmptyBatch", err)
	}
	calls := make([]venue.Call, router.MaxBatch+1)
	for i := range calls {
		calls[i] = deposit(f, 1)
	}
	if err := f.router.ExecuteActions(operator, f.wallet, calls); !errors.Is(err, router.ErrBatchTooLarge) {
		t.Fatalf("oversized batch = %v, want ErrBatchTooLarge", err)
	}
}

func TestBatchIsAtomic(t *testing.T) {
	f := newFixture(t)
	// Leg 0 is allowed and succeeds; leg 1 targets the pool, which
	// has no policy slot. The whole batch must unwind.
	err := f.router.ExecuteActions(operator, f.wallet, []venue.Call{
		deposit(f, 400),
		supply(f, 100),
	})
	if !errors.Is(err, policy.ErrActionNotAllowed) {
		t.Fatalf("batch = %v, want ErrActionNotAllowed", err)
	}
	if !strings.Contains(err.Error(), "leg 1") {
		t.Fatalf("batch error does not name the failing leg: %v", err)
	}
	if got := f.ledger.BalanceOf(f.vault.Addr, f.wallet); got.Sign() != 0 {
		t.Fatalf("leg 0 shares survived revert: %s", got)
	}
	if got := f.ledger.BalanceOf(tokenAddr, f.wallet); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("wallet balance = %s, want 1000", got)
	}
}

func TestBatchSuccessEmitsPerLegEvents(t *testing.T) {
	f := newFixture(t)
	batch := []venue.Call{deposit(f, 100), deposit(f, 200)}
	if err := f.router.ExecuteActions(operator, f.wallet, batch); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if got := f.ledger.BalanceOf(f.vault.Addr, f.wallet); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("shares = %s, want 300", got)
	}
	for _, addr := range []ref.Address{routerAddr, operator} {
		if got := f.ledger.BalanceOf(tokenAddr, addr); got.Sign() != 0 {
			t.Fatalf("funds landed on %s: %s", addr, got)
		}
	}
	var legs []schema.ActionExecuted
	for _, e := range f.sink.events {
		if ae, ok := e.(schema.ActionExecuted); ok {
			legs = append(legs, ae)
		}
	}
	if len(legs) != 2 {
		t.Fatalf("got %d ActionExecuted events, want 2", len(legs))
	}
	for i, leg := range legs {
		if leg.BatchIndex != i || leg.BatchSize != 2 {
			t.Fatalf("leg %d event = index %d size %d", i, leg.BatchIndex, leg.BatchSize)
		}
	}
}

func TestOperatorLifecycle(t *testing.T) {
	f := newFixture(t)
	second := ref.BytesToAddress([]byte("operator-2"))

	if err := f.router.AddOperator(stranger, second); !errors.Is(err, router.ErrNotAdmin) {
		t.Fatalf("stranger add = %v, want ErrNotAdmin", err)
	}
	if err := f.router.AddOperator(admin, operator); !errors.Is(err, router.ErrOperatorExists) {
		t.Fatalf("duplicate add = %v, want ErrOperatorExists", err)
	}
	if err := f.router.AddOperator(admin, second); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := f.router.RemoveOperator(stranger, second); !errors.Is(err, router.ErrNotEmergency) {
		t.Fatalf("stranger remove = %v, want ErrNotEmergency", err)
	}
	if err := f.router.RemoveOperator(admin, second); err != nil {
		t.Fatalf("admin remove: %v", err)
	}
	if err := f.router.RemoveOperator(admin, second); !errors.Is(err, router.ErrOperatorNotFound) {
		t.Fatalf("double remove = %v, want ErrOperatorNotFound", err)
	}
}

func TestOperatorSetIsBounded(t *testing.T) {
	f := newFixture(t)
	// The fixture already holds one operator; DefaultMaxOperators
	// caps the set.
	for i := 1; i < router.DefaultMaxOperators; i++ {
		addr := ref.BytesToAddress([]byte{byte(i), 'o', 'p'})
		if err := f.router.AddOperator(admin, addr); err != nil {
			t.Fatalf("add operator %d: %v", i, err)
		}
	}
	overflow := ref.BytesToAddress([]byte("one-too-many"))
	if err := f.router.AddOperator(admin, overflow); !errors.Is(err, router.ErrTooManyOperators) {
		t.Fatalf("overflow add = %v, want ErrTooManyOperators", err)
	}
}

func TestEmergencyRemovalIsImmediate(t *testing.T) {
	f := newFixture(t)
	if err := f.router.ExecuteAction(operator, f.wallet, deposit(f, 10)); err != nil {
		t.Fatalf("execute before removal: %v", err)
	}
	if err := f.router.RemoveOperator(emergency, operator); err != nil {
		t.Fatalf("emergency remove: %v", err)
	}
	err := f.router.ExecuteAction(operator, f.wallet, deposit(f, 10))
	if !errors.Is(err, router.ErrNotOperator) {
		t.Fatalf("execute after removal = %v, want ErrNotOperator", err)
	}
}
