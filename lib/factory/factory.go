// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package factory deploys agent wallets at predictable addresses and
// curates the approved implementation set.
//
// Wallet addresses derive from the creation inputs (factory, owner,
// agent index, base asset, implementation) under a dedicated BLAKE3
// keyed-hash domain, so an owner can know a wallet's address — and
// fund it — before it exists. The factory is also the platform handle
// wallets execute against: it hands out the current registry, policy,
// adapter, and router wiring, and answers base-asset lookups for
// policy validators.
package factory

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/wallet"
)

// Typed failures.
var (
	ErrNotAdmin        = errors.New("factory: caller is not the admin")
	ErrZeroOwner       = errors.New("factory: owner address is zero")
	ErrZeroRouter      = errors.New("factory: router address is zero")
	ErrWalletExists    = errors.New("factory: wallet already deployed")
	ErrUnknownWallet   = errors.New("factory: no wallet at address")
	ErrAlreadyApproved = errors.New("factory: implementation already approved")
)

// walletDomainKey is the BLAKE3 keyed-hash domain for wallet address
// derivation. Zero-padded ASCII, same convention as the ref package
// domains.
var walletDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 'f', 'a', 'c', 't',
	'o', 'r', 'y', '.', 'w', 'a', 'l', 'l', 'e', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Config wires a Factory.
type Config struct {
	// Address is the factory's own address, mixed into every wallet
	// derivation.
	Address ref.Address

	// Admin is the sole caller allowed to approve implementations and
	// rotate the router. In production this is the timelock executor.
	Admin ref.Address

	// Ledger is the shared journaled state wallets run against.
	Ledger *state.Ledger

	// Registry, Policy, and Adapters are the execution wiring handed
	// to wallets. All required.
	Registry wallet.TargetRegistry
	Policy   wallet.ActionPolicy
	Adapters wallet.AdapterSet

	// Router is the initial default execution module.
	Router ref.Address

	// Implementation is the initial wallet implementation, approved
	// implicitly.
	Implementation ref.ImplementationID

	Clock  clock.Clock
	Events schema.Sink
	Logger *slog.Logger
}

// Factory deploys and indexes wallets. Safe for concurrent use.
type Factory struct {
	addr   ref.Address
	admin  ref.Address
	ledger *state.Ledger
	clock  clock.Clock
	events schema.Sink
	logger *slog.Logger

	mu          sync.RWMutex
	registry    wallet.TargetRegistry
	policy      wallet.ActionPolicy
	adapters    wallet.AdapterSet
	router      ref.Address
	defaultImpl ref.ImplementationID
	approved    map[ref.ImplementationID]bool
	wallets     map[ref.Address]*wallet.Wallet
}

// New constructs a Factory with the initial implementation approved.
func New(cfg Config) (*Factory, error) {
	if cfg.Address.IsZero() {
		return nil, errors.New("factory: Config.Address is required")
	}
	if cfg.Admin.IsZero() {
		return nil, errors.New("factory: Config.Admin is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("factory: Config.Ledger is required")
	}
	if cfg.Registry == nil || cfg.Policy == nil || cfg.Adapters == nil {
		return nil, errors.New("factory: Registry, Policy, and Adapters are required")
	}
	if cfg.Router.IsZero() {
		return nil, ErrZeroRouter
	}
	if cfg.Implementation.IsZero() {
		return nil, errors.New("factory: Config.Implementation is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Events == nil {
		cfg.Events = schema.DiscardSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Factory{
		addr:        cfg.Address,
		admin:       cfg.Admin,
		ledger:      cfg.Ledger,
		clock:       cfg.Clock,
		events:      cfg.Events,
		logger:      cfg.Logger,
		registry:    cfg.Registry,
		policy:      cfg.Policy,
		adapters:    cfg.Adapters,
		router:      cfg.Router,
		defaultImpl: cfg.Implementation,
		approved:    map[ref.ImplementationID]bool{cfg.Implementation: true},
		wallets:     make(map[ref.Address]*wallet.Wallet),
	}, nil
}

// Address returns the factory's own address.
func (f *Factory) Address() ref.Address { return f.addr }

// Wiring implements wallet.Platform with the current pointers.
func (f *Factory) Wiring() wallet.Wiring {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return wallet.Wiring{
		Registry:      f.registry,
		Policy:        f.policy,
		Adapters:      f.adapters,
		DefaultModule: f.router,
	}
}

// IsApprovedImplementation implements wallet.Platform.
func (f *Factory) IsApprovedImplementation(impl ref.ImplementationID) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.approved[impl]
}

// ApproveImplementation sanctions an implementation as a creation and
// upgrade target. Admin only.
func (f *Factory) ApproveImplementation(caller ref.Address, impl ref.ImplementationID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if impl.IsZero() {
		return errors.New("factory: implementation id is zero")
	}
	if f.approved[impl] {
		return fmt.Errorf("%w: %s", ErrAlreadyApproved, impl)
	}
	f.approved[impl] = true
	f.events.Emit(schema.ImplementationApproved{Implementation: impl})
	f.logger.Info("implementation approved", "implementation", impl)
	return nil
}

// SetDefaultImplementation switches the implementation new wallets
// are created with. The implementation must already be approved.
// Admin only; existing wallets are unaffected until they upgrade.
func (f *Factory) SetDefaultImplementation(caller ref.Address, impl ref.ImplementationID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if !f.approved[impl] {
		return fmt.Errorf("factory: implementation %s not approved", impl)
	}
	f.defaultImpl = impl
	return nil
}

// SetRouter rotates the default execution module. Admin only.
// Existing wallets keep their captured wiring until the owner calls
// SyncFromFactory.
func (f *Factory) SetRouter(caller, router ref.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if caller != f.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if router.IsZero() {
		return ErrZeroRouter
	}
	previous := f.router
	f.router = router
	f.events.Emit(schema.RouterUpdated{PreviousRouter: previous, NewRouter: router})
	f.logger.Info("router rotated", "previous", previous, "new", router)
	return nil
}

// CurrentRouter returns the default execution module address.
func (f *Factory) CurrentRouter() ref.Address {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.router
}

// PredictAddress returns the address a wallet would be deployed at
// for the given creation inputs and the current default
// implementation.
func (f *Factory) PredictAddress(owner ref.Address, agentIndex uint32, baseAsset ref.Address) ref.Address {
	f.mu.RLock()
	impl := f.defaultImpl
	f.mu.RUnlock()
	return deriveWalletAddress(f.addr, owner, agentIndex, baseAsset, impl)
}

// CreateWallet deploys and initializes a wallet for the owner.
// Creation is permissionless; the derived address commits to every
// input, so two creations with the same inputs collide with
// ErrWalletExists. The owner key is optional and enables the signed
// execution path.
func (f *Factory) CreateWallet(owner ref.Address, ownerKey ed25519.PublicKey, agentIndex uint32, baseAsset ref.Address) (*wallet.Wallet, error) {
	if owner.IsZero() {
		return nil, ErrZeroOwner
	}

	f.mu.Lock()
	impl := f.defaultImpl
	addr := deriveWalletAddress(f.addr, owner, agentIndex, baseAsset, impl)
	if _, exists := f.wallets[addr]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, addr)
	}
	f.mu.Unlock()

	w, err := wallet.New(wallet.Config{
		Address:  addr,
		Ledger:   f.ledger,
		Platform: f,
		Clock:    f.clock,
		Events:   f.events,
		Logger:   f.logger,
	})
	if err != nil {
		return nil, err
	}
	if err := w.Init(owner, ownerKey, agentIndex, baseAsset, impl); err != nil {
		return nil, err
	}

	f.mu.Lock()
	if _, exists := f.wallets[addr]; exists {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrWalletExists, addr)
	}
	f.wallets[addr] = w
	f.mu.Unlock()

	f.events.Emit(schema.WalletCreated{
		Wallet:         addr,
		Owner:          owner,
		AgentIndex:     agentIndex,
		BaseAsset:      baseAsset,
		Implementation: impl,
	})
	f.logger.Info("wallet created",
		"wallet", addr, "owner", owner, "agent_index", agentIndex, "base_asset", baseAsset)
	return w, nil
}

// Wallet returns the deployed wallet at the address.
func (f *Factory) Wallet(addr ref.Address) (*wallet.Wallet, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	w, ok := f.wallets[addr]
	return w, ok
}

// BaseAsset reports the base asset of a deployed wallet. Satisfies
// the policy validators' base-asset lookup.
func (f *Factory) BaseAsset(addr ref.Address) (ref.Address, bool) {
	w, ok := f.Wallet(addr)
	if !ok {
		return ref.Address{}, false
	}
	return w.BaseAsset(), true
}

func deriveWalletAddress(factory, owner ref.Address, agentIndex uint32, baseAsset ref.Address, impl ref.ImplementationID) ref.Address {
	hasher, err := blake3.NewKeyed(walletDomainKey[:])
	if err != nil {
		panic("factory: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(factory[:])
	hasher.Write(owner[:])
	var index [4]byte
	binary.BigEndian.PutUint32(index[:], agentIndex)
	hasher.Write(index[:])
	hasher.Write(baseAsset[:])
	hasher.Write(impl[:])
	return ref.BytesToAddress(hasher.Sum(nil))
}
