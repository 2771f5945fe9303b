// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/registry"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/venue"
)

// Typed failures of the wallet control and execution surface.
var (
	ErrNotOwner           = errors.New("wallet: caller is not the owner")
	ErrNotModule          = errors.New("wallet: caller is not an installed module")
	ErrAlreadyInitialized = errors.New("wallet: already initialized")
	ErrNotInitialized     = errors.New("wallet: not initialized")
	ErrZeroOwner          = errors.New("wallet: owner address is zero")
	ErrZeroModule         = errors.New("wallet: module address is zero")
	ErrModuleInstalled    = errors.New("wallet: module already installed")
	ErrModuleNotInstalled = errors.New("wallet: module not installed")
	ErrDefaultModule      = errors.New("wallet: default module cannot be uninstalled")
	ErrTargetVetoed       = errors.New("wallet: target blocked by owner")
	ErrAdapterVetoed      = errors.New("wallet: adapter blocked by owner")
	ErrUnboundAdapter     = errors.New("wallet: no implementation bound for adapter")
	ErrNotApproved        = errors.New("wallet: implementation not approved")
	ErrOwnerKeyMismatch   = errors.New("wallet: owner key does not derive owner address")
)

// TargetRegistry reports whether a target is currently actionable and
// which adapter serves it.
type TargetRegistry interface {
	IsValidTarget(target ref.Address) (bool, ref.Address)
}

// ActionPolicy validates one proposed call against the policy table.
type ActionPolicy interface {
	ValidateAction(caller, target ref.Address, value *big.Int, data []byte) error
}

// AdapterSet resolves adapter addresses to their implementations.
type AdapterSet interface {
	Adapter(adapter ref.Address) (venue.Adapter, bool)
}

// Wiring is the platform surface a wallet executes against. Wallets
// capture it at initialization and refresh it only on an explicit
// owner-driven sync.
type Wiring struct {
	Registry      TargetRegistry
	Policy        ActionPolicy
	Adapters      AdapterSet
	DefaultModule ref.Address
}

// Platform is the factory-side view a wallet depends on: the current
// wiring and the approved implementation set.
type Platform interface {
	Wiring() Wiring
	IsApprovedImplementation(impl ref.ImplementationID) bool
}

// Config carries wallet dependencies. Ledger and Platform are
// required; the rest default to inert implementations.
type Config struct {
	Address  ref.Address
	Ledger   *state.Ledger
	Platform Platform
	Clock    clock.Clock
	Events   schema.Sink
	Logger   *slog.Logger
}

// Wallet is one agent wallet instance.
type Wallet struct {
	addr     ref.Address
	ledger   *state.Ledger
	platform Platform
	clock    clock.Clock
	events   schema.Sink
	logger   *slog.Logger

	mu              sync.Mutex
	initialized     bool
	owner           ref.Address
	ownerKey        ed25519.PublicKey
	agentIndex      uint32
	baseAsset       ref.Address
	implementation  ref.ImplementationID
	wiring          Wiring
	defaultModule   ref.Address
	modules         map[ref.Address]bool
	blockedAdapters map[ref.Address]bool
	blockedTargets  map[ref.Address]bool
	lastNonce       uint64
}

// New creates an uninitialized wallet shell. Funds can only move
// after Init.
func New(cfg Config) (*Wallet, error) {
	if cfg.Ledger == nil {
		return nil, errors.New("wallet: Config.Ledger is required")
	}
	if cfg.Platform == nil {
		return nil, errors.New("wallet: Config.Platform is required")
	}
	if cfg.Address.IsZero() {
		return nil, errors.New("wallet: Config.Address is required")
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
	return &Wallet{
		addr:            cfg.Address,
		ledger:          cfg.Ledger,
		platform:        cfg.Platform,
		clock:           cfg.Clock,
		events:          cfg.Events,
		logger:          cfg.Logger.With("wallet", cfg.Address),
		modules:         make(map[ref.Address]bool),
		blockedAdapters: make(map[ref.Address]bool),
		blockedTargets:  make(map[ref.Address]bool),
	}, nil
}

// Init binds the wallet to its owner and captures the platform
// wiring. It runs exactly once; any later call fails with
// ErrAlreadyInitialized regardless of arguments.
func (w *Wallet) Init(owner ref.Address, ownerKey ed25519.PublicKey, agentIndex uint32, baseAsset ref.Address, impl ref.ImplementationID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return ErrAlreadyInitialized
	}
	if owner.IsZero() {
		return ErrZeroOwner
	}
	if len(ownerKey) != 0 {
		if len(ownerKey) != ed25519.PublicKeySize {
			return fmt.Errorf("wallet: owner key is %d bytes, want %d",
				len(ownerKey), ed25519.PublicKeySize)
		}
		if ref.AddressFromPublicKey(ownerKey) != owner {
			return ErrOwnerKeyMismatch
		}
	}
	if !w.platform.IsApprovedImplementation(impl) {
		return fmt.Errorf("%w: %s", ErrNotApproved, impl)
	}

	wiring := w.platform.Wiring()
	w.initialized = true
	w.owner = owner
	w.ownerKey = ownerKey
	w.agentIndex = agentIndex
	w.baseAsset = baseAsset
	w.implementation = impl
	w.wiring = wiring
	w.defaultModule = wiring.DefaultModule
	w.modules[wiring.DefaultModule] = true
	w.logger.Debug("wallet initialized",
		"owner", owner, "agent_index", agentIndex, "base_asset", baseAsset)
	return nil
}

// Address returns the wallet's own address.
func (w *Wallet) Address() ref.Address { return w.addr }

// Owner returns the wallet owner.
func (w *Wallet) Owner() ref.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.owner
}

// BaseAsset returns the asset swaps must settle into.
func (w *Wallet) BaseAsset() ref.Address {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.baseAsset
}

// AgentIndex returns the owner-scoped agent index.
func (w *Wallet) AgentIndex() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.agentIndex
}

// Implementation returns the current implementation identifier.
func (w *Wallet) Implementation() ref.ImplementationID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.implementation
}

// IsModule reports whether the address is an installed execution
// module.
func (w *Wallet) IsModule(module ref.Address) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modules[module]
}

func (w *Wallet) requireOwner(caller ref.Address) error {
	if !w.initialized {
		return ErrNotInitialized
	}
	if caller != w.owner {
		return fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}
	return nil
}

// Withdraw moves tokens to an owner-chosen recipient. A nil amount
// withdraws the full balance. Only the owner may call this; it is the
// one path that bypasses the registry and policy gates.
func (w *Wallet) Withdraw(caller, token, recipient ref.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil {
		amount = w.ledger.BalanceOf(token, w.addr)
	}
	if err := w.ledger.Transfer(token, w.addr, recipient, amount); err != nil {
		return err
	}
	w.events.Emit(schema.Withdrawal{Wallet: w.addr, Token: token, Recipient: recipient, Amount: amount})
	w.logger.Info("withdrawal", "token", token, "recipient", recipient, "amount", amount)
	return nil
}

// WithdrawNative moves native asset to an owner-chosen recipient. A
// nil amount withdraws the full balance.
func (w *Wallet) WithdrawNative(caller, recipient ref.Address, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil {
		amount = w.ledger.NativeBalance(w.addr)
	}
	if err := w.ledger.TransferNative(w.addr, recipient, amount); err != nil {
		return err
	}
	w.events.Emit(schema.Withdrawal{Wallet: w.addr, Recipient: recipient, Amount: amount})
	w.logger.Info("native withdrawal", "recipient", recipient, "amount", amount)
	return nil
}

// InstallModule grants a module the right to call ExecuteFromModule.
func (w *Wallet) InstallModule(caller, module ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if module.IsZero() {
		return ErrZeroModule
	}
	if w.modules[module] {
		return fmt.Errorf("%w: %s", ErrModuleInstalled, module)
	}
	w.modules[module] = true
	w.events.Emit(schema.ModuleInstalled{Wallet: w.addr, Module: module})
	return nil
}

// UninstallModule revokes a module. The default module is permanent.
func (w *Wallet) UninstallModule(caller, module ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if module == w.defaultModule {
		return ErrDefaultModule
	}
	if !w.modules[module] {
		return fmt.Errorf("%w: %s", ErrModuleNotInstalled, module)
	}
	delete(w.modules, module)
	w.events.Emit(schema.ModuleUninstalled{Wallet: w.addr, Module: module})
	return nil
}

// BlockAdapter records an owner veto against an adapter. Blocked
// adapters fail the pipeline before policy validation. Idempotent.
func (w *Wallet) BlockAdapter(caller, adapter ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if !w.blockedAdapters[adapter] {
		w.blockedAdapters[adapter] = true
		w.events.Emit(schema.AdapterBlocked{Wallet: w.addr, Adapter: adapter})
	}
	return nil
}

// UnblockAdapter lifts an adapter veto. Idempotent.
func (w *Wallet) UnblockAdapter(caller, adapter ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if w.blockedAdapters[adapter] {
		delete(w.blockedAdapters, adapter)
		w.events.Emit(schema.AdapterUnblocked{Wallet: w.addr, Adapter: adapter})
	}
	return nil
}

// BlockTarget records an owner veto against a target. Idempotent.
func (w *Wallet) BlockTarget(caller, target ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if !w.blockedTargets[target] {
		w.blockedTargets[target] = true
		w.events.Emit(schema.TargetBlocked{Wallet: w.addr, Target: target})
	}
	return nil
}

// UnblockTarget lifts a target veto. Idempotent.
func (w *Wallet) UnblockTarget(caller, target ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if w.blockedTargets[target] {
		delete(w.blockedTargets, target)
		w.events.Emit(schema.TargetUnblocked{Wallet: w.addr, Target: target})
	}
	return nil
}

// UpgradeTo swaps the wallet implementation. Owner-only, and the new
// implementation must be in the factory's approved set. Balances,
// modules, and blocklists carry over unchanged.
func (w *Wallet) UpgradeTo(caller ref.Address, impl ref.ImplementationID) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	if !w.platform.IsApprovedImplementation(impl) {
		return fmt.Errorf("%w: %s", ErrNotApproved, impl)
	}
	previous := w.implementation
	w.implementation = impl
	w.events.Emit(schema.WalletUpgraded{
		Wallet:                 w.addr,
		PreviousImplementation: previous,
		NewImplementation:      impl,
	})
	w.logger.Info("implementation upgraded", "previous", previous, "new", impl)
	return nil
}

// SyncFromFactory refreshes the wallet's captured wiring from the
// platform after an admin rotation. The new default module is
// installed; previously installed modules are left alone.
func (w *Wallet) SyncFromFactory(caller ref.Address) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.requireOwner(caller); err != nil {
		return err
	}
	wiring := w.platform.Wiring()
	w.wiring = wiring
	if !w.modules[wiring.DefaultModule] {
		w.modules[wiring.DefaultModule] = true
		w.events.Emit(schema.ModuleInstalled{Wallet: w.addr, Module: wiring.DefaultModule})
	}
	w.defaultModule = wiring.DefaultModule
	w.logger.Debug("wiring synced", "default_module", wiring.DefaultModule)
	return nil
}

// ExecuteFromModule runs one gated call on behalf of an installed
// module. On any failure the ledger is restored to its state before
// the call; partial venue effects never survive.
func (w *Wallet) ExecuteFromModule(module ref.Address, call venue.Call) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.initialized {
		return ErrNotInitialized
	}
	if !w.modules[module] {
		return fmt.Errorf("%w: %s", ErrNotModule, module)
	}
	return w.executeLocked(call)
}

// executeLocked is the shared pipeline behind module and owner-signed
// execution. Check order: owner vetoes, registry, policy, dispatch.
func (w *Wallet) executeLocked(call venue.Call) error {
	if w.blockedTargets[call.Target] {
		return fmt.Errorf("%w: %s", ErrTargetVetoed, call.Target)
	}
	valid, adapter := w.wiring.Registry.IsValidTarget(call.Target)
	if !valid {
		return fmt.Errorf("%w: %s", registry.ErrTargetNotRegistered, call.Target)
	}
	if w.blockedAdapters[adapter] {
		return fmt.Errorf("%w: %s", ErrAdapterVetoed, adapter)
	}
	value := call.Value
	if value == nil {
		value = new(big.Int)
	}
	if err := w.wiring.Policy.ValidateAction(w.addr, call.Target, value, call.Data); err != nil {
		return err
	}

	snap := w.ledger.Snapshot()
	err := w.dispatch(adapter, call.Target, value, call.Data)
	if err != nil {
		w.ledger.RevertToSnapshot(snap)
		w.logger.Debug("action reverted", "target", call.Target, "error", err)
		return err
	}
	return nil
}

func (w *Wallet) dispatch(adapter, target ref.Address, value *big.Int, data []byte) error {
	if len(data) == 0 {
		return w.ledger.TransferNative(w.addr, target, value)
	}
	impl, ok := w.wiring.Adapters.Adapter(adapter)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnboundAdapter, adapter)
	}
	if value.Sign() > 0 {
		if err := w.ledger.TransferNative(w.addr, target, value); err != nil {
			return err
		}
	}
	return impl.Execute(&venue.Exec{Ledger: w.ledger, Wallet: w.addr}, target, value, data)
}
