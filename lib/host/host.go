// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/factory"
	"github.com/custodia-foundation/custodia/lib/policy"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/registry"
	"github.com/custodia-foundation/custodia/lib/router"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/validator"
	"github.com/custodia-foundation/custodia/lib/venue"
	"github.com/custodia-foundation/custodia/lib/wallet"
)

// Well-known system addresses, readable ASCII byte patterns like the
// validator and policy sentinels.
var (
	AddrFactory = ref.BytesToAddress([]byte("custodia/sys/factory"))
	AddrRouter  = ref.BytesToAddress([]byte("custodia/sys/router#"))

	AddrTokenAdapter   = ref.BytesToAddress([]byte("custodia/ad/token###"))
	AddrVaultAdapter   = ref.BytesToAddress([]byte("custodia/ad/vault###"))
	AddrLendingAdapter = ref.BytesToAddress([]byte("custodia/ad/lending#"))
	AddrRewardsAdapter = ref.BytesToAddress([]byte("custodia/ad/rewards#"))
	AddrSwapAdapter    = ref.BytesToAddress([]byte("custodia/ad/swap####"))
)

// DefaultImplementation is the wallet implementation a freshly wired
// host approves and deploys.
var DefaultImplementation = ref.ImplementationIDOf("custodia/wallet/v1")

// Config wires a Host.
type Config struct {
	// Admin is the identity every applied admin operation executes
	// as. In production this is the timelock's executor address.
	// Required.
	Admin ref.Address

	// Emergency callers get the instant revocation paths on the
	// registry, policy engine, and router.
	Emergency []ref.Address

	// MaxOperators bounds the router's credential set; zero means the
	// router default.
	MaxOperators int

	Clock  clock.Clock
	Events schema.Sink
	Logger *slog.Logger
}

// Host is one fully wired platform instance.
type Host struct {
	admin ref.Address

	ledger    *state.Ledger
	contracts *Contracts
	registry  *registry.Registry
	policy    *policy.Engine
	factory   *factory.Factory
	router    *router.Router
}

// walletDirectory narrows the factory's wallet index to the router's
// executor view.
type walletDirectory struct {
	factory *factory.Factory
}

func (d walletDirectory) Wallet(addr ref.Address) (router.Executor, bool) {
	w, ok := d.factory.Wallet(addr)
	if !ok {
		return nil, false
	}
	return w, true
}

// New assembles a platform: ledger, contract table, registry, policy
// engine, factory, and router, with the builtin adapters bound at
// their well-known addresses and the builtin validators bound into
// the policy engine. The result carries no trust: no adapters or
// targets are registered and no policy slots exist until admin
// operations (genesis or timelock) add them.
func New(cfg Config) (*Host, error) {
	if cfg.Admin.IsZero() {
		return nil, errors.New("host: Config.Admin is required")
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

	ledger := state.NewLedger()
	contracts := NewContracts()

	contracts.BindAdapter(AddrTokenAdapter, venue.TokenAdapter{})
	contracts.BindAdapter(AddrVaultAdapter, venue.VaultAdapter{Bindings: contracts})
	contracts.BindAdapter(AddrLendingAdapter, venue.LendingAdapter{Bindings: contracts})
	contracts.BindAdapter(AddrRewardsAdapter, venue.RewardsAdapter{Bindings: contracts})
	contracts.BindAdapter(AddrSwapAdapter, venue.SwapAdapter{Bindings: contracts})

	reg, err := registry.New(registry.Config{
		Admin:     cfg.Admin,
		Emergency: cfg.Emergency,
		Code:      contracts,
		Events:    cfg.Events,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	pol, err := policy.New(policy.Config{
		Admin:     cfg.Admin,
		Emergency: cfg.Emergency,
		Events:    cfg.Events,
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	fac, err := factory.New(factory.Config{
		Address:        AddrFactory,
		Admin:          cfg.Admin,
		Ledger:         ledger,
		Registry:       reg,
		Policy:         pol,
		Adapters:       contracts,
		Router:         AddrRouter,
		Implementation: DefaultImplementation,
		Clock:          cfg.Clock,
		Events:         cfg.Events,
		Logger:         cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	rtr, err := router.New(router.Config{
		Address:      AddrRouter,
		Admin:        cfg.Admin,
		Emergency:    cfg.Emergency,
		Wallets:      walletDirectory{factory: fac},
		Ledger:       ledger,
		MaxOperators: cfg.MaxOperators,
		Events:       cfg.Events,
		Logger:       cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	pol.BindValidator(validator.AddrClaimToSelf, validator.ClaimToSelf{})
	pol.BindValidator(validator.AddrSwapToBase, validator.SwapToBase{Assets: fac})
	contracts.MarkCode(validator.AddrClaimToSelf, validator.AddrSwapToBase, AddrRouter)

	return &Host{
		admin:     cfg.Admin,
		ledger:    ledger,
		contracts: contracts,
		registry:  reg,
		policy:    pol,
		factory:   fac,
		router:    rtr,
	}, nil
}

// Apply executes one admin operation with the host's admin identity.
// This is the timelock's application hook; genesis seeding uses the
// same path.
func (h *Host) Apply(op schema.AdminOp) error {
	if err := op.Validate(); err != nil {
		return err
	}
	switch op.Kind {
	case schema.OpRegisterAdapter:
		return h.registry.RegisterAdapter(h.admin, op.Adapter)
	case schema.OpUnregisterAdapter:
		return h.registry.UnregisterAdapter(h.admin, op.Adapter)
	case schema.OpRegisterTarget:
		return h.registry.RegisterTarget(h.admin, op.Target, op.Adapter)
	case schema.OpUpdateTargetAdapter:
		return h.registry.UpdateTargetAdapter(h.admin, op.Target, op.Adapter)
	case schema.OpRemoveTarget:
		return h.registry.RemoveTarget(h.admin, op.Target)
	case schema.OpAddPolicy:
		return h.policy.AddPolicy(h.admin, op.Target, op.Selector, op.Validator)
	case schema.OpRemovePolicy:
		return h.policy.RemovePolicy(h.admin, op.Target, op.Selector)
	case schema.OpAddOperator:
		return h.router.AddOperator(h.admin, op.Operator)
	case schema.OpRemoveOperator:
		return h.router.RemoveOperator(h.admin, op.Operator)
	case schema.OpApproveImplementation:
		return h.factory.ApproveImplementation(h.admin, op.Implementation)
	case schema.OpSetRouter:
		return h.factory.SetRouter(h.admin, op.Router)
	}
	return fmt.Errorf("host: unhandled op kind %q", op.Kind)
}

// Ledger returns the shared journaled state.
func (h *Host) Ledger() *state.Ledger { return h.ledger }

// Contracts returns the deployment table.
func (h *Host) Contracts() *Contracts { return h.contracts }

// Registry returns the adapter/target registry.
func (h *Host) Registry() *registry.Registry { return h.registry }

// Policy returns the policy engine.
func (h *Host) Policy() *policy.Engine { return h.policy }

// Factory returns the wallet factory.
func (h *Host) Factory() *factory.Factory { return h.factory }

// Router returns the operator execution module.
func (h *Host) Router() *router.Router { return h.router }

var _ wallet.AdapterSet = (*Contracts)(nil)
var _ registry.CodePresence = (*Contracts)(nil)
var _ venue.Bindings = (*Contracts)(nil)
