// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package router implements the operator execution module: the only
// path by which operators act on wallets.
//
// The router holds the operator credential set (bounded, admin-grown,
// emergency-shrunk) and forwards calls into each wallet's gated
// pipeline. It adds exactly one property of its own: batch atomicity.
// A multi-leg batch executes against a ledger snapshot and either
// every leg lands or none do.
package router

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/venue"
)

// MaxBatch is the hard cap on legs per batch.
const MaxBatch = 20

// DefaultMaxOperators bounds the credential set when the config does
// not say otherwise.
const DefaultMaxOperators = 10

// Typed failures.
var (
	ErrNotAdmin         = errors.New("router: caller is not the admin")
	ErrNotEmergency     = errors.New("router: caller holds neither the admin nor the emergency role")
	ErrNotOperator      = errors.New("router: caller is not an operator")
	ErrZeroOperator     = errors.New("router: operator address is zero")
	ErrOperatorExists   = errors.New("router: operator already added")
	ErrOperatorNotFound = errors.New("router: operator not found")
	ErrTooManyOperators = errors.New("router: operator set is full")
	ErrUnknownWallet    = errors.New("router: no wallet at address")
	ErrEmptyBatch       = errors.New("router: batch is empty")
	ErrBatchTooLarge    = errors.New("router: batch exceeds maximum size")
)

// Executor is the wallet surface the router drives.
type Executor interface {
	ExecuteFromModule(module ref.Address, call venue.Call) error
}

// Directory resolves wallet addresses. The factory implements this.
type Directory interface {
	Wallet(addr ref.Address) (Executor, bool)
}

// Config wires a Router.
type Config struct {
	// Address is the router's module address, the identity it
	// presents to wallets.
	Address ref.Address

	// Admin is the sole caller allowed to add operators. In
	// production this is the timelock executor.
	Admin ref.Address

	// Emergency callers may remove operators instantly.
	Emergency []ref.Address

	// Wallets resolves target wallets. Required.
	Wallets Directory

	// Ledger is snapshotted around every execution. Required.
	Ledger *state.Ledger

	// MaxOperators bounds the credential set; zero means
	// DefaultMaxOperators.
	MaxOperators int

	// Events receives a structured event per mutation. Nil discards.
	Events schema.Sink

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger
}

// Router is the operator execution module. Safe for concurrent use;
// executions serialize on the router so batch snapshots never
// interleave.
type Router struct {
	addr         ref.Address
	admin        ref.Address
	emergency    map[ref.Address]bool
	wallets      Directory
	ledger       *state.Ledger
	maxOperators int
	events       schema.Sink
	logger       *slog.Logger

	mu        sync.Mutex
	operators map[ref.Address]bool
}

// New constructs a Router with an empty operator set.
func New(cfg Config) (*Router, error) {
	if cfg.Address.IsZero() {
		return nil, errors.New("router: Config.Address is required")
	}
	if cfg.Admin.IsZero() {
		return nil, errors.New("router: Config.Admin is required")
	}
	if cfg.Wallets == nil {
		return nil, errors.New("router: Config.Wallets is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("router: Config.Ledger is required")
	}
	if cfg.MaxOperators == 0 {
		cfg.MaxOperators = DefaultMaxOperators
	}
	if cfg.Events == nil {
		cfg.Events = schema.DiscardSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	emergency := make(map[ref.Address]bool, len(cfg.Emergency))
	for _, addr := range cfg.Emergency {
		emergency[addr] = true
	}
	return &Router{
		addr:         cfg.Address,
		admin:        cfg.Admin,
		emergency:    emergency,
		wallets:      cfg.Wallets,
		ledger:       cfg.Ledger,
		maxOperators: cfg.MaxOperators,
		events:       cfg.Events,
		logger:       cfg.Logger,
		operators:    make(map[ref.Address]bool),
	}, nil
}

// Address returns the router's module address.
func (r *Router) Address() ref.Address { return r.addr }

// AddOperator grants an operator credential. Admin only; the set is
// bounded.
func (r *Router) AddOperator(caller, operator ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if operator.IsZero() {
		return ErrZeroOperator
	}
	if r.operators[operator] {
		return fmt.Errorf("%w: %s", ErrOperatorExists, operator)
	}
	if len(r.operators) >= r.maxOperators {
		return fmt.Errorf("%w: %d operators", ErrTooManyOperators, len(r.operators))
	}
	r.operators[operator] = true
	r.events.Emit(schema.OperatorAdded{Operator: operator, Count: len(r.operators)})
	r.logger.Info("operator added", "operator", operator, "count", len(r.operators))
	return nil
}

// RemoveOperator revokes an operator credential. Admin or emergency;
// takes effect on the next execution attempt.
func (r *Router) RemoveOperator(caller, operator ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if caller != r.admin && !r.emergency[caller] {
		return fmt.Errorf("%w: %s", ErrNotEmergency, caller)
	}
	if !r.operators[operator] {
		return fmt.Errorf("%w: %s", ErrOperatorNotFound, operator)
	}
	delete(r.operators, operator)
	r.events.Emit(schema.OperatorRemoved{Operator: operator, Count: len(r.operators)})
	r.logger.Info("operator removed", "operator", operator, "count", len(r.operators))
	return nil
}

// IsOperator reports whether the address holds an operator
// credential.
func (r *Router) IsOperator(addr ref.Address) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.operators[addr]
}

// ExecuteAction runs one operator call against a wallet's gated
// pipeline.
func (r *Router) ExecuteAction(caller, walletAddr ref.Address, call venue.Call) error {
	return r.execute(caller, walletAddr, []venue.Call{call})
}

// ExecuteActions runs an atomic batch of up to MaxBatch calls against
// one wallet. If any leg fails, every prior leg's effects are rolled
// back and the leg's error is returned with its index.
func (r *Router) ExecuteActions(caller, walletAddr ref.Address, calls []venue.Call) error {
	if len(calls) == 0 {
		return ErrEmptyBatch
	}
	if len(calls) > MaxBatch {
		return fmt.Errorf("%w: %d legs, max %d", ErrBatchTooLarge, len(calls), MaxBatch)
	}
	return r.execute(caller, walletAddr, calls)
}

func (r *Router) execute(caller, walletAddr ref.Address, calls []venue.Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.operators[caller] {
		return fmt.Errorf("%w: %s", ErrNotOperator, caller)
	}
	w, ok := r.wallets.Wallet(walletAddr)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, walletAddr)
	}

	snap := r.ledger.Snapshot()
	for i, call := range calls {
		if err := w.ExecuteFromModule(r.addr, call); err != nil {
			r.ledger.RevertToSnapshot(snap)
			r.logger.Debug("batch reverted",
				"wallet", walletAddr, "operator", caller, "leg", i, "error", err)
			if len(calls) > 1 {
				return fmt.Errorf("batch leg %d of %d: %w", i, len(calls), err)
			}
			return err
		}
	}
	for i, call := range calls {
		// The legs already executed, so the selector parses.
		selector, _ := calldata.SelectorFrom(call.Data)
		r.events.Emit(schema.ActionExecuted{
			Wallet:     walletAddr,
			Operator:   caller,
			Target:     call.Target,
			Selector:   selector,
			Value:      call.Value,
			BatchIndex: i,
			BatchSize:  len(calls),
		})
	}
	return nil
}
