// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy implements the selector-keyed action policy: per
// (target, function selector) pair, an optional validator inspects
// the decoded call arguments before execution. Absence of an entry
// means the call is denied.
//
// The two failure modes are deliberately distinct: a missing policy
// slot fails with [ErrActionNotAllowed], a validator rejection with
// [ErrValidationFailed]. Operator backends use the difference to tell
// "this call is not configured" from "this call is malformed".
//
// The sentinel validator address [SentinelAllowAll] permits a slot
// unconditionally, for calls that move no funds by themselves (token
// approvals). Policy entries are added by the admin (timelock) and
// removed instantly by the emergency role as a kill switch.
package policy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

// Typed failures.
var (
	ErrNotAdmin         = errors.New("policy: caller is not the admin")
	ErrNotEmergency     = errors.New("policy: caller holds neither the admin nor the emergency role")
	ErrZeroTarget       = errors.New("policy: zero target address")
	ErrZeroValidator    = errors.New("policy: zero validator address (use RemovePolicy to clear)")
	ErrPolicyNotFound   = errors.New("policy: no entry for target and selector")
	ErrActionNotAllowed = errors.New("policy: action not allowed")
	ErrValidationFailed = errors.New("policy: validation failed")
	ErrUnboundValidator = errors.New("policy: validator address has no bound implementation")
)

// SentinelAllowAll is the distinguished validator address meaning
// "permit this slot without inspecting call data". The byte pattern
// is readable ASCII so the sentinel is recognizable in dumps.
var SentinelAllowAll = ref.BytesToAddress([]byte("custodia/allow-all##"))

// Validator is a predicate over a proposed call. Implementations are
// stateless: they decode data and accept (nil) or reject (error with
// the domain reason). They must not mutate anything.
type Validator interface {
	Validate(caller, target ref.Address, value *big.Int, data []byte) error
}

type slot struct {
	target   ref.Address
	selector ref.Selector
}

// Config wires an Engine.
type Config struct {
	// Admin is the sole caller allowed to add policy entries.
	Admin ref.Address

	// Emergency callers may remove entries instantly.
	Emergency []ref.Address

	// Events receives a structured event per mutation. Nil discards.
	Events schema.Sink

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger
}

// Engine is the policy table and validator dispatcher. Safe for
// concurrent use.
type Engine struct {
	mu        sync.RWMutex
	admin     ref.Address
	emergency map[ref.Address]bool
	events    schema.Sink
	logger    *slog.Logger

	entries    map[slot]ref.Address
	validators map[ref.Address]Validator
}

// New constructs an empty Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Admin.IsZero() {
		return nil, errors.New("policy: admin address is required")
	}
	events := cfg.Events
	if events == nil {
		events = schema.DiscardSink{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	emergency := make(map[ref.Address]bool, len(cfg.Emergency))
	for _, addr := range cfg.Emergency {
		emergency[addr] = true
	}
	return &Engine{
		admin:      cfg.Admin,
		emergency:  emergency,
		events:     events,
		logger:     logger,
		entries:    make(map[slot]ref.Address),
		validators: make(map[ref.Address]Validator),
	}, nil
}

// BindValidator associates a validator address with its
// implementation. Binding happens at host wiring time — it is the
// code-deployment analog, not a runtime mutation, and entries
// referencing an unbound address fail closed at validation time.
func (e *Engine) BindValidator(addr ref.Address, impl Validator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validators[addr] = impl
}

// AddPolicy binds a validator address to a (target, selector) slot.
// Admin only. The validator must be non-zero: "allow nothing" is
// expressed by removing the entry, never by a zero validator, so an
// unset slot is unambiguous. Re-adding an existing slot replaces it.
func (e *Engine) AddPolicy(caller, target ref.Address, selector ref.Selector, validator ref.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if target.IsZero() {
		return ErrZeroTarget
	}
	if validator.IsZero() {
		return ErrZeroValidator
	}

	e.entries[slot{target, selector}] = validator
	e.logger.Info("policy added",
		"target", target.String(),
		"selector", selector.String(),
		"validator", validator.String(),
	)
	e.events.Emit(schema.PolicyAdded{Target: target, Selector: selector, Validator: validator})
	return nil
}

// RemovePolicy clears a slot. Admin or emergency caller — this is the
// instant kill switch for a compromised validator or venue function.
func (e *Engine) RemovePolicy(caller, target ref.Address, selector ref.Selector) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.admin && !e.emergency[caller] {
		return fmt.Errorf("%w: %s", ErrNotEmergency, caller)
	}
	key := slot{target, selector}
	previous, exists := e.entries[key]
	if !exists {
		return fmt.Errorf("%w: %s %s", ErrPolicyNotFound, target, selector)
	}

	delete(e.entries, key)
	e.logger.Warn("policy removed",
		"target", target.String(),
		"selector", selector.String(),
		"previous_validator", previous.String(),
	)
	e.events.Emit(schema.PolicyRemoved{Target: target, Selector: selector, PreviousValidator: previous})
	return nil
}

// ValidatorFor returns the validator address bound to a slot, if any.
func (e *Engine) ValidatorFor(target ref.Address, selector ref.Selector) (ref.Address, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	validator, ok := e.entries[slot{target, selector}]
	return validator, ok
}

// ValidateAction is the hot path: it extracts the selector from data
// (empty data is the zero-selector bare transfer slot), looks up the
// slot, and runs the bound validator.
//
// Failure taxonomy: no slot → ErrActionNotAllowed; validator rejects
// → ErrValidationFailed wrapping the validator's reason; entry bound
// to an address with no implementation → ErrUnboundValidator (fails
// closed). The check runs inline at execution time — callers must not
// cache a pass across an external call boundary.
func (e *Engine) ValidateAction(caller, target ref.Address, value *big.Int, data []byte) error {
	selector, err := calldata.SelectorFrom(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	e.mu.RLock()
	validatorAddr, exists := e.entries[slot{target, selector}]
	impl := e.validators[validatorAddr]
	e.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s %s", ErrActionNotAllowed, target, selector)
	}
	if validatorAddr == SentinelAllowAll {
		return nil
	}
	if impl == nil {
		return fmt.Errorf("%w: %s", ErrUnboundValidator, validatorAddr)
	}
	if err := impl.Validate(caller, target, value, data); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}
