// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry maintains the global set of approved adapters and
// the target→adapter mapping consulted on every gated execution.
//
// A target is valid iff it is mapped AND its mapped adapter is
// currently registered. Unregistering an adapter therefore
// soft-invalidates every target mapped to it in one step — the read
// path checks adapter registration at query time, so no per-target
// cleanup happens and re-registering the adapter restores exactly the
// previous validity.
//
// Mutations are role-gated: trust-granting calls (register, update)
// require the admin caller, which in production is the timelock
// executor; trust-revoking calls (unregister, remove) additionally
// accept emergency callers so incident response never waits out the
// delay.
package registry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

// Typed failures. Tests and operator backends branch on these with
// errors.Is; the wrapped message carries the offending address.
var (
	ErrNotAdmin                 = errors.New("registry: caller is not the admin")
	ErrNotEmergency             = errors.New("registry: caller holds neither the admin nor the emergency role")
	ErrZeroAddress              = errors.New("registry: zero address")
	ErrNotAContract             = errors.New("registry: address has no code")
	ErrAdapterAlreadyRegistered = errors.New("registry: adapter already registered")
	ErrAdapterNotRegistered     = errors.New("registry: adapter not registered")
	ErrTargetAlreadyRegistered  = errors.New("registry: target already registered")
	ErrTargetNotRegistered      = errors.New("registry: target not registered")
)

// CodePresence answers whether an address hosts executable code. The
// host implements this over its contract bindings; registering an
// adapter address with no code behind it is a configuration error
// caught here.
type CodePresence interface {
	HasCode(addr ref.Address) bool
}

// Config wires a Registry.
type Config struct {
	// Admin is the sole caller allowed to grant trust. In production
	// this is the timelock executor address.
	Admin ref.Address

	// Emergency callers may revoke trust instantly. They can never
	// grant it.
	Emergency []ref.Address

	// Code is consulted when registering adapters. Required.
	Code CodePresence

	// Events receives a structured event per mutation. Nil discards.
	Events schema.Sink

	// Logger receives operational messages. Nil discards.
	Logger *slog.Logger
}

// Registry is the adapter/target authorization data structure. Safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	admin     ref.Address
	emergency map[ref.Address]bool
	code      CodePresence
	events    schema.Sink
	logger    *slog.Logger

	adapters      map[ref.Address]bool
	targetAdapter map[ref.Address]ref.Address

	// targetList is the enumerable target set. Removal swaps with
	// the last element, so order is not stable across removals.
	targetList []ref.Address
}

// New constructs an empty Registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Admin.IsZero() {
		return nil, fmt.Errorf("%w: admin", ErrZeroAddress)
	}
	if cfg.Code == nil {
		return nil, errors.New("registry: Code presence oracle is required")
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
		if addr.IsZero() {
			return nil, fmt.Errorf("%w: emergency caller", ErrZeroAddress)
		}
		emergency[addr] = true
	}
	return &Registry{
		admin:         cfg.Admin,
		emergency:     emergency,
		code:          cfg.Code,
		events:        events,
		logger:        logger,
		adapters:      make(map[ref.Address]bool),
		targetAdapter: make(map[ref.Address]ref.Address),
	}, nil
}

// RegisterAdapter adds an adapter. Admin only. The adapter must be a
// non-zero address with code and must not already be registered.
func (r *Registry) RegisterAdapter(caller, adapter ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if adapter.IsZero() {
		return fmt.Errorf("%w: adapter", ErrZeroAddress)
	}
	if !r.code.HasCode(adapter) {
		return fmt.Errorf("%w: %s", ErrNotAContract, adapter)
	}
	if r.adapters[adapter] {
		return fmt.Errorf("%w: %s", ErrAdapterAlreadyRegistered, adapter)
	}

	r.adapters[adapter] = true
	r.logger.Info("adapter registered", "adapter", adapter.String())
	r.events.Emit(schema.AdapterRegistered{Adapter: adapter})
	return nil
}

// UnregisterAdapter removes an adapter, immediately invalidating
// every target mapped to it. Admin or emergency caller. Target
// mappings are left in place so re-registration restores them.
func (r *Registry) UnregisterAdapter(caller, adapter ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRevoker(caller); err != nil {
		return err
	}
	if !r.adapters[adapter] {
		return fmt.Errorf("%w: %s", ErrAdapterNotRegistered, adapter)
	}

	delete(r.adapters, adapter)
	invalidated := 0
	for _, mapped := range r.targetAdapter {
		if mapped == adapter {
			invalidated++
		}
	}
	r.logger.Warn("adapter unregistered",
		"adapter", adapter.String(),
		"targets_invalidated", invalidated,
	)
	r.events.Emit(schema.AdapterUnregistered{Adapter: adapter, TargetCount: invalidated})
	return nil
}

// RegisterTarget maps a target to a registered adapter. Admin only.
// Fails if the target is already mapped — use UpdateTargetAdapter to
// rotate an existing mapping without a remove+add window.
func (r *Registry) RegisterTarget(caller, target, adapter ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	if target.IsZero() {
		return fmt.Errorf("%w: target", ErrZeroAddress)
	}
	if !r.adapters[adapter] {
		return fmt.Errorf("%w: %s", ErrAdapterNotRegistered, adapter)
	}
	if _, mapped := r.targetAdapter[target]; mapped {
		return fmt.Errorf("%w: %s", ErrTargetAlreadyRegistered, target)
	}

	r.targetAdapter[target] = adapter
	r.targetList = append(r.targetList, target)
	r.logger.Info("target registered",
		"target", target.String(),
		"adapter", adapter.String(),
	)
	r.events.Emit(schema.TargetRegistered{Target: target, Adapter: adapter})
	return nil
}

// UpdateTargetAdapter rotates an existing target to a different
// registered adapter. Admin only.
func (r *Registry) UpdateTargetAdapter(caller, target, newAdapter ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.admin {
		return fmt.Errorf("%w: %s", ErrNotAdmin, caller)
	}
	previous, mapped := r.targetAdapter[target]
	if !mapped {
		return fmt.Errorf("%w: %s", ErrTargetNotRegistered, target)
	}
	if !r.adapters[newAdapter] {
		return fmt.Errorf("%w: %s", ErrAdapterNotRegistered, newAdapter)
	}

	r.targetAdapter[target] = newAdapter
	r.logger.Info("target adapter updated",
		"target", target.String(),
		"previous_adapter", previous.String(),
		"new_adapter", newAdapter.String(),
	)
	r.events.Emit(schema.TargetAdapterUpdated{
		Target:          target,
		PreviousAdapter: previous,
		NewAdapter:      newAdapter,
	})
	return nil
}

// RemoveTarget deletes a target mapping. Admin or emergency caller.
// The enumerable list uses swap-with-last-element removal, so list
// order is not preserved.
func (r *Registry) RemoveTarget(caller, target ref.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.requireRevoker(caller); err != nil {
		return err
	}
	adapter, mapped := r.targetAdapter[target]
	if !mapped {
		return fmt.Errorf("%w: %s", ErrTargetNotRegistered, target)
	}

	delete(r.targetAdapter, target)
	for i, listed := range r.targetList {
		if listed == target {
			last := len(r.targetList) - 1
			r.targetList[i] = r.targetList[last]
			r.targetList = r.targetList[:last]
			break
		}
	}
	r.logger.Warn("target removed",
		"target", target.String(),
		"adapter", adapter.String(),
	)
	r.events.Emit(schema.TargetRemoved{Target: target, Adapter: adapter})
	return nil
}

// IsValidTarget reports whether target is currently executable and,
// if so, through which adapter: the target must be mapped and its
// mapped adapter registered right now. This is the inline
// execution-time check — callers must not cache the result across an
// external call boundary.
func (r *Registry) IsValidTarget(target ref.Address) (bool, ref.Address) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, mapped := r.targetAdapter[target]
	if !mapped || !r.adapters[adapter] {
		return false, ref.Address{}
	}
	return true, adapter
}

// IsRegisteredAdapter reports whether adapter is currently registered.
func (r *Registry) IsRegisteredAdapter(adapter ref.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[adapter]
}

// Targets returns a copy of the enumerable target list. Order is
// arbitrary after any removal.
func (r *Registry) Targets() []ref.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ref.Address, len(r.targetList))
	copy(out, r.targetList)
	return out
}

// requireRevoker checks the caller may revoke trust: the admin (via
// a matured timelock proposal) or an emergency caller (instantly).
func (r *Registry) requireRevoker(caller ref.Address) error {
	if caller == r.admin || r.emergency[caller] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotEmergency, caller)
}
