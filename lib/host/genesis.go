// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"fmt"

	"github.com/custodia-foundation/custodia/lib/config"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

// TargetSeed maps one target to its serving adapter.
type TargetSeed struct {
	Target  ref.Address
	Adapter ref.Address
}

// PolicySeed binds one validator to a (target, selector) slot.
type PolicySeed struct {
	Target    ref.Address
	Selector  ref.Selector
	Validator ref.Address
}

// Genesis is the boot-time trust configuration. It expresses only
// what timelock proposals could: each entry becomes an admin
// operation applied through [Host.Apply], in dependency order —
// adapters before the targets that reference them, targets before
// the policy slots that gate them.
type Genesis struct {
	Adapters        []ref.Address
	Targets         []TargetSeed
	Policies        []PolicySeed
	Operators       []ref.Address
	Implementations []ref.ImplementationID
}

// GenesisFromConfig converts a loaded genesis seed file into the
// typed form ApplyGenesis consumes. The file has already passed
// [config.Genesis.Validate], so the only conversions that can fail
// here are ambiguous policy slots and unparseable implementation ids,
// and Validate rejects both.
func GenesisFromConfig(g *config.Genesis) (Genesis, error) {
	out := Genesis{
		Adapters:  g.Adapters,
		Operators: g.Operators,
	}
	for _, t := range g.Targets {
		out.Targets = append(out.Targets, TargetSeed{Target: t.Target, Adapter: t.Adapter})
	}
	for i, p := range g.Policies {
		slot, err := p.Slot()
		if err != nil {
			return Genesis{}, fmt.Errorf("genesis policy %d: %w", i, err)
		}
		out.Policies = append(out.Policies, PolicySeed{
			Target:    p.Target,
			Selector:  slot,
			Validator: p.Validator,
		})
	}
	for i, impl := range g.Implementations {
		id, err := impl.Resolve()
		if err != nil {
			return Genesis{}, fmt.Errorf("genesis implementation %d: %w", i, err)
		}
		out.Implementations = append(out.Implementations, id)
	}
	return out, nil
}

// ApplyGenesis seeds the platform. It stops at the first failing
// entry; genesis is not atomic, so a failed boot should be treated
// as fatal rather than retried against the half-seeded state.
func (h *Host) ApplyGenesis(g Genesis) error {
	for i, adapter := range g.Adapters {
		op := schema.AdminOp{Kind: schema.OpRegisterAdapter, Adapter: adapter}
		if err := h.Apply(op); err != nil {
			return fmt.Errorf("genesis adapter %d: %w", i, err)
		}
	}
	for i, seed := range g.Targets {
		op := schema.AdminOp{Kind: schema.OpRegisterTarget, Target: seed.Target, Adapter: seed.Adapter}
		if err := h.Apply(op); err != nil {
			return fmt.Errorf("genesis target %d: %w", i, err)
		}
	}
	for i, seed := range g.Policies {
		op := schema.AdminOp{
			Kind:      schema.OpAddPolicy,
			Target:    seed.Target,
			Selector:  seed.Selector,
			Validator: seed.Validator,
		}
		if err := h.Apply(op); err != nil {
			return fmt.Errorf("genesis policy %d: %w", i, err)
		}
	}
	for i, operator := range g.Operators {
		op := schema.AdminOp{Kind: schema.OpAddOperator, Operator: operator}
		if err := h.Apply(op); err != nil {
			return fmt.Errorf("genesis operator %d: %w", i, err)
		}
	}
	for i, impl := range g.Implementations {
		op := schema.AdminOp{Kind: schema.OpApproveImplementation, Implementation: impl}
		if err := h.Apply(op); err != nil {
			return fmt.Errorf("genesis implementation %d: %w", i, err)
		}
	}
	return nil
}
