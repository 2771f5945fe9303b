// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// OpKind identifies an admin operation routed through the timelock.
// Trust-granting kinds must wait out the delay; trust-revoking kinds
// are additionally executable through the instant emergency path.
type OpKind string

const (
	// OpRegisterAdapter adds an adapter to the registry.
	OpRegisterAdapter OpKind = "register_adapter"

	// OpUnregisterAdapter removes an adapter, soft-invalidating all
	// its targets. Revocation: emergency-eligible.
	OpUnregisterAdapter OpKind = "unregister_adapter"

	// OpRegisterTarget maps a target to a registered adapter.
	OpRegisterTarget OpKind = "register_target"

	// OpUpdateTargetAdapter rotates a target to a new adapter.
	OpUpdateTargetAdapter OpKind = "update_target_adapter"

	// OpRemoveTarget removes a target mapping. Revocation:
	// emergency-eligible.
	OpRemoveTarget OpKind = "remove_target"

	// OpAddPolicy binds a validator to a (target, selector) slot.
	OpAddPolicy OpKind = "add_policy"

	// OpRemovePolicy clears a policy slot. Revocation:
	// emergency-eligible.
	OpRemovePolicy OpKind = "remove_policy"

	// OpAddOperator grants an operator credential.
	OpAddOperator OpKind = "add_operator"

	// OpRemoveOperator revokes an operator credential. Revocation:
	// emergency-eligible.
	OpRemoveOperator OpKind = "remove_operator"

	// OpApproveImplementation sanctions a wallet implementation as
	// an upgrade target.
	OpApproveImplementation OpKind = "approve_implementation"

	// OpSetRouter rotates the factory's current router. Existing
	// wallets pick it up on their next owner-driven sync.
	OpSetRouter OpKind = "set_router"
)

// IsRevocation reports whether the kind removes trust rather than
// granting it. Revocations may bypass the timelock through the
// emergency role; grants never may. This asymmetry — slow to add
// trust, fast to revoke it — is a design invariant.
func (k OpKind) IsRevocation() bool {
	switch k {
	case OpUnregisterAdapter, OpRemoveTarget, OpRemovePolicy, OpRemoveOperator:
		return true
	}
	return false
}

// Valid reports whether the kind is one of the defined operations.
func (k OpKind) Valid() bool {
	switch k {
	case OpRegisterAdapter, OpUnregisterAdapter, OpRegisterTarget,
		OpUpdateTargetAdapter, OpRemoveTarget, OpAddPolicy, OpRemovePolicy,
		OpAddOperator, OpRemoveOperator, OpApproveImplementation,
		OpSetRouter:
		return true
	}
	return false
}

// AdminOp is the payload of one privileged configuration change. A
// single flat struct covers every kind; which fields are meaningful
// depends on Kind. Unused fields stay zero and are omitted from the
// encoding.
//
// AdminOps are CBOR-encoded for queue persistence and for the
// proposal id derivation, so the encoding must be deterministic.
type AdminOp struct {
	Kind OpKind `cbor:"1,keyasint"`

	// Adapter for adapter (un)registration and target mapping.
	Adapter ref.Address `cbor:"2,keyasint,omitempty"`

	// Target for target mapping/removal and policy slots.
	Target ref.Address `cbor:"3,keyasint,omitempty"`

	// Selector for policy slots.
	Selector ref.Selector `cbor:"4,keyasint,omitempty"`

	// Validator for OpAddPolicy.
	Validator ref.Address `cbor:"5,keyasint,omitempty"`

	// Operator for operator grant/revocation.
	Operator ref.Address `cbor:"6,keyasint,omitempty"`

	// Implementation for OpApproveImplementation.
	Implementation ref.ImplementationID `cbor:"7,keyasint,omitempty"`

	// Router for OpSetRouter.
	Router ref.Address `cbor:"8,keyasint,omitempty"`
}

// Validate checks that the op's kind is known and the fields that
// kind requires are set. Address-level validity (is the adapter a
// contract, is the target mapped) is checked at execution time
// against live state, not here — a proposal validates against the
// state at execution, never the state at scheduling.
func (op AdminOp) Validate() error {
	if !op.Kind.Valid() {
		return fmt.Errorf("admin op: unknown kind %q", op.Kind)
	}
	requireSet := func(name string, isZero bool) error {
		if isZero {
			return fmt.Errorf("admin op %s: %s is required", op.Kind, name)
		}
		return nil
	}
	switch op.Kind {
	case OpRegisterAdapter, OpUnregisterAdapter:
		return requireSet("adapter", op.Adapter.IsZero())
	case OpRegisterTarget, OpUpdateTargetAdapter:
		if err := requireSet("target", op.Target.IsZero()); err != nil {
			return err
		}
		return requireSet("adapter", op.Adapter.IsZero())
	case OpRemoveTarget:
		return requireSet("target", op.Target.IsZero())
	case OpAddPolicy:
		if err := requireSet("target", op.Target.IsZero()); err != nil {
			return err
		}
		return requireSet("validator", op.Validator.IsZero())
	case OpRemovePolicy:
		return requireSet("target", op.Target.IsZero())
	case OpAddOperator, OpRemoveOperator:
		return requireSet("operator", op.Operator.IsZero())
	case OpApproveImplementation:
		return requireSet("implementation", op.Implementation.IsZero())
	case OpSetRouter:
		return requireSet("router", op.Router.IsZero())
	}
	return nil
}
