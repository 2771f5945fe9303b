// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"errors"
	"testing"

	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

var (
	admin     = ref.BytesToAddress([]byte{0xad})
	emergency = ref.BytesToAddress([]byte{0xe9})
	stranger  = ref.BytesToAddress([]byte{0x51})
	adapterA  = ref.BytesToAddress([]byte{0xa1})
	adapterB  = ref.BytesToAddress([]byte{0xa2})
	targetT   = ref.BytesToAddress([]byte{0x71})
	targetU   = ref.BytesToAddress([]byte{0x72})
)

// allCode reports every address as a contract except those listed.
type allCode struct {
	except map[ref.Address]bool
}

func (c allCode) HasCode(addr ref.Address) bool { return !c.except[addr] }

// recorder captures emitted events for assertions.
type recorder struct {
	events []schema.Event
}

func (r *recorder) Emit(event schema.Event) { r.events = append(r.events, event) }

func newRegistry(t *testing.T, events schema.Sink) *Registry {
	t.Helper()
	reg, err := New(Config{
		Admin:     admin,
		Emergency: []ref.Address{emergency},
		Code:      allCode{},
		Events:    events,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return reg
}

func TestRegisterAdapterRoleGate(t *testing.T) {
	reg := newRegistry(t, nil)

	if err := reg.RegisterAdapter(stranger, adapterA); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("stranger register: err = %v, want ErrNotAdmin", err)
	}
	// The emergency role can revoke but never grant.
	if err := reg.RegisterAdapter(emergency, adapterA); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("emergency register: err = %v, want ErrNotAdmin", err)
	}
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("admin register: %v", err)
	}
	if err := reg.RegisterAdapter(admin, adapterA); !errors.Is(err, ErrAdapterAlreadyRegistered) {
		t.Errorf("duplicate register: err = %v, want ErrAdapterAlreadyRegistered", err)
	}
}

func TestRegisterAdapterValidation(t *testing.T) {
	reg, err := New(Config{
		Admin: admin,
		Code:  allCode{except: map[ref.Address]bool{adapterB: true}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := reg.RegisterAdapter(admin, ref.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Errorf("zero adapter: err = %v, want ErrZeroAddress", err)
	}
	if err := reg.RegisterAdapter(admin, adapterB); !errors.Is(err, ErrNotAContract) {
		t.Errorf("codeless adapter: err = %v, want ErrNotAContract", err)
	}
}

func TestTargetLifecycle(t *testing.T) {
	rec := &recorder{}
	reg := newRegistry(t, rec)

	if err := reg.RegisterTarget(admin, targetT, adapterA); !errors.Is(err, ErrAdapterNotRegistered) {
		t.Errorf("target before adapter: err = %v, want ErrAdapterNotRegistered", err)
	}
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("RegisterAdapter: %v", err)
	}
	if err := reg.RegisterTarget(admin, targetT, adapterA); err != nil {
		t.Fatalf("RegisterTarget: %v", err)
	}
	if err := reg.RegisterTarget(admin, targetT, adapterA); !errors.Is(err, ErrTargetAlreadyRegistered) {
		t.Errorf("duplicate target: err = %v, want ErrTargetAlreadyRegistered", err)
	}

	valid, adapter := reg.IsValidTarget(targetT)
	if !valid || adapter != adapterA {
		t.Errorf("IsValidTarget = (%v, %s), want (true, %s)", valid, adapter, adapterA)
	}

	// Rotation to a second registered adapter keeps the target valid
	// throughout — no remove+add window.
	if err := reg.RegisterAdapter(admin, adapterB); err != nil {
		t.Fatalf("RegisterAdapter B: %v", err)
	}
	if err := reg.UpdateTargetAdapter(admin, targetT, adapterB); err != nil {
		t.Fatalf("UpdateTargetAdapter: %v", err)
	}
	valid, adapter = reg.IsValidTarget(targetT)
	if !valid || adapter != adapterB {
		t.Errorf("after update: IsValidTarget = (%v, %s), want (true, %s)", valid, adapter, adapterB)
	}

	var sawUpdate bool
	for _, event := range rec.events {
		if updated, ok := event.(schema.TargetAdapterUpdated); ok {
			sawUpdate = true
			if updated.PreviousAdapter != adapterA || updated.NewAdapter != adapterB {
				t.Errorf("update event = %+v", updated)
			}
		}
	}
	if !sawUpdate {
		t.Error("no TargetAdapterUpdated event emitted")
	}
}

func TestSoftInvalidationAndIdempotentRecovery(t *testing.T) {
	reg := newRegistry(t, nil)
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("RegisterAdapter: %v", err)
	}
	for _, target := range []ref.Address{targetT, targetU} {
		if err := reg.RegisterTarget(admin, target, adapterA); err != nil {
			t.Fatalf("RegisterTarget(%s): %v", target, err)
		}
	}

	// Emergency unregistration flips validity for every mapped
	// target at once.
	if err := reg.UnregisterAdapter(emergency, adapterA); err != nil {
		t.Fatalf("UnregisterAdapter: %v", err)
	}
	for _, target := range []ref.Address{targetT, targetU} {
		if valid, _ := reg.IsValidTarget(target); valid {
			t.Errorf("target %s still valid after adapter unregistration", target)
		}
	}
	// The enumerable list is untouched: invalidation is soft.
	if got := len(reg.Targets()); got != 2 {
		t.Errorf("Targets() length = %d, want 2", got)
	}

	// Re-registration restores exactly the previous validity with no
	// re-mapping.
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	for _, target := range []ref.Address{targetT, targetU} {
		valid, adapter := reg.IsValidTarget(target)
		if !valid || adapter != adapterA {
			t.Errorf("target %s not restored: (%v, %s)", target, valid, adapter)
		}
	}
}

func TestRemoveTargetSwapRemoval(t *testing.T) {
	reg := newRegistry(t, nil)
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("RegisterAdapter: %v", err)
	}
	targets := []ref.Address{
		ref.BytesToAddress([]byte{0x81}),
		ref.BytesToAddress([]byte{0x82}),
		ref.BytesToAddress([]byte{0x83}),
	}
	for _, target := range targets {
		if err := reg.RegisterTarget(admin, target, adapterA); err != nil {
			t.Fatalf("RegisterTarget: %v", err)
		}
	}

	if err := reg.RemoveTarget(stranger, targets[0]); !errors.Is(err, ErrNotEmergency) {
		t.Errorf("stranger remove: err = %v, want ErrNotEmergency", err)
	}
	if err := reg.RemoveTarget(emergency, targets[0]); err != nil {
		t.Fatalf("RemoveTarget: %v", err)
	}
	if err := reg.RemoveTarget(emergency, targets[0]); !errors.Is(err, ErrTargetNotRegistered) {
		t.Errorf("double remove: err = %v, want ErrTargetNotRegistered", err)
	}

	// Membership is preserved for the remaining targets; order is
	// not guaranteed after a removal.
	remaining := reg.Targets()
	if len(remaining) != 2 {
		t.Fatalf("Targets() length = %d, want 2", len(remaining))
	}
	seen := map[ref.Address]bool{}
	for _, target := range remaining {
		seen[target] = true
	}
	if !seen[targets[1]] || !seen[targets[2]] {
		t.Errorf("remaining targets = %v", remaining)
	}
}

func TestAdminMayRevoke(t *testing.T) {
	// The timelock path can also execute revocations — emergency is
	// a fast lane, not the only lane.
	reg := newRegistry(t, nil)
	if err := reg.RegisterAdapter(admin, adapterA); err != nil {
		t.Fatalf("RegisterAdapter: %v", err)
	}
	if err := reg.UnregisterAdapter(admin, adapterA); err != nil {
		t.Errorf("admin unregister: %v", err)
	}
}
