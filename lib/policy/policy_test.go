// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
)

var (
	admin     = ref.BytesToAddress([]byte{0xad})
	emergency = ref.BytesToAddress([]byte{0xe9})
	wallet    = ref.BytesToAddress([]byte{0x0a})
	target    = ref.BytesToAddress([]byte{0x71})
	valAddr   = ref.BytesToAddress([]byte{0xfa})
)

// evenAmount rejects vault deposits with odd amounts. A contrived
// predicate that makes accept/reject paths easy to steer in tests.
type evenAmount struct{}

func (evenAmount) Validate(_, _ ref.Address, _ *big.Int, data []byte) error {
	var args calldata.VaultDepositArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	if args.Amount.Bit(0) == 1 {
		return fmt.Errorf("odd amount %s", args.Amount)
	}
	return nil
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(Config{Admin: admin, Emergency: []ref.Address{emergency}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	engine.BindValidator(valAddr, evenAmount{})
	return engine
}

func depositData(t *testing.T, amount int64) []byte {
	t.Helper()
	data, err := calldata.Encode(calldata.SelectorVaultDeposit, calldata.VaultDepositArgs{
		Asset:  ref.BytesToAddress([]byte{0x77}),
		Amount: big.NewInt(amount),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestMissingEntryIsNotAllowed(t *testing.T) {
	engine := newEngine(t)
	err := engine.ValidateAction(wallet, target, nil, depositData(t, 100))
	if !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("unconfigured slot: err = %v, want ErrActionNotAllowed", err)
	}
	// Specifically NOT a validation failure.
	if errors.Is(err, ErrValidationFailed) {
		t.Error("unconfigured slot misreported as validation failure")
	}
}

func TestValidatorAcceptAndReject(t *testing.T) {
	engine := newEngine(t)
	if err := engine.AddPolicy(admin, target, calldata.SelectorVaultDeposit, valAddr); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	if err := engine.ValidateAction(wallet, target, nil, depositData(t, 100)); err != nil {
		t.Errorf("even amount rejected: %v", err)
	}

	err := engine.ValidateAction(wallet, target, nil, depositData(t, 101))
	if !errors.Is(err, ErrValidationFailed) {
		t.Errorf("odd amount: err = %v, want ErrValidationFailed", err)
	}
	if errors.Is(err, ErrActionNotAllowed) {
		t.Error("validator rejection misreported as not-allowed")
	}
}

func TestSentinelAllowAllSkipsInspection(t *testing.T) {
	engine := newEngine(t)
	if err := engine.AddPolicy(admin, target, calldata.SelectorApprove, SentinelAllowAll); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	// Garbage argument bytes after a valid selector: the sentinel
	// never decodes them.
	data := append([]byte{}, calldata.SelectorApprove[:]...)
	data = append(data, 0xde, 0xad)
	if err := engine.ValidateAction(wallet, target, nil, data); err != nil {
		t.Errorf("sentinel slot rejected: %v", err)
	}
}

func TestBareTransferSlot(t *testing.T) {
	engine := newEngine(t)

	// Empty calldata occupies the zero-selector slot, distinct from
	// every function slot.
	err := engine.ValidateAction(wallet, target, big.NewInt(5), nil)
	if !errors.Is(err, ErrActionNotAllowed) {
		t.Fatalf("bare transfer without slot: err = %v, want ErrActionNotAllowed", err)
	}
	if err := engine.AddPolicy(admin, target, ref.Selector{}, SentinelAllowAll); err != nil {
		t.Fatalf("AddPolicy zero selector: %v", err)
	}
	if err := engine.ValidateAction(wallet, target, big.NewInt(5), nil); err != nil {
		t.Errorf("bare transfer with slot: %v", err)
	}
}

func TestRemovePolicyKillSwitch(t *testing.T) {
	engine := newEngine(t)
	if err := engine.AddPolicy(admin, target, calldata.SelectorVaultDeposit, valAddr); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	stranger := ref.BytesToAddress([]byte{0x51})
	if err := engine.RemovePolicy(stranger, target, calldata.SelectorVaultDeposit); !errors.Is(err, ErrNotEmergency) {
		t.Errorf("stranger remove: err = %v, want ErrNotEmergency", err)
	}
	if err := engine.RemovePolicy(emergency, target, calldata.SelectorVaultDeposit); err != nil {
		t.Fatalf("emergency remove: %v", err)
	}

	// The removal blocks the very next check — no caching window.
	err := engine.ValidateAction(wallet, target, nil, depositData(t, 100))
	if !errors.Is(err, ErrActionNotAllowed) {
		t.Errorf("after removal: err = %v, want ErrActionNotAllowed", err)
	}

	if err := engine.RemovePolicy(emergency, target, calldata.SelectorVaultDeposit); !errors.Is(err, ErrPolicyNotFound) {
		t.Errorf("double remove: err = %v, want ErrPolicyNotFound", err)
	}
}

func TestAddPolicyValidation(t *testing.T) {
	engine := newEngine(t)

	if err := engine.AddPolicy(emergency, target, calldata.SelectorApprove, valAddr); !errors.Is(err, ErrNotAdmin) {
		t.Errorf("emergency add: err = %v, want ErrNotAdmin", err)
	}
	if err := engine.AddPolicy(admin, ref.Address{}, calldata.SelectorApprove, valAddr); !errors.Is(err, ErrZeroTarget) {
		t.Errorf("zero target: err = %v, want ErrZeroTarget", err)
	}
	if err := engine.AddPolicy(admin, target, calldata.SelectorApprove, ref.Address{}); !errors.Is(err, ErrZeroValidator) {
		t.Errorf("zero validator: err = %v, want ErrZeroValidator", err)
	}
}

func TestUnboundValidatorFailsClosed(t *testing.T) {
	engine := newEngine(t)
	unbound := ref.BytesToAddress([]byte{0xfb})
	if err := engine.AddPolicy(admin, target, calldata.SelectorVaultDeposit, unbound); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	err := engine.ValidateAction(wallet, target, nil, depositData(t, 100))
	if !errors.Is(err, ErrUnboundValidator) {
		t.Errorf("unbound validator: err = %v, want ErrUnboundValidator", err)
	}
}
