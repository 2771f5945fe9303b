// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"math/big"
	"testing"

	"github.com/custodia-foundation/custodia/lib/ref"
)

var (
	tokenX = ref.BytesToAddress([]byte{0xaa, 0x01})
	alice  = ref.BytesToAddress([]byte{0x01})
	bob    = ref.BytesToAddress([]byte{0x02})
	vault  = ref.BytesToAddress([]byte{0xee, 0x01})
)

func TestTransfer(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if err := ledger.Transfer(tokenX, alice, bob, big.NewInt(400)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got := ledger.BalanceOf(tokenX, alice); got.Cmp(big.NewInt(600)) != 0 {
		t.Errorf("alice balance = %s, want 600", got)
	}
	if got := ledger.BalanceOf(tokenX, bob); got.Cmp(big.NewInt(400)) != 0 {
		t.Errorf("bob balance = %s, want 400", got)
	}
}

func TestTransferFailures(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(10)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	err := ledger.Transfer(tokenX, alice, bob, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("overdraw: err = %v, want ErrInsufficientBalance", err)
	}

	err = ledger.Transfer(tokenX, alice, ref.Address{}, big.NewInt(1))
	if !errors.Is(err, ErrZeroRecipient) {
		t.Errorf("zero recipient: err = %v, want ErrZeroRecipient", err)
	}

	err = ledger.Transfer(tokenX, alice, bob, big.NewInt(-1))
	if !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative amount: err = %v, want ErrNegativeAmount", err)
	}

	// Failures leave balances untouched.
	if got := ledger.BalanceOf(tokenX, alice); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("alice balance after failures = %s, want 10", got)
	}
}

func TestAllowance(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if err := ledger.Approve(tokenX, alice, vault, big.NewInt(60)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := ledger.TransferFrom(tokenX, vault, alice, vault, big.NewInt(50)); err != nil {
		t.Fatalf("TransferFrom: %v", err)
	}
	if got := ledger.Allowance(tokenX, alice, vault); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("remaining allowance = %s, want 10", got)
	}

	// Allowance exhaustion is distinct from balance exhaustion.
	err := ledger.TransferFrom(tokenX, vault, alice, vault, big.NewInt(11))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Errorf("over-allowance: err = %v, want ErrInsufficientAllowance", err)
	}
}

func TestSnapshotRevert(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(1000)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	ledger.SetStorage(vault, "totalShares", big.NewInt(7))

	snapshot := ledger.Snapshot()

	if err := ledger.Transfer(tokenX, alice, bob, big.NewInt(999)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := ledger.MintNative(bob, big.NewInt(5)); err != nil {
		t.Fatalf("MintNative: %v", err)
	}
	ledger.SetStorage(vault, "totalShares", big.NewInt(99))
	if err := ledger.Approve(tokenX, alice, vault, big.NewInt(3)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	ledger.RevertToSnapshot(snapshot)

	if got := ledger.BalanceOf(tokenX, alice); got.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("alice balance after revert = %s, want 1000", got)
	}
	if got := ledger.BalanceOf(tokenX, bob); got.Sign() != 0 {
		t.Errorf("bob balance after revert = %s, want 0", got)
	}
	if got := ledger.NativeBalance(bob); got.Sign() != 0 {
		t.Errorf("bob native after revert = %s, want 0", got)
	}
	if got := ledger.Storage(vault, "totalShares"); got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("storage after revert = %s, want 7", got)
	}
	if got := ledger.Allowance(tokenX, alice, vault); got.Sign() != 0 {
		t.Errorf("allowance after revert = %s, want 0", got)
	}
}

func TestNestedSnapshots(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(100)); err != nil {
		t.Fatalf("Mint: %v", err)
	}

	outer := ledger.Snapshot()
	if err := ledger.Transfer(tokenX, alice, bob, big.NewInt(10)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	inner := ledger.Snapshot()
	if err := ledger.Transfer(tokenX, alice, bob, big.NewInt(20)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	ledger.RevertToSnapshot(inner)
	if got := ledger.BalanceOf(tokenX, bob); got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("bob after inner revert = %s, want 10", got)
	}

	ledger.RevertToSnapshot(outer)
	if got := ledger.BalanceOf(tokenX, bob); got.Sign() != 0 {
		t.Errorf("bob after outer revert = %s, want 0", got)
	}
}

func TestAddStorageUnderflow(t *testing.T) {
	ledger := NewLedger()
	ledger.SetStorage(vault, "shares", big.NewInt(5))
	err := ledger.AddStorage(vault, "shares", big.NewInt(-6))
	if !errors.Is(err, ErrInsufficientShares) {
		t.Errorf("underflow: err = %v, want ErrInsufficientShares", err)
	}
	if got := ledger.Storage(vault, "shares"); got.Cmp(big.NewInt(5)) != 0 {
		t.Errorf("storage after failed adjust = %s, want 5", got)
	}
}

func TestBalanceOfReturnsCopy(t *testing.T) {
	ledger := NewLedger()
	if err := ledger.Mint(tokenX, alice, big.NewInt(50)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	balance := ledger.BalanceOf(tokenX, alice)
	balance.SetInt64(0)
	if got := ledger.BalanceOf(tokenX, alice); got.Cmp(big.NewInt(50)) != 0 {
		t.Errorf("ledger balance mutated through returned copy: %s", got)
	}
}
