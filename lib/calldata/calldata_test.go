// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package calldata

import (
	"errors"
	"math/big"
	"testing"

	"github.com/custodia-foundation/custodia/lib/ref"
)

func addr(t *testing.T, raw string) ref.Address {
	t.Helper()
	parsed, err := ref.ParseAddress(raw)
	if err != nil {
		t.Fatalf("ParseAddress(%q): %v", raw, err)
	}
	return parsed
}

func TestEncodeDecodeSwapArgs(t *testing.T) {
	args := AggregateSwapArgs{
		InputToken:   addr(t, "0x1111111111111111111111111111111111111111"),
		OutputToken:  addr(t, "0x2222222222222222222222222222222222222222"),
		AmountIn:     big.NewInt(1_000_000),
		MinAmountOut: big.NewInt(995_000),
	}
	data, err := Encode(SelectorAggregateSwap, args)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	sel, err := SelectorFrom(data)
	if err != nil {
		t.Fatalf("SelectorFrom: %v", err)
	}
	if sel != SelectorAggregateSwap {
		t.Errorf("selector = %s, want %s", sel, SelectorAggregateSwap)
	}

	var decoded AggregateSwapArgs
	if err := DecodeArgs(data, &decoded); err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if decoded.OutputToken != args.OutputToken {
		t.Errorf("OutputToken = %s, want %s", decoded.OutputToken, args.OutputToken)
	}
	if decoded.AmountIn.Cmp(args.AmountIn) != 0 {
		t.Errorf("AmountIn = %s, want %s", decoded.AmountIn, args.AmountIn)
	}
}

func TestSelectorFromEmptyIsBareTransfer(t *testing.T) {
	sel, err := SelectorFrom(nil)
	if err != nil {
		t.Fatalf("SelectorFrom(nil): %v", err)
	}
	if !sel.IsZero() {
		t.Errorf("empty calldata selector = %s, want zero", sel)
	}
}

func TestSelectorFromTruncated(t *testing.T) {
	if _, err := SelectorFrom([]byte{0x01, 0x02}); !errors.Is(err, ErrCalldataTooShort) {
		t.Errorf("truncated calldata: err = %v, want ErrCalldataTooShort", err)
	}
	var args VaultDepositArgs
	if err := DecodeArgs([]byte{0x01}, &args); !errors.Is(err, ErrCalldataTooShort) {
		t.Errorf("DecodeArgs on truncated calldata: err = %v, want ErrCalldataTooShort", err)
	}
}

func TestBuiltinSelectorsDistinct(t *testing.T) {
	selectors := map[ref.Selector]string{
		SelectorApprove:       SigApprove,
		SelectorVaultDeposit:  SigVaultDeposit,
		SelectorVaultRedeem:   SigVaultRedeem,
		SelectorPoolSupply:    SigPoolSupply,
		SelectorPoolWithdraw:  SigPoolWithdraw,
		SelectorClaimRewards:  SigClaimRewards,
		SelectorAggregateSwap: SigAggregateSwap,
	}
	if len(selectors) != 7 {
		t.Fatalf("selector collision: only %d distinct selectors", len(selectors))
	}
	for sel := range selectors {
		if sel.IsZero() {
			t.Errorf("builtin selector for %s is zero", selectors[sel])
		}
	}
}

func TestEncodeNilArgs(t *testing.T) {
	data, err := Encode(SelectorVaultDeposit, nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != ref.SelectorLength {
		t.Errorf("nil-args calldata length = %d, want %d", len(data), ref.SelectorLength)
	}
}
