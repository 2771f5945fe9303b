// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package validator

import (
	"errors"
	"math/big"
	"testing"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
)

var (
	walletA = ref.BytesToAddress([]byte{0x0a})
	walletB = ref.BytesToAddress([]byte{0x0b})
	tokenX  = ref.BytesToAddress([]byte{0x71})
	tokenY  = ref.BytesToAddress([]byte{0x72})
	distrib = ref.BytesToAddress([]byte{0xd1})
)

func claimData(t *testing.T, entries ...calldata.ClaimEntry) []byte {
	t.Helper()
	data, err := calldata.Encode(calldata.SelectorClaimRewards, calldata.ClaimRewardsArgs{Claims: entries})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestClaimToSelf(t *testing.T) {
	v := ClaimToSelf{}

	// Empty batch trivially passes.
	if err := v.Validate(walletA, distrib, nil, claimData(t)); err != nil {
		t.Errorf("empty batch: %v", err)
	}

	ownClaims := claimData(t,
		calldata.ClaimEntry{Account: walletA, Token: tokenX, Amount: big.NewInt(10)},
		calldata.ClaimEntry{Account: walletA, Token: tokenY, Amount: big.NewInt(20)},
	)
	if err := v.Validate(walletA, distrib, nil, ownClaims); err != nil {
		t.Errorf("self claims: %v", err)
	}

	// One foreign claimant poisons the whole batch.
	mixed := claimData(t,
		calldata.ClaimEntry{Account: walletA, Token: tokenX, Amount: big.NewInt(10)},
		calldata.ClaimEntry{Account: walletB, Token: tokenX, Amount: big.NewInt(1)},
	)
	if err := v.Validate(walletA, distrib, nil, mixed); err == nil {
		t.Error("foreign claimant accepted")
	}
}

type fixedAssets map[ref.Address]ref.Address

func (f fixedAssets) BaseAsset(wallet ref.Address) (ref.Address, bool) {
	asset, ok := f[wallet]
	return asset, ok
}

func swapData(t *testing.T, output ref.Address) []byte {
	t.Helper()
	data, err := calldata.Encode(calldata.SelectorAggregateSwap, calldata.AggregateSwapArgs{
		InputToken:   tokenY,
		OutputToken:  output,
		AmountIn:     big.NewInt(100),
		MinAmountOut: big.NewInt(99),
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func TestSwapToBase(t *testing.T) {
	v := SwapToBase{Assets: fixedAssets{walletA: tokenX}}

	if err := v.Validate(walletA, distrib, nil, swapData(t, tokenX)); err != nil {
		t.Errorf("swap into base asset: %v", err)
	}
	if err := v.Validate(walletA, distrib, nil, swapData(t, tokenY)); err == nil {
		t.Error("swap into foreign token accepted")
	}

	err := v.Validate(walletB, distrib, nil, swapData(t, tokenX))
	if !errors.Is(err, ErrUnknownWallet) {
		t.Errorf("unknown wallet: err = %v, want ErrUnknownWallet", err)
	}
}

func TestAggregateClaimsByIdentity(t *testing.T) {
	// Duplicate token entries must sum, not shadow.
	totals := AggregateClaims([]calldata.ClaimEntry{
		{Account: walletA, Token: tokenX, Amount: big.NewInt(10)},
		{Account: walletA, Token: tokenX, Amount: big.NewInt(15)},
		{Account: walletA, Token: tokenY, Amount: big.NewInt(7)},
	})
	if got := totals[tokenX]; got.Cmp(big.NewInt(25)) != 0 {
		t.Errorf("tokenX total = %s, want 25", got)
	}
	if got := totals[tokenY]; got.Cmp(big.NewInt(7)) != 0 {
		t.Errorf("tokenY total = %s, want 7", got)
	}
}
