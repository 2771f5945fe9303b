// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package validator provides the builtin policy validators: stateless
// predicates over decoded call arguments.
//
// The claim validator pins every claimant in a reward batch to the
// calling wallet, so an operator can neither route another wallet's
// rewards through this one nor credit this wallet's rewards
// elsewhere. The swap validator pins an aggregator swap's output
// token to the wallet's base asset, so an operator cannot strand
// value in an arbitrary or illiquid token.
//
// Validators reject with plain errors; the policy engine wraps them
// in its ErrValidationFailed so callers see a uniform taxonomy.
package validator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
)

// Well-known validator addresses, bound to the implementations below
// at host wiring time. Readable ASCII byte patterns, same convention
// as the policy sentinel.
var (
	AddrClaimToSelf = ref.BytesToAddress([]byte("custodia/vl/claims##"))
	AddrSwapToBase  = ref.BytesToAddress([]byte("custodia/vl/swaps###"))
)

// ErrUnknownWallet is returned by SwapToBase when the calling wallet
// has no recorded base asset. Fails closed: an unknown caller is
// never allowed to swap.
var ErrUnknownWallet = errors.New("validator: caller wallet has no base asset")

// BaseAssets resolves a wallet's immutable base asset. The factory
// implements this.
type BaseAssets interface {
	BaseAsset(wallet ref.Address) (ref.Address, bool)
}

// ClaimToSelf requires every claimant address in a reward-claim batch
// to equal the calling wallet. An empty batch trivially passes.
type ClaimToSelf struct{}

// Validate implements policy.Validator.
func (ClaimToSelf) Validate(caller, _ ref.Address, _ *big.Int, data []byte) error {
	var args calldata.ClaimRewardsArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	for i, entry := range args.Claims {
		if entry.Account != caller {
			return fmt.Errorf("claim %d credits %s, not the calling wallet %s", i, entry.Account, caller)
		}
	}
	return nil
}

// SwapToBase requires the decoded output token of an aggregator swap
// to equal the calling wallet's base asset.
type SwapToBase struct {
	// Assets resolves wallet base assets. Required.
	Assets BaseAssets
}

// Validate implements policy.Validator.
func (v SwapToBase) Validate(caller, _ ref.Address, _ *big.Int, data []byte) error {
	var args calldata.AggregateSwapArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	baseAsset, known := v.Assets.BaseAsset(caller)
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownWallet, caller)
	}
	if args.OutputToken != baseAsset {
		return fmt.Errorf("swap output token %s does not match base asset %s", args.OutputToken, baseAsset)
	}
	return nil
}

// AggregateClaims sums claim amounts per reward token. Validators
// tolerate duplicate (account, token) entries in a batch, so any
// accounting over a validated claim batch must aggregate by identity
// instead of assuming distinct entries — this is that aggregation.
func AggregateClaims(claims []calldata.ClaimEntry) map[ref.Address]*big.Int {
	totals := make(map[ref.Address]*big.Int)
	for _, entry := range claims {
		if entry.Amount == nil {
			continue
		}
		total, ok := totals[entry.Token]
		if !ok {
			total = new(big.Int)
			totals[entry.Token] = total
		}
		total.Add(total, entry.Amount)
	}
	return totals
}
