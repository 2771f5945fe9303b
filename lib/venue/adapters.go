// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package venue

import (
	"fmt"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/calldata"
	"github.com/custodia-foundation/custodia/lib/ref"
)

// bindAs resolves target to a venue of type T. A missing binding and
// a binding of the wrong kind are distinct failures.
func bindAs[T any](bindings Bindings, target ref.Address) (T, error) {
	var zero T
	v, ok := bindings.Venue(target)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T", ErrIncompatibleKind, target, v)
	}
	return typed, nil
}

// TokenAdapter handles ERC-20 approvals against token targets. The
// approval is recorded on the ledger with the wallet as owner, so the
// venue can later pull the approved amount.
type TokenAdapter struct{}

func (TokenAdapter) Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error {
	sel, err := calldata.SelectorFrom(data)
	if err != nil {
		return err
	}
	if sel != calldata.SelectorApprove {
		return fmt.Errorf("%w: %s on token %s", ErrUnknownOperation, sel, target)
	}
	var args calldata.ApproveArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	if args.Token != target {
		return fmt.Errorf("%w: approve names %s but target is %s",
			ErrAssetMismatch, args.Token, target)
	}
	return exec.Ledger.Approve(target, exec.Wallet, args.Spender, args.Amount)
}

// VaultAdapter drives ERC-4626 style vaults: deposit assets for
// shares, redeem shares for assets.
type VaultAdapter struct {
	Bindings Bindings
}

func (a VaultAdapter) Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error {
	sel, err := calldata.SelectorFrom(data)
	if err != nil {
		return err
	}
	vault, err := bindAs[Vault](a.Bindings, target)
	if err != nil {
		return err
	}
	switch sel {
	case calldata.SelectorVaultDeposit:
		var args calldata.VaultDepositArgs
		if err := calldata.DecodeArgs(data, &args); err != nil {
			return err
		}
		return vault.Deposit(exec, args.Asset, args.Amount)
	case calldata.SelectorVaultRedeem:
		var args calldata.VaultRedeemArgs
		if err := calldata.DecodeArgs(data, &args); err != nil {
			return err
		}
		return vault.Redeem(exec, args.Asset, args.Shares)
	default:
		return fmt.Errorf("%w: %s on vault %s", ErrUnknownOperation, sel, target)
	}
}

// LendingAdapter drives lending pools: supply and withdraw.
type LendingAdapter struct {
	Bindings Bindings
}

func (a LendingAdapter) Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error {
	sel, err := calldata.SelectorFrom(data)
	if err != nil {
		return err
	}
	pool, err := bindAs[LendingPool](a.Bindings, target)
	if err != nil {
		return err
	}
	switch sel {
	case calldata.SelectorPoolSupply:
		var args calldata.PoolSupplyArgs
		if err := calldata.DecodeArgs(data, &args); err != nil {
			return err
		}
		return pool.Supply(exec, args.Asset, args.Amount)
	case calldata.SelectorPoolWithdraw:
		var args calldata.PoolWithdrawArgs
		if err := calldata.DecodeArgs(data, &args); err != nil {
			return err
		}
		return pool.Withdraw(exec, args.Asset, args.Amount)
	default:
		return fmt.Errorf("%w: %s on pool %s", ErrUnknownOperation, sel, target)
	}
}

// RewardsAdapter drives reward distributors.
type RewardsAdapter struct {
	Bindings Bindings
}

func (a RewardsAdapter) Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error {
	sel, err := calldata.SelectorFrom(data)
	if err != nil {
		return err
	}
	if sel != calldata.SelectorClaimRewards {
		return fmt.Errorf("%w: %s on distributor %s", ErrUnknownOperation, sel, target)
	}
	dist, err := bindAs[Distributor](a.Bindings, target)
	if err != nil {
		return err
	}
	var args calldata.ClaimRewardsArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	claims := make([]ClaimRequest, len(args.Claims))
	for i, c := range args.Claims {
		claims[i] = ClaimRequest{Account: c.Account, Token: c.Token, Amount: c.Amount}
	}
	return dist.Claim(exec, claims)
}

// SwapAdapter drives DEX aggregators.
type SwapAdapter struct {
	Bindings Bindings
}

func (a SwapAdapter) Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error {
	sel, err := calldata.SelectorFrom(data)
	if err != nil {
		return err
	}
	if sel != calldata.SelectorAggregateSwap {
		return fmt.Errorf("%w: %s on aggregator %s", ErrUnknownOperation, sel, target)
	}
	agg, err := bindAs[Aggregator](a.Bindings, target)
	if err != nil {
		return err
	}
	var args calldata.AggregateSwapArgs
	if err := calldata.DecodeArgs(data, &args); err != nil {
		return err
	}
	_, err = agg.Swap(exec, args.InputToken, args.OutputToken, args.AmountIn, args.MinAmountOut)
	return err
}
