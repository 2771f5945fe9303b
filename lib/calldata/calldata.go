// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package calldata defines the wire format of an action's call data
// and the typed argument structures for the builtin venue operations.
//
// Call data is a 4-byte function selector followed by the
// deterministic CBOR encoding of the operation's argument struct.
// Empty call data denotes a bare value transfer; its policy slot is
// the zero selector. Call data of 1-3 bytes is malformed and rejected
// before any policy lookup.
//
// Argument structs use `cbor:"N,keyasint"` tags: call data only ever
// crosses the CBOR boundary. Amounts are *big.Int, encoded as CBOR
// bignums.
package calldata

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/ref"
)

// ErrCalldataTooShort is returned for non-empty call data shorter
// than a 4-byte selector.
var ErrCalldataTooShort = errors.New("calldata: data shorter than a selector")

// Canonical signatures for the builtin venue operations. Selectors
// derive from these strings; changing one is a protocol break.
const (
	SigApprove       = "approve(address,uint256)"
	SigVaultDeposit  = "deposit(address,uint256)"
	SigVaultRedeem   = "redeem(address,uint256)"
	SigPoolSupply    = "supply(address,uint256)"
	SigPoolWithdraw  = "withdraw(address,uint256)"
	SigClaimRewards  = "claim((address,address,uint256)[])"
	SigAggregateSwap = "swap(address,address,uint256,uint256)"
)

// Selectors for the builtin venue operations.
var (
	SelectorApprove       = ref.SelectorOf(SigApprove)
	SelectorVaultDeposit  = ref.SelectorOf(SigVaultDeposit)
	SelectorVaultRedeem   = ref.SelectorOf(SigVaultRedeem)
	SelectorPoolSupply    = ref.SelectorOf(SigPoolSupply)
	SelectorPoolWithdraw  = ref.SelectorOf(SigPoolWithdraw)
	SelectorClaimRewards  = ref.SelectorOf(SigClaimRewards)
	SelectorAggregateSwap = ref.SelectorOf(SigAggregateSwap)
)

// Encode builds call data from a selector and an argument struct.
// Pass nil args for operations without arguments.
func Encode(selector ref.Selector, args any) ([]byte, error) {
	data := make([]byte, ref.SelectorLength, ref.SelectorLength+64)
	copy(data, selector[:])
	if args == nil {
		return data, nil
	}
	encoded, err := codec.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("calldata: encoding %s args: %w", selector, err)
	}
	return append(data, encoded...), nil
}

// MustEncode is Encode for statically-known argument values; it
// panics on encoding failure. Intended for tests and builtin flows
// where the argument struct is one of this package's own types.
func MustEncode(selector ref.Selector, args any) []byte {
	data, err := Encode(selector, args)
	if err != nil {
		panic(err)
	}
	return data
}

// SelectorFrom extracts the selector from call data. Empty data
// yields the zero selector (bare value transfer). Non-empty data
// shorter than 4 bytes is malformed.
func SelectorFrom(data []byte) (ref.Selector, error) {
	if len(data) == 0 {
		return ref.Selector{}, nil
	}
	if len(data) < ref.SelectorLength {
		return ref.Selector{}, ErrCalldataTooShort
	}
	var sel ref.Selector
	copy(sel[:], data[:ref.SelectorLength])
	return sel, nil
}

// DecodeArgs decodes the argument bytes following the selector into v.
func DecodeArgs(data []byte, v any) error {
	if len(data) < ref.SelectorLength {
		return ErrCalldataTooShort
	}
	if err := codec.Unmarshal(data[ref.SelectorLength:], v); err != nil {
		return fmt.Errorf("calldata: decoding args: %w", err)
	}
	return nil
}

// ApproveArgs authorizes a spender for an amount of the wallet's
// tokens. Policy typically binds this selector to the allow-all
// sentinel: approvals move no funds by themselves.
type ApproveArgs struct {
	// Token is the token contract whose allowance is being set.
	Token ref.Address `cbor:"1,keyasint"`

	// Spender receives the allowance.
	Spender ref.Address `cbor:"2,keyasint"`

	// Amount is the allowance ceiling.
	Amount *big.Int `cbor:"3,keyasint"`
}

// VaultDepositArgs deposits an asset into an ERC-4626 style vault.
// The call target is the vault.
type VaultDepositArgs struct {
	// Asset is the token being deposited. Must be the vault's
	// underlying asset.
	Asset ref.Address `cbor:"1,keyasint"`

	// Amount is the quantity of Asset to deposit.
	Amount *big.Int `cbor:"2,keyasint"`
}

// VaultRedeemArgs redeems vault shares back into the underlying
// asset. The call target is the vault.
type VaultRedeemArgs struct {
	// Asset is the expected underlying asset.
	Asset ref.Address `cbor:"1,keyasint"`

	// Shares is the quantity of vault shares to redeem.
	Shares *big.Int `cbor:"2,keyasint"`
}

// PoolSupplyArgs supplies an asset to a lending pool. The call target
// is the pool.
type PoolSupplyArgs struct {
	// Asset is the token being supplied.
	Asset ref.Address `cbor:"1,keyasint"`

	// Amount is the quantity of Asset to supply.
	Amount *big.Int `cbor:"2,keyasint"`
}

// PoolWithdrawArgs withdraws a previously supplied asset from a
// lending pool. The call target is the pool.
type PoolWithdrawArgs struct {
	// Asset is the token being withdrawn.
	Asset ref.Address `cbor:"1,keyasint"`

	// Amount is the quantity of Asset to withdraw.
	Amount *big.Int `cbor:"2,keyasint"`
}

// ClaimEntry is one reward claim in a batch.
type ClaimEntry struct {
	// Account is the address credited with the claim. The claim
	// validator requires this to equal the calling wallet.
	Account ref.Address `cbor:"1,keyasint"`

	// Token is the reward token being claimed.
	Token ref.Address `cbor:"2,keyasint"`

	// Amount is the claimed quantity.
	Amount *big.Int `cbor:"3,keyasint"`
}

// ClaimRewardsArgs claims rewards from a distributor. The call target
// is the distributor. The same (Account, Token) pair may appear more
// than once in Claims — consumers doing accounting must aggregate by
// identity rather than assume distinct entries.
type ClaimRewardsArgs struct {
	Claims []ClaimEntry `cbor:"1,keyasint"`
}

// AggregateSwapArgs swaps an input token for an output token through
// a DEX aggregator. The call target is the aggregator. The swap
// validator requires OutputToken to equal the wallet's base asset.
type AggregateSwapArgs struct {
	// InputToken is sold.
	InputToken ref.Address `cbor:"1,keyasint"`

	// OutputToken is bought. Must equal the wallet's base asset.
	OutputToken ref.Address `cbor:"2,keyasint"`

	// AmountIn is the quantity of InputToken sold.
	AmountIn *big.Int `cbor:"3,keyasint"`

	// MinAmountOut is the slippage floor: the swap fails if the
	// aggregator would return less.
	MinAmountOut *big.Int `cbor:"4,keyasint"`
}
