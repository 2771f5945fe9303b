// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package venue defines the adapter layer between gated wallet
// execution and external yield venues.
//
// An [Adapter] is a stateless, protocol-specific call shim: it
// decodes typed arguments from call data and invokes the narrow venue
// interface (Vault, LendingPool, Distributor, Aggregator) bound to
// the target address. Adapters run with borrowed wallet authority —
// an [Exec] context scoped to one call — and never hold a standing
// credential over any wallet.
//
// Venue implementations keep all mutable bookkeeping in the journaled
// ledger (balances and storage cells), so a failed or reverted call
// leaves no venue-side residue.
package venue

import (
	"errors"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/state"
)

// Typed failures shared by adapters and venue implementations.
var (
	ErrUnknownTarget    = errors.New("venue: no venue bound to target")
	ErrIncompatibleKind = errors.New("venue: target venue kind does not match adapter")
	ErrUnknownOperation = errors.New("venue: selector not handled by this adapter")
	ErrAssetMismatch    = errors.New("venue: asset does not match venue configuration")
	ErrSlippage         = errors.New("venue: output below minimum amount")
	ErrNoEntitlement    = errors.New("venue: claim exceeds recorded entitlement")
)

// Call is one proposed execution leg: a target, an optional native
// value, and selector-prefixed call data (empty for bare transfers).
type Call struct {
	Target ref.Address
	Value  *big.Int
	Data   []byte
}

// Exec is the borrowed wallet authority handed to an adapter for the
// duration of exactly one call. It carries the calling wallet's
// identity and the live ledger; adapters must not retain it.
type Exec struct {
	// Ledger is the journaled state being mutated.
	Ledger *state.Ledger

	// Wallet is the wallet whose authority is borrowed. All asset
	// movement is from or to this address.
	Wallet ref.Address
}

// Bindings resolves target addresses to venue implementations. The
// host implements this over its contract table.
type Bindings interface {
	// Venue returns the implementation bound to the target address.
	// The concrete type determines which adapters can drive it.
	Venue(target ref.Address) (any, bool)
}

// Adapter executes one validated call against a target with borrowed
// wallet authority.
type Adapter interface {
	Execute(exec *Exec, target ref.Address, value *big.Int, data []byte) error
}

// Vault is the ERC-4626 style venue surface.
type Vault interface {
	// Deposit moves amount of asset from the wallet into the vault
	// and credits the wallet with shares.
	Deposit(exec *Exec, asset ref.Address, amount *big.Int) error

	// Redeem burns the wallet's shares and returns the underlying
	// asset.
	Redeem(exec *Exec, asset ref.Address, shares *big.Int) error
}

// LendingPool is the lending venue surface.
type LendingPool interface {
	// Supply moves amount of asset from the wallet into the pool.
	Supply(exec *Exec, asset ref.Address, amount *big.Int) error

	// Withdraw returns previously supplied asset to the wallet.
	Withdraw(exec *Exec, asset ref.Address, amount *big.Int) error
}

// Distributor is the reward-claim venue surface. Claims have already
// passed policy validation; the distributor enforces entitlements.
type Distributor interface {
	Claim(exec *Exec, claims []ClaimRequest) error
}

// ClaimRequest is one decoded claim leg handed to a Distributor.
type ClaimRequest struct {
	Account ref.Address
	Token   ref.Address
	Amount  *big.Int
}

// Aggregator is the DEX-aggregator venue surface.
type Aggregator interface {
	// Swap sells amountIn of input for output, crediting the wallet
	// with at least minOut of output or failing with ErrSlippage.
	Swap(exec *Exec, input, output ref.Address, amountIn, minOut *big.Int) (*big.Int, error)
}
