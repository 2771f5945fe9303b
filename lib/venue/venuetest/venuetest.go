// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package venuetest provides in-memory venue implementations for
// tests and the local harness. All mutable bookkeeping lives in
// ledger balances and storage cells, so reverting a ledger snapshot
// rolls the venues back along with wallet balances.
package venuetest

import (
	"fmt"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/state"
	"github.com/custodia-foundation/custodia/lib/venue"
)

// Vault is an ERC-4626 style vault with a 1:1 exchange rate. Shares
// are tracked as a ledger token whose token address is the vault
// itself; redeemed shares return to the vault's own balance.
type Vault struct {
	Addr  ref.Address
	Asset ref.Address
}

var _ venue.Vault = (*Vault)(nil)

func (v *Vault) Deposit(exec *venue.Exec, asset ref.Address, amount *big.Int) error {
	if asset != v.Asset {
		return fmt.Errorf("%w: vault %s holds %s, got %s",
			venue.ErrAssetMismatch, v.Addr, v.Asset, asset)
	}
	if err := exec.Ledger.Transfer(asset, exec.Wallet, v.Addr, amount); err != nil {
		return err
	}
	if err := exec.Ledger.Mint(v.Addr, exec.Wallet, amount); err != nil {
		return err
	}
	return exec.Ledger.AddStorage(v.Addr, "totalShares", amount)
}

func (v *Vault) Redeem(exec *venue.Exec, asset ref.Address, shares *big.Int) error {
	if asset != v.Asset {
		return fmt.Errorf("%w: vault %s holds %s, got %s",
			venue.ErrAssetMismatch, v.Addr, v.Asset, asset)
	}
	if exec.Ledger.BalanceOf(v.Addr, exec.Wallet).Cmp(shares) < 0 {
		return fmt.Errorf("%w: wallet %s holds %s shares of vault %s, need %s",
			state.ErrInsufficientShares,
			exec.Wallet, exec.Ledger.BalanceOf(v.Addr, exec.Wallet), v.Addr, shares)
	}
	if err := exec.Ledger.Transfer(v.Addr, exec.Wallet, v.Addr, shares); err != nil {
		return err
	}
	if err := exec.Ledger.AddStorage(v.Addr, "totalShares", new(big.Int).Neg(shares)); err != nil {
		return err
	}
	return exec.Ledger.Transfer(asset, v.Addr, exec.Wallet, shares)
}

// Pool is a lending pool. Supplied principal is recorded per wallet
// and asset in a storage cell; withdrawals may not exceed it.
type Pool struct {
	Addr ref.Address
}

var _ venue.LendingPool = (*Pool)(nil)

func (p *Pool) slot(asset, wallet ref.Address) string {
	return "supplied/" + asset.String() + "/" + wallet.String()
}

func (p *Pool) Supply(exec *venue.Exec, asset ref.Address, amount *big.Int) error {
	if err := exec.Ledger.Transfer(asset, exec.Wallet, p.Addr, amount); err != nil {
		return err
	}
	return exec.Ledger.AddStorage(p.Addr, p.slot(asset, exec.Wallet), amount)
}

func (p *Pool) Withdraw(exec *venue.Exec, asset ref.Address, amount *big.Int) error {
	if err := exec.Ledger.AddStorage(p.Addr, p.slot(asset, exec.Wallet), new(big.Int).Neg(amount)); err != nil {
		return fmt.Errorf("withdraw %s of %s from pool %s: %w", amount, asset, p.Addr, err)
	}
	return exec.Ledger.Transfer(asset, p.Addr, exec.Wallet, amount)
}

// Distributor pays out recorded reward entitlements. Entitlements are
// storage cells keyed by token and account; Grant funds them for
// tests.
type Distributor struct {
	Addr ref.Address
}

var _ venue.Distributor = (*Distributor)(nil)

func (d *Distributor) slot(token, account ref.Address) string {
	return "reward/" + token.String() + "/" + account.String()
}

// Grant records an entitlement and funds the distributor to cover it.
func (d *Distributor) Grant(ledger *state.Ledger, token, account ref.Address, amount *big.Int) error {
	if err := ledger.Mint(token, d.Addr, amount); err != nil {
		return err
	}
	return ledger.AddStorage(d.Addr, d.slot(token, account), amount)
}

func (d *Distributor) Claim(exec *venue.Exec, claims []venue.ClaimRequest) error {
	// Claims for the same account and token aggregate, so a batch
	// may not draw more than the recorded entitlement in total.
	for _, c := range claims {
		if err := exec.Ledger.AddStorage(d.Addr, d.slot(c.Token, c.Account), new(big.Int).Neg(c.Amount)); err != nil {
			return fmt.Errorf("%w: %s of %s for %s",
				venue.ErrNoEntitlement, c.Amount, c.Token, c.Account)
		}
		if err := exec.Ledger.Transfer(c.Token, d.Addr, c.Account, c.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Aggregator swaps at a fixed integer rate out = in * RateNum /
// RateDen, drawing output from its own pre-funded inventory.
type Aggregator struct {
	Addr    ref.Address
	RateNum *big.Int
	RateDen *big.Int
}

var _ venue.Aggregator = (*Aggregator)(nil)

func (a *Aggregator) Swap(exec *venue.Exec, input, output ref.Address, amountIn, minOut *big.Int) (*big.Int, error) {
	out := new(big.Int).Mul(amountIn, a.RateNum)
	out.Div(out, a.RateDen)
	if out.Cmp(minOut) < 0 {
		return nil, fmt.Errorf("%w: would receive %s of %s, need %s",
			venue.ErrSlippage, out, output, minOut)
	}
	if err := exec.Ledger.Transfer(input, exec.Wallet, a.Addr, amountIn); err != nil {
		return nil, err
	}
	if err := exec.Ledger.Transfer(output, a.Addr, exec.Wallet, out); err != nil {
		return nil, err
	}
	return out, nil
}
