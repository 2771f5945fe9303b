// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/custodia-foundation/custodia/lib/ref"
)

// Resource failures. Callers branch on these with errors.Is — the
// taxonomy deliberately keeps "not enough balance", "not enough
// shares", and "not enough allowance" distinct.
var (
	ErrInsufficientBalance   = errors.New("state: insufficient balance")
	ErrInsufficientShares    = errors.New("state: insufficient shares")
	ErrInsufficientAllowance = errors.New("state: insufficient allowance")
	ErrZeroRecipient         = errors.New("state: zero recipient address")
	ErrNegativeAmount        = errors.New("state: negative amount")
)

type tokenKey struct {
	token  ref.Address
	holder ref.Address
}

type allowanceKey struct {
	token   ref.Address
	owner   ref.Address
	spender ref.Address
}

type storageKey struct {
	contract ref.Address
	slot     string
}

// Ledger holds all mutable chain-model state. Construct with
// NewLedger. Not safe for concurrent use.
type Ledger struct {
	native     map[ref.Address]*big.Int
	tokens     map[tokenKey]*big.Int
	allowances map[allowanceKey]*big.Int
	storage    map[storageKey]*big.Int

	// journal holds undo closures, one per mutation, in application
	// order. RevertToSnapshot executes them in reverse.
	journal []func()
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		native:     make(map[ref.Address]*big.Int),
		tokens:     make(map[tokenKey]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		storage:    make(map[storageKey]*big.Int),
	}
}

// Snapshot marks the current journal position. Pass the returned id
// to RevertToSnapshot to unwind every mutation made after this call.
// Snapshots nest: reverting to an outer snapshot also unwinds inner
// ones.
func (l *Ledger) Snapshot() int {
	return len(l.journal)
}

// RevertToSnapshot unwinds all mutations made since the snapshot was
// taken. Panics if id does not correspond to a live snapshot — that
// is a programming error, not a recoverable condition.
func (l *Ledger) RevertToSnapshot(id int) {
	if id < 0 || id > len(l.journal) {
		panic(fmt.Sprintf("state: invalid snapshot id %d (journal length %d)", id, len(l.journal)))
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
}

// BalanceOf returns the holder's balance of a token. The returned
// value is a copy.
func (l *Ledger) BalanceOf(token, holder ref.Address) *big.Int {
	if balance, ok := l.tokens[tokenKey{token, holder}]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// NativeBalance returns the holder's native-asset balance as a copy.
func (l *Ledger) NativeBalance(holder ref.Address) *big.Int {
	if balance, ok := l.native[holder]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// Mint credits amount of token to the holder. Used by tests and venue
// mocks; there is no burn — venues move value with Transfer.
func (l *Ledger) Mint(token, holder ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.addToken(token, holder, amount)
	return nil
}

// MintNative credits native asset to the holder.
func (l *Ledger) MintNative(holder ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.addNative(holder, amount)
	return nil
}

// Transfer moves amount of token from one holder to another. Fails
// with ErrZeroRecipient for a zero `to` and ErrInsufficientBalance if
// the sender's balance is short. A zero-amount transfer is a no-op.
func (l *Ledger) Transfer(token, from, to ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	if amount.Sign() == 0 {
		return nil
	}
	if l.BalanceOf(token, from).Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s of %s, need %s",
			ErrInsufficientBalance, from, l.BalanceOf(token, from), token, amount)
	}
	l.addToken(token, from, new(big.Int).Neg(amount))
	l.addToken(token, to, amount)
	return nil
}

// TransferNative moves native asset between holders with the same
// failure semantics as Transfer.
func (l *Ledger) TransferNative(from, to ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	if amount.Sign() == 0 {
		return nil
	}
	if l.NativeBalance(from).Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s native, need %s",
			ErrInsufficientBalance, from, l.NativeBalance(from), amount)
	}
	l.addNative(from, new(big.Int).Neg(amount))
	l.addNative(to, amount)
	return nil
}

// Approve sets the spender's allowance over the owner's tokens,
// replacing any previous allowance.
func (l *Ledger) Approve(token, owner, spender ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	key := allowanceKey{token, owner, spender}
	previous := l.allowances[key]
	l.journal = append(l.journal, func() {
		if previous == nil {
			delete(l.allowances, key)
		} else {
			l.allowances[key] = previous
		}
	})
	l.allowances[key] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the spender's remaining allowance over the
// owner's tokens as a copy.
func (l *Ledger) Allowance(token, owner, spender ref.Address) *big.Int {
	if allowance, ok := l.allowances[allowanceKey{token, owner, spender}]; ok {
		return new(big.Int).Set(allowance)
	}
	return new(big.Int)
}

// TransferFrom moves tokens on behalf of the owner, consuming the
// spender's allowance. Fails with ErrInsufficientAllowance before
// checking the balance, so the two causes stay distinguishable.
func (l *Ledger) TransferFrom(token, spender, owner, to ref.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount.Sign() == 0 {
		return nil
	}
	allowance := l.Allowance(token, owner, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s allowed %s of %s from %s, need %s",
			ErrInsufficientAllowance, spender, allowance, token, owner, amount)
	}
	if err := l.Transfer(token, owner, to, amount); err != nil {
		return err
	}
	return l.Approve(token, owner, spender, new(big.Int).Sub(allowance, amount))
}

// Storage returns the value of a contract storage cell as a copy.
// Unset cells read as zero.
func (l *Ledger) Storage(contract ref.Address, slot string) *big.Int {
	if value, ok := l.storage[storageKey{contract, slot}]; ok {
		return new(big.Int).Set(value)
	}
	return new(big.Int)
}

// SetStorage writes a contract storage cell.
func (l *Ledger) SetStorage(contract ref.Address, slot string, value *big.Int) {
	key := storageKey{contract, slot}
	previous := l.storage[key]
	l.journal = append(l.journal, func() {
		if previous == nil {
			delete(l.storage, key)
		} else {
			l.storage[key] = previous
		}
	})
	l.storage[key] = new(big.Int).Set(value)
}

// AddStorage adjusts a storage cell by delta (which may be negative).
// Fails with ErrInsufficientShares if the result would be negative —
// venue share accounting is the only user of negative deltas.
func (l *Ledger) AddStorage(contract ref.Address, slot string, delta *big.Int) error {
	next := new(big.Int).Add(l.Storage(contract, slot), delta)
	if next.Sign() < 0 {
		return fmt.Errorf("%w: storage %s/%s would underflow", ErrInsufficientShares, contract, slot)
	}
	l.SetStorage(contract, slot, next)
	return nil
}

func (l *Ledger) addToken(token, holder ref.Address, delta *big.Int) {
	key := tokenKey{token, holder}
	previous := l.tokens[key]
	l.journal = append(l.journal, func() {
		if previous == nil {
			delete(l.tokens, key)
		} else {
			l.tokens[key] = previous
		}
	})
	next := new(big.Int)
	if previous != nil {
		next.Set(previous)
	}
	l.tokens[key] = next.Add(next, delta)
}

func (l *Ledger) addNative(holder ref.Address, delta *big.Int) {
	previous := l.native[holder]
	l.journal = append(l.journal, func() {
		if previous == nil {
			delete(l.native, holder)
		} else {
			l.native[holder] = previous
		}
	})
	next := new(big.Int)
	if previous != nil {
		next.Set(previous)
	}
	l.native[holder] = next.Add(next, delta)
}

func checkAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: nil amount", ErrNegativeAmount)
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return nil
}
