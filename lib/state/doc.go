// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package state implements the deterministic ledger every Custodia
// component mutates: token balances, native balances, token
// allowances, and per-contract storage cells.
//
// The execution model is single-writer and globally serialized — the
// host applies one transition at a time, and each transition either
// fully applies or fully reverts. Reversal is implemented with a
// journal: every mutation appends an undo entry, [Ledger.Snapshot]
// marks a journal position, and [Ledger.RevertToSnapshot] unwinds back
// to a mark. Atomic action batches and failed venue calls both roll
// back through the same mechanism, so there is no state a partial
// failure can leave behind.
//
// Venue contracts keep their own bookkeeping (vault share supply,
// pool deposits, distributor entitlements) in journaled storage cells
// rather than private fields, which is what makes a batch revert roll
// venue state back together with wallet balances.
//
// Ledger is not safe for concurrent use; the host serializes access.
package state
