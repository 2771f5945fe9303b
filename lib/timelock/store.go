// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package timelock

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/sqlitepool"
)

// Schema is the proposal queue DDL. Pass it to the pool's OnConnect.
const Schema = `
CREATE TABLE IF NOT EXISTS proposals (
	id           TEXT PRIMARY KEY,
	op           BLOB NOT NULL,
	salt         TEXT NOT NULL,
	scheduled_at INTEGER NOT NULL,
	ready_at     INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	executed_at  INTEGER,
	canceled_at  INTEGER
);
CREATE INDEX IF NOT EXISTS proposals_by_status ON proposals (status, ready_at);
`

// Status of a stored proposal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
	StatusCanceled Status = "canceled"
)

// Proposal is one queued admin operation. The ID commits to the op
// and salt, so the queue deduplicates identical proposals; ScheduledAt
// and ReadyAt are Unix-second timestamps in the store.
type Proposal struct {
	ID          string
	Op          schema.AdminOp
	Salt        string
	ScheduledAt time.Time
	ReadyAt     time.Time
	Status      Status
}

// Store persists the proposal queue in SQLite. Durability matters
// here: a pending proposal is a public commitment to a future
// configuration change, and it must survive a process restart.
type Store struct {
	pool *sqlitepool.Pool
}

// NewStore wraps a pool whose OnConnect applied Schema.
func NewStore(pool *sqlitepool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert adds a pending proposal. Fails with ErrProposalExists if the
// id was ever used, including by executed or canceled proposals.
func (s *Store) Insert(ctx context.Context, p Proposal) error {
	opBytes, err := codec.Marshal(p.Op)
	if err != nil {
		return fmt.Errorf("timelock: encoding op: %w", err)
	}
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT OR IGNORE INTO proposals (id, op, salt, scheduled_at, ready_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{p.ID, opBytes, p.Salt, p.ScheduledAt.Unix(), p.ReadyAt.Unix(), string(StatusPending)},
	})
	if err != nil {
		return fmt.Errorf("timelock: inserting proposal: %w", err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", ErrProposalExists, p.ID)
	}
	return nil
}

// Get returns the proposal with the id.
func (s *Store) Get(ctx context.Context, id string) (Proposal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Proposal{}, err
	}
	defer s.pool.Put(conn)

	var p Proposal
	var found bool
	err = sqlitex.Execute(conn, `
		SELECT id, op, salt, scheduled_at, ready_at, status
		FROM proposals WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			return scanProposal(stmt, &p)
		},
	})
	if err != nil {
		return Proposal{}, fmt.Errorf("timelock: reading proposal: %w", err)
	}
	if !found {
		return Proposal{}, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
	}
	return p, nil
}

// MarkExecuted transitions a pending proposal to executed.
func (s *Store) MarkExecuted(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, StatusExecuted, "executed_at", at)
}

// MarkCanceled transitions a pending proposal to canceled.
func (s *Store) MarkCanceled(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, StatusCanceled, "canceled_at", at)
}

func (s *Store) transition(ctx context.Context, id string, to Status, column string, at time.Time) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	// column is one of two compile-time constants, never user input.
	query := fmt.Sprintf(
		"UPDATE proposals SET status = ?, %s = ? WHERE id = ? AND status = ?", column)
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: []any{string(to), at.Unix(), id, string(StatusPending)},
	})
	if err != nil {
		return fmt.Errorf("timelock: updating proposal: %w", err)
	}
	if conn.Changes() == 0 {
		return fmt.Errorf("%w: %s", ErrProposalNotPending, id)
	}
	return nil
}

// Pending returns all pending proposals ordered by readiness.
func (s *Store) Pending(ctx context.Context) ([]Proposal, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var out []Proposal
	err = sqlitex.Execute(conn, `
		SELECT id, op, salt, scheduled_at, ready_at, status
		FROM proposals WHERE status = ? ORDER BY ready_at, id`, &sqlitex.ExecOptions{
		Args: []any{string(StatusPending)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var p Proposal
			if err := scanProposal(stmt, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("timelock: listing pending: %w", err)
	}
	return out, nil
}

func scanProposal(stmt *sqlite.Stmt, p *Proposal) error {
	p.ID = stmt.ColumnText(0)
	opBytes := make([]byte, stmt.ColumnLen(1))
	stmt.ColumnBytes(1, opBytes)
	if err := codec.Unmarshal(opBytes, &p.Op); err != nil {
		return fmt.Errorf("timelock: decoding op for %s: %w", p.ID, err)
	}
	p.Salt = stmt.ColumnText(2)
	p.ScheduledAt = time.Unix(stmt.ColumnInt64(3), 0).UTC()
	p.ReadyAt = time.Unix(stmt.ColumnInt64(4), 0).UTC()
	p.Status = Status(stmt.ColumnText(5))
	return nil
}
