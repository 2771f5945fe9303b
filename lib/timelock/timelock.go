// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package timelock queues privileged configuration changes behind a
// mandatory delay.
//
// Every trust-granting mutation of the registry, policy table, router
// operator set, or factory rides through here: a proposer schedules an
// [schema.AdminOp] with a salt, the proposal matures after the
// configured delay, and an executor applies it. The window between
// scheduling and execution is the users' exit guarantee — an owner who
// dislikes a pending change can withdraw before it lands.
//
// Trust-revoking operations additionally have an instant path for
// emergency callers. Grants never do.
package timelock

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"

	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/schema"
)

// DefaultMinDelay applies when the config leaves MinDelay zero.
const DefaultMinDelay = 24 * time.Hour

// Typed failures.
var (
	ErrNotProposer        = errors.New("timelock: caller is not a proposer")
	ErrNotExecutor        = errors.New("timelock: caller is not an executor")
	ErrNotEmergency       = errors.New("timelock: caller is not an emergency caller")
	ErrNotRevocation      = errors.New("timelock: only revocations may bypass the delay")
	ErrProposalExists     = errors.New("timelock: proposal already scheduled")
	ErrProposalNotFound   = errors.New("timelock: proposal not found")
	ErrProposalNotPending = errors.New("timelock: proposal is not pending")
	ErrNotReady           = errors.New("timelock: proposal has not matured")
)

// proposalDomainKey is the BLAKE3 keyed-hash domain for proposal ids.
var proposalDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 't', 'i', 'm', 'e',
	'l', 'o', 'c', 'k', '.', 'p', 'r', 'o', 'p', 'o', 's', 'a', 'l', 0, 0, 0, 0, 0, 0,
}

// Applier executes a matured admin operation against live state. The
// host implements this by dispatching on the op kind.
type Applier interface {
	Apply(op schema.AdminOp) error
}

// Config wires a Timelock.
type Config struct {
	// Proposers may schedule and cancel proposals.
	Proposers []ref.Address

	// Executors may apply matured proposals. The executor identity is
	// also the admin caller the Applier presents downstream.
	Executors []ref.Address

	// Emergency callers may run revocations instantly and cancel any
	// pending proposal.
	Emergency []ref.Address

	// MinDelay is the mandatory maturation delay. Zero means
	// DefaultMinDelay.
	MinDelay time.Duration

	// Store persists the queue. Required.
	Store *Store

	// Applier executes matured ops. Required.
	Applier Applier

	Clock  clock.Clock
	Events schema.Sink
	Logger *slog.Logger
}

// Timelock is the delayed admin-operation queue.
type Timelock struct {
	proposers map[ref.Address]bool
	executors map[ref.Address]bool
	emergency map[ref.Address]bool
	minDelay  time.Duration
	store     *Store
	applier   Applier
	clock     clock.Clock
	events    schema.Sink
	logger    *slog.Logger
}

// New constructs a Timelock.
func New(cfg Config) (*Timelock, error) {
	if cfg.Store == nil {
		return nil, errors.New("timelock: Config.Store is required")
	}
	if cfg.Applier == nil {
		return nil, errors.New("timelock: Config.Applier is required")
	}
	if len(cfg.Proposers) == 0 {
		return nil, errors.New("timelock: at least one proposer is required")
	}
	if len(cfg.Executors) == 0 {
		return nil, errors.New("timelock: at least one executor is required")
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = DefaultMinDelay
	}
	if cfg.MinDelay < 0 {
		return nil, errors.New("timelock: MinDelay must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Events == nil {
		cfg.Events = schema.DiscardSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Timelock{
		proposers: addressSet(cfg.Proposers),
		executors: addressSet(cfg.Executors),
		emergency: addressSet(cfg.Emergency),
		minDelay:  cfg.MinDelay,
		store:     cfg.Store,
		applier:   cfg.Applier,
		clock:     cfg.Clock,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}, nil
}

func addressSet(addrs []ref.Address) map[ref.Address]bool {
	set := make(map[ref.Address]bool, len(addrs))
	for _, a := range addrs {
		set[a] = true
	}
	return set
}

// MinDelay returns the configured maturation delay.
func (t *Timelock) MinDelay() time.Duration { return t.minDelay }

// ProposalID derives the deterministic id for an op and salt: the
// BLAKE3 keyed hash of the op's canonical encoding and the salt. The
// same op may be queued twice only under different salts.
func ProposalID(op schema.AdminOp, salt string) (string, error) {
	opBytes, err := codec.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("timelock: encoding op: %w", err)
	}
	hasher, err := blake3.NewKeyed(proposalDomainKey[:])
	if err != nil {
		panic("timelock: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(opBytes)
	hasher.Write([]byte(salt))
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Propose validates and schedules an op. The proposal matures at
// now + MinDelay. Field-level validity is checked here; state-level
// validity (does the adapter exist, is the slot free) is checked at
// execution time against the state that will actually be mutated.
func (t *Timelock) Propose(ctx context.Context, caller ref.Address, op schema.AdminOp, salt string) (string, error) {
	if !t.proposers[caller] {
		return "", fmt.Errorf("%w: %s", ErrNotProposer, caller)
	}
	if err := op.Validate(); err != nil {
		return "", err
	}
	id, err := ProposalID(op, salt)
	if err != nil {
		return "", err
	}
	now := t.clock.Now()
	readyAt := now.Add(t.minDelay)
	err = t.store.Insert(ctx, Proposal{
		ID:          id,
		Op:          op,
		Salt:        salt,
		ScheduledAt: now,
		ReadyAt:     readyAt,
	})
	if err != nil {
		return "", err
	}
	t.events.Emit(schema.ProposalScheduled{
		ID: id, OpKind: op.Kind, Salt: salt, ReadyAt: readyAt.Unix(),
	})
	t.logger.Info("proposal scheduled",
		"id", id, "kind", op.Kind, "ready_at", readyAt)
	return id, nil
}

// Execute applies a matured proposal. If the Applier fails, the
// proposal stays pending so the executor can retry once the state
// conflict clears.
func (t *Timelock) Execute(ctx context.Context, caller ref.Address, id string) error {
	if !t.executors[caller] {
		return fmt.Errorf("%w: %s", ErrNotExecutor, caller)
	}
	p, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != StatusPending {
		return fmt.Errorf("%w: %s is %s", ErrProposalNotPending, id, p.Status)
	}
	now := t.clock.Now()
	if now.Before(p.ReadyAt) {
		return fmt.Errorf("%w: ready at %s, now %s",
			ErrNotReady, p.ReadyAt.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if err := t.applier.Apply(p.Op); err != nil {
		t.logger.Warn("proposal application failed",
			"id", id, "kind", p.Op.Kind, "error", err)
		return fmt.Errorf("timelock: applying %s: %w", id, err)
	}
	if err := t.store.MarkExecuted(ctx, id, now); err != nil {
		return err
	}
	t.events.Emit(schema.ProposalExecuted{ID: id, OpKind: p.Op.Kind, Salt: p.Salt})
	t.logger.Info("proposal executed", "id", id, "kind", p.Op.Kind)
	return nil
}

// Cancel withdraws a pending proposal. Proposers and emergency
// callers may cancel.
func (t *Timelock) Cancel(ctx context.Context, caller ref.Address, id string) error {
	if !t.proposers[caller] && !t.emergency[caller] {
		return fmt.Errorf("%w: %s", ErrNotProposer, caller)
	}
	p, err := t.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := t.store.MarkCanceled(ctx, id, t.clock.Now()); err != nil {
		return err
	}
	t.events.Emit(schema.ProposalCanceled{ID: id, OpKind: p.Op.Kind, Salt: p.Salt})
	t.logger.Info("proposal canceled", "id", id, "kind", p.Op.Kind)
	return nil
}

// ExecuteEmergency applies a revocation immediately, bypassing the
// queue. Only emergency callers, and only for revocation kinds; a
// grant through this path fails with ErrNotRevocation no matter who
// asks.
func (t *Timelock) ExecuteEmergency(caller ref.Address, op schema.AdminOp) error {
	if !t.emergency[caller] {
		return fmt.Errorf("%w: %s", ErrNotEmergency, caller)
	}
	if err := op.Validate(); err != nil {
		return err
	}
	if !op.Kind.IsRevocation() {
		return fmt.Errorf("%w: %s", ErrNotRevocation, op.Kind)
	}
	if err := t.applier.Apply(op); err != nil {
		return fmt.Errorf("timelock: emergency %s: %w", op.Kind, err)
	}
	t.events.Emit(schema.EmergencyExecuted{Caller: caller, OpKind: op.Kind})
	t.logger.Warn("emergency revocation executed", "caller", caller, "kind", op.Kind)
	return nil
}

// Pending lists the queue, soonest-maturing first.
func (t *Timelock) Pending(ctx context.Context) ([]Proposal, error) {
	return t.store.Pending(ctx)
}

// Proposal returns one proposal by id.
func (t *Timelock) Proposal(ctx context.Context, id string) (Proposal, error) {
	return t.store.Get(ctx, id)
}
