// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package auditstore persists the platform event stream as a
// hash-chained SQLite log.
//
// The store is the production [schema.Sink]: every registry, policy,
// router, factory, wallet, and timelock mutation lands here. Each row
// carries a BLAKE3 keyed hash over the previous row's hash and the
// event content, so truncation or in-place tampering is detectable by
// replaying the chain. Large payloads are zstd-compressed at rest.
//
// Emit never fails the mutation that produced the event; storage
// errors are logged and the event is dropped. The chain remains
// consistent because the head only advances on a successful insert.
package auditstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/lib/clock"
	"github.com/custodia-foundation/custodia/lib/schema"
	"github.com/custodia-foundation/custodia/lib/sqlitepool"
)

// Schema is the audit log DDL. Pass it to the pool's OnConnect.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	recorded_at  INTEGER NOT NULL,
	payload      BLOB NOT NULL,
	payload_size INTEGER NOT NULL,
	compressed   INTEGER NOT NULL DEFAULT 0,
	prev_hash    BLOB NOT NULL,
	hash         BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_events_by_kind ON audit_events (kind, seq);
`

// DefaultCompressThreshold is the payload size above which zstd is
// attempted.
const DefaultCompressThreshold = 256

// ErrChainBroken is returned by Verify when a recomputed hash does
// not match the stored one.
var ErrChainBroken = errors.New("auditstore: hash chain broken")

// chainDomainKey is the BLAKE3 keyed-hash domain for the audit chain.
var chainDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 'a', 'u', 'd', 'i',
	't', '.', 'c', 'h', 'a', 'i', 'n', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Shared codecs, safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("auditstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("auditstore: zstd decoder initialization failed: " + err.Error())
	}
}

// Record is one stored audit event with its decompressed payload.
type Record struct {
	Seq        int64
	Kind       string
	RecordedAt time.Time
	Payload    []byte
	PrevHash   []byte
	Hash       []byte
}

// Config wires a Store.
type Config struct {
	// Pool is the SQLite pool, with Schema applied on connect.
	// Required.
	Pool *sqlitepool.Pool

	// CompressThreshold is the payload size in bytes above which zstd
	// compression is attempted. Zero means
	// DefaultCompressThreshold; negative disables compression.
	CompressThreshold int

	Clock  clock.Clock
	Logger *slog.Logger
}

// Store is the hash-chained audit log. Safe for concurrent use.
type Store struct {
	pool      *sqlitepool.Pool
	threshold int
	clock     clock.Clock
	logger    *slog.Logger

	mu   sync.Mutex
	head []byte
}

var _ schema.Sink = (*Store)(nil)

// Open constructs a Store and loads the current chain head.
func Open(cfg Config) (*Store, error) {
	if cfg.Pool == nil {
		return nil, errors.New("auditstore: Config.Pool is required")
	}
	if cfg.CompressThreshold == 0 {
		cfg.CompressThreshold = DefaultCompressThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Store{
		pool:      cfg.Pool,
		threshold: cfg.CompressThreshold,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		head:      make([]byte, 32),
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	err = sqlitex.Execute(conn, `
		SELECT hash FROM audit_events ORDER BY seq DESC LIMIT 1`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			head := make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, head)
			s.head = head
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auditstore: loading chain head: %w", err)
	}
	return s, nil
}

// Emit implements schema.Sink. Failures are logged, never returned —
// audit recording must not veto the mutation it describes.
func (s *Store) Emit(event schema.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("audit event encoding failed",
			"kind", event.Kind(), "error", err)
		return
	}
	if err := s.append(event.Kind(), payload); err != nil {
		s.logger.Error("audit event dropped",
			"kind", event.Kind(), "error", err)
	}
}

func (s *Store) append(kind string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	hash := chainHash(s.head, kind, now.Unix(), payload)

	stored := payload
	compressed := false
	if s.threshold >= 0 && len(payload) > s.threshold {
		if candidate := zstdEncoder.EncodeAll(payload, nil); len(candidate) < len(payload) {
			stored = candidate
			compressed = true
		}
	}

	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO audit_events (kind, recorded_at, payload, payload_size, compressed, prev_hash, hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{kind, now.Unix(), stored, len(payload), boolToInt(compressed), s.head, hash},
	})
	if err != nil {
		return fmt.Errorf("auditstore: inserting event: %w", err)
	}
	s.head = hash
	return nil
}

// Tail returns the most recent records, newest first.
func (s *Store) Tail(ctx context.Context, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, kind, recorded_at, payload, payload_size, compressed, prev_hash, hash
		FROM audit_events ORDER BY seq DESC LIMIT ?`, limit)
}

// ByKind returns the most recent records of one kind, newest first.
func (s *Store) ByKind(ctx context.Context, kind string, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT seq, kind, recorded_at, payload, payload_size, compressed, prev_hash, hash
		FROM audit_events WHERE kind = ? ORDER BY seq DESC LIMIT ?`, kind, limit)
}

func (s *Store) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var out []Record
	err = sqlitex.Execute(conn, sql, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rec, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			out = append(out, rec)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("auditstore: query: %w", err)
	}
	return out, nil
}

// Verify replays the whole chain and returns the number of verified
// records. A mismatch fails with ErrChainBroken naming the sequence
// number.
func (s *Store) Verify(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	prev := make([]byte, 32)
	count := 0
	err = sqlitex.Execute(conn, `
		SELECT seq, kind, recorded_at, payload, payload_size, compressed, prev_hash, hash
		FROM audit_events ORDER BY seq`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rec, err := scanRecord(stmt)
			if err != nil {
				return err
			}
			if !bytes.Equal(rec.PrevHash, prev) {
				return fmt.Errorf("%w: seq %d links to a different predecessor", ErrChainBroken, rec.Seq)
			}
			want := chainHash(prev, rec.Kind, rec.RecordedAt.Unix(), rec.Payload)
			if !bytes.Equal(rec.Hash, want) {
				return fmt.Errorf("%w: seq %d content does not match its hash", ErrChainBroken, rec.Seq)
			}
			prev = rec.Hash
			count++
			return nil
		},
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

func scanRecord(stmt *sqlite.Stmt) (Record, error) {
	rec := Record{
		Seq:        stmt.ColumnInt64(0),
		Kind:       stmt.ColumnText(1),
		RecordedAt: time.Unix(stmt.ColumnInt64(2), 0).UTC(),
	}
	payload := make([]byte, stmt.ColumnLen(3))
	stmt.ColumnBytes(3, payload)
	size := stmt.ColumnInt(4)
	if stmt.ColumnInt(5) != 0 {
		decoded, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return Record{}, fmt.Errorf("auditstore: decompressing seq %d: %w", rec.Seq, err)
		}
		if len(decoded) != size {
			return Record{}, fmt.Errorf("auditstore: seq %d decompressed to %d bytes, want %d",
				rec.Seq, len(decoded), size)
		}
		payload = decoded
	}
	rec.Payload = payload
	rec.PrevHash = make([]byte, stmt.ColumnLen(6))
	stmt.ColumnBytes(6, rec.PrevHash)
	rec.Hash = make([]byte, stmt.ColumnLen(7))
	stmt.ColumnBytes(7, rec.Hash)
	return rec, nil
}

func chainHash(prev []byte, kind string, recordedAt int64, payload []byte) []byte {
	hasher, err := blake3.NewKeyed(chainDomainKey[:])
	if err != nil {
		panic("auditstore: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(prev)
	hasher.Write([]byte(kind))
	var at [8]byte
	binary.BigEndian.PutUint64(at[:], uint64(recordedAt))
	hasher.Write(at[:])
	hasher.Write(payload)
	return hasher.Sum(nil)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
