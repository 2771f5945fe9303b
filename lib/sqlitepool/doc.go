// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the Custodia-standard SQLite connection
// pool.
//
// The durable stores — the timelock proposal queue and the audit
// event log — share this package. It wraps zombiezen.com/go/sqlite
// with fixed pragmas: WAL journal mode, NORMAL synchronous, a busy
// timeout for write contention, and memory-mapped reads. NORMAL
// synchronous survives process crashes; it is not durable across
// power loss, which is acceptable because proposals can be re-posed
// and the audit chain detects truncation on verification.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back. Connections are not safe for concurrent use; the pool is.
// There is deliberately no query-builder layer on top — stores write
// SQL and use sqlitex.Execute directly.
package sqlitepool
