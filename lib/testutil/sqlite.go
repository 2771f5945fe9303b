// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/custodia-foundation/custodia/lib/sqlitepool"
)

// Pool opens a small SQLite pool over a fresh database in the test's
// temporary directory, applying ddl on every connection. The pool is
// closed when the test completes.
func Pool(t *testing.T, ddl string) *sqlitepool.Pool {
	t.Helper()

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, ddl, nil)
		},
	})
	if err != nil {
		t.Fatalf("opening test pool: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Close(); err != nil {
			t.Errorf("closing test pool: %v", err)
		}
	})
	return pool
}
