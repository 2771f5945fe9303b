// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Custodia
// packages.
//
// [Pool] opens a SQLite pool over a temporary database with a schema
// applied, closed automatically when the test completes. The timelock
// queue and the audit log tests both need one; this is the single
// place that knows how to stand one up.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// proposal salts or request ids.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
