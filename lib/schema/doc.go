// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the shared data contracts between Custodia
// components: the structured events emitted by every privileged
// mutation and executed action, and the admin operation payloads the
// timelock queues and dispatches.
//
// Events carry before/after state where a mutation replaces a value,
// so off-chain indexers can reconstruct history without replaying.
// Event types use `json` tags only — they appear both in CLI output
// (JSON) and in the audit store (CBOR via tag fallback).
//
// Admin operations only ever cross the CBOR boundary (timelock queue,
// proposal ids) and use `cbor:"N,keyasint"` tags.
//
// This package holds pure data contracts and depends only on lib/ref.
package schema
