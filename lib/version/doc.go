// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build metadata for Custodia binaries.
//
// Release builds stamp [Version], [Commit], [Dirty], and [Date]
// through -ldflags -X. Unstamped builds fall back to the VCS settings
// the Go toolchain embeds, so `go install` binaries still report a
// commit. [Current] resolves the final view; [Full] formats it for
// the CLI's version subcommand.
package version
