// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for Custodia
// hosts.
//
// Configuration is loaded from a single file specified by either the
// CUSTODIA_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The configuration file supports environment-specific sections
// (development, staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter:
// the timelock delay may not be configured below the 24 hour floor.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${CUSTODIA_ROOT}, and ${VAR:-default} patterns are
// expanded. No other environment variables override config values.
//
// The genesis seed — the initial adapters, targets, policy slots,
// and operator credentials — lives in a separate JSONC file referenced
// from the config; see [LoadGenesis].
//
// This package depends only on lib/ref.
package config
