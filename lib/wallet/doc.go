// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package wallet implements the per-agent smart wallet: the sole
// holder of user funds, with an owner-sovereign control surface and a
// single gated execution path for modules.
//
// Every module-driven call runs the same pipeline: module check,
// owner blocklists, target registry, policy validation, then dispatch
// through the registered adapter (or a bare native transfer for empty
// call data). There is no ungated execution path; the owner's own
// authority is limited to withdrawals, module and blocklist
// management, upgrades, and signed requests that traverse the same
// pipeline.
package wallet
