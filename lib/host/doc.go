// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package host assembles a complete platform instance: the shared
// ledger, the contract table, registry, policy engine, factory, and
// router, wired together with the builtin adapters and validators
// bound at well-known addresses.
//
// The host is also the timelock's [timelock.Applier]: matured admin
// operations dispatch here, executed with the configured admin
// identity. Genesis seeding rides the same dispatch path, so a boot
// configuration can never do anything a timelock proposal could not.
package host
