// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated identity value types used throughout
// Custodia: account and contract addresses, function selectors, and
// wallet implementation identifiers.
//
// All types are immutable value types with Parse constructors that
// validate the canonical text form, IsZero checks, and
// encoding.TextMarshaler/TextUnmarshaler implementations so they
// serialize as strings in JSON, YAML, and CBOR.
//
// An [Address] is a 20-byte account or contract identifier written as
// 42-character 0x-prefixed lowercase hex. Owner and operator addresses
// derive from Ed25519 public keys via [AddressFromPublicKey]; wallet
// addresses derive deterministically in the factory.
//
// A [Selector] is the 4-byte function selector prefixed to calldata.
// [SelectorOf] derives a selector from a canonical signature string
// such as "vaultDeposit(address,address,uint256)". The zero selector
// identifies a bare value transfer (empty calldata) and is a distinct
// policy slot.
//
// This package has no Custodia-internal dependencies.
package ref
