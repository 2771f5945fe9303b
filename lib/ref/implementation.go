// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// implementationDomainKey is the BLAKE3 keyed-hash domain for wallet
// implementation identifiers. Same zero-padded ASCII convention as the
// account domain key.
var implementationDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 'r', 'e', 'f', '.',
	'i', 'm', 'p', 'l', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// ImplementationID identifies a wallet implementation version: a
// 32-byte digest over the implementation's label (name plus schema
// version). Wallet upgrade targets are checked against the factory's
// approved set of ImplementationIDs.
type ImplementationID [32]byte

// ImplementationIDOf derives the identifier for an implementation
// label, e.g. "agent-wallet/v2". Labels are protocol constants: the
// same label always produces the same identifier, which is what makes
// wallet addresses predictable before deployment.
func ImplementationIDOf(label string) ImplementationID {
	hasher, err := blake3.NewKeyed(implementationDomainKey[:])
	if err != nil {
		panic("ref: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(label))
	var id ImplementationID
	copy(id[:], hasher.Sum(nil))
	return id
}

// ParseImplementationID validates and parses a 0x-prefixed
// 64-hex-digit string.
func ParseImplementationID(raw string) (ImplementationID, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return ImplementationID{}, fmt.Errorf("implementation id %q: missing 0x prefix", raw)
	}
	digits := raw[2:]
	if len(digits) != 64 {
		return ImplementationID{}, fmt.Errorf("implementation id %q: want 64 hex digits, got %d", raw, len(digits))
	}
	decoded, err := hex.DecodeString(digits)
	if err != nil {
		return ImplementationID{}, fmt.Errorf("implementation id %q: %w", raw, err)
	}
	var id ImplementationID
	copy(id[:], decoded)
	return id, nil
}

// String returns the canonical 0x-prefixed lowercase hex form.
func (id ImplementationID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is the all-zero value.
func (id ImplementationID) IsZero() bool {
	return id == ImplementationID{}
}

// MarshalText implements encoding.TextMarshaler. The zero identifier
// marshals as the empty string.
func (id ImplementationID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero identifier.
func (id *ImplementationID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*id = ImplementationID{}
		return nil
	}
	parsed, err := ParseImplementationID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
