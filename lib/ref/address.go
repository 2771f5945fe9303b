// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// AddressLength is the byte length of an Address.
const AddressLength = 20

// accountDomainKey is the BLAKE3 keyed-hash domain for deriving
// addresses from Ed25519 public keys. Domain separation ensures key
// material hashed in other contexts (wallet derivation, audit chain)
// can never collide with an account address. The byte values are the
// ASCII encoding of the domain name, zero-padded to 32 bytes.
var accountDomainKey = [32]byte{
	'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '.', 'r', 'e', 'f', '.',
	'a', 'c', 'c', 'o', 'u', 'n', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Address is a 20-byte account or contract identifier. The zero value
// is not a valid participant; use IsZero to check.
type Address [AddressLength]byte

// ParseAddress validates and parses a 0x-prefixed 40-hex-digit string.
// Both upper and lower case hex are accepted; the canonical form
// produced by String is lowercase.
func ParseAddress(raw string) (Address, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return Address{}, fmt.Errorf("address %q: missing 0x prefix", raw)
	}
	digits := raw[2:]
	if len(digits) != AddressLength*2 {
		return Address{}, fmt.Errorf("address %q: want %d hex digits, got %d", raw, AddressLength*2, len(digits))
	}
	decoded, err := hex.DecodeString(digits)
	if err != nil {
		return Address{}, fmt.Errorf("address %q: %w", raw, err)
	}
	var addr Address
	copy(addr[:], decoded)
	return addr, nil
}

// BytesToAddress builds an Address from raw bytes. If b is longer than
// 20 bytes the leftmost bytes are dropped (keeping the low-order
// suffix); if shorter, the address is left-padded with zeros.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(addr[AddressLength-len(b):], b)
	return addr
}

// AddressFromPublicKey derives the address of an Ed25519 key holder:
// the last 20 bytes of the account-domain BLAKE3 keyed hash of the
// public key. The derivation is a protocol constant — changing it
// changes every owner and operator address.
func AddressFromPublicKey(publicKey ed25519.PublicKey) Address {
	hasher, err := blake3.NewKeyed(accountDomainKey[:])
	if err != nil {
		panic("ref: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(publicKey)
	return BytesToAddress(hasher.Sum(nil))
}

// String returns the canonical 0x-prefixed lowercase hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the all-zero value.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Bytes returns a copy of the raw 20 bytes.
func (a Address) Bytes() []byte {
	return bytes.Clone(a[:])
}

// Compare orders addresses lexicographically by their raw bytes.
// Returns -1, 0, or +1.
func (a Address) Compare(other Address) int {
	return bytes.Compare(a[:], other[:])
}

// MarshalText implements encoding.TextMarshaler. The zero address
// marshals as the empty string so omitempty-style handling works.
func (a Address) MarshalText() ([]byte, error) {
	if a.IsZero() {
		return []byte{}, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero address.
func (a *Address) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
