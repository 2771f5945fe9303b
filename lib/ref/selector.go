// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SelectorLength is the byte length of a Selector.
const SelectorLength = 4

// Selector is the 4-byte function selector prefixed to calldata. The
// zero selector identifies a bare value transfer with empty calldata
// and occupies its own policy slot.
type Selector [SelectorLength]byte

// SelectorOf derives the selector for a canonical signature string,
// e.g. "vaultDeposit(address,address,uint256)": the first 4 bytes of
// the SHA3-256 digest of the signature.
func SelectorOf(signature string) Selector {
	digest := sha3.Sum256([]byte(signature))
	var sel Selector
	copy(sel[:], digest[:SelectorLength])
	return sel
}

// ParseSelector validates and parses a 0x-prefixed 8-hex-digit string.
func ParseSelector(raw string) (Selector, error) {
	if !strings.HasPrefix(raw, "0x") && !strings.HasPrefix(raw, "0X") {
		return Selector{}, fmt.Errorf("selector %q: missing 0x prefix", raw)
	}
	digits := raw[2:]
	if len(digits) != SelectorLength*2 {
		return Selector{}, fmt.Errorf("selector %q: want %d hex digits, got %d", raw, SelectorLength*2, len(digits))
	}
	decoded, err := hex.DecodeString(digits)
	if err != nil {
		return Selector{}, fmt.Errorf("selector %q: %w", raw, err)
	}
	var sel Selector
	copy(sel[:], decoded)
	return sel, nil
}

// String returns the canonical 0x-prefixed lowercase hex form.
func (s Selector) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// IsZero reports whether the selector is the zero (bare value
// transfer) selector.
func (s Selector) IsZero() bool {
	return s == Selector{}
}

// MarshalText implements encoding.TextMarshaler. The zero selector
// marshals as "0x00000000" rather than the empty string — it is a
// meaningful policy key, not an unset value.
func (s Selector) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Selector) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*s = Selector{}
		return nil
	}
	parsed, err := ParseSelector(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
