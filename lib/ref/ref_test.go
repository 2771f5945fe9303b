// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseAddressRoundTrip(t *testing.T) {
	raw := "0x00112233445566778899aabbccddeeff00112233"
	addr, err := ParseAddress(raw)
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	if addr.String() != raw {
		t.Errorf("String() = %q, want %q", addr.String(), raw)
	}
	if addr.IsZero() {
		t.Error("parsed address reported as zero")
	}

	// Uppercase hex is accepted but canonicalized to lowercase.
	upper, err := ParseAddress("0x" + strings.ToUpper(raw[2:]))
	if err != nil {
		t.Fatalf("ParseAddress uppercase: %v", err)
	}
	if upper != addr {
		t.Error("uppercase parse produced a different address")
	}
}

func TestParseAddressInvalid(t *testing.T) {
	cases := []string{
		"",
		"00112233445566778899aabbccddeeff00112233", // no prefix
		"0x0011", // too short
		"0x00112233445566778899aabbccddeeff0011223344", // too long
		"0xzz112233445566778899aabbccddeeff00112233",   // bad hex
	}
	for _, raw := range cases {
		if _, err := ParseAddress(raw); err == nil {
			t.Errorf("ParseAddress(%q): expected error", raw)
		}
	}
}

func TestBytesToAddressPadding(t *testing.T) {
	short := BytesToAddress([]byte{0xab, 0xcd})
	if short.String() != "0x000000000000000000000000000000000000abcd" {
		t.Errorf("short input not left-padded: %s", short)
	}

	long := make([]byte, 32)
	long[31] = 0x01
	truncated := BytesToAddress(long)
	if truncated.String() != "0x0000000000000000000000000000000000000001" {
		t.Errorf("long input not suffix-truncated: %s", truncated)
	}
}

func TestAddressFromPublicKeyDeterministic(t *testing.T) {
	public, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	first := AddressFromPublicKey(public)
	second := AddressFromPublicKey(public)
	if first != second {
		t.Error("same key produced different addresses")
	}
	if first.IsZero() {
		t.Error("derived address is zero")
	}

	other, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if AddressFromPublicKey(other) == first {
		t.Error("distinct keys produced the same address")
	}
}

func TestAddressJSON(t *testing.T) {
	addr, err := ParseAddress("0x00112233445566778899aabbccddeeff00112233")
	if err != nil {
		t.Fatalf("ParseAddress: %v", err)
	}
	encoded, err := json.Marshal(addr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded Address
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != addr {
		t.Errorf("round trip changed address: %s != %s", decoded, addr)
	}

	// Zero address marshals as the empty string and parses back to zero.
	var zero Address
	encoded, err = json.Marshal(zero)
	if err != nil {
		t.Fatalf("Marshal zero: %v", err)
	}
	if string(encoded) != `""` {
		t.Errorf("zero address JSON = %s, want empty string", encoded)
	}
	var zeroBack Address
	if err := json.Unmarshal(encoded, &zeroBack); err != nil {
		t.Fatalf("Unmarshal zero: %v", err)
	}
	if !zeroBack.IsZero() {
		t.Error("empty string did not decode to the zero address")
	}
}

func TestSelectorOf(t *testing.T) {
	deposit := SelectorOf("vaultDeposit(address,address,uint256)")
	if deposit.IsZero() {
		t.Fatal("derived selector is zero")
	}
	if deposit != SelectorOf("vaultDeposit(address,address,uint256)") {
		t.Error("selector derivation is not deterministic")
	}
	if deposit == SelectorOf("vaultWithdraw(address,address,uint256)") {
		t.Error("distinct signatures produced the same selector")
	}

	parsed, err := ParseSelector(deposit.String())
	if err != nil {
		t.Fatalf("ParseSelector(%s): %v", deposit, err)
	}
	if parsed != deposit {
		t.Errorf("round trip changed selector: %s != %s", parsed, deposit)
	}
}

func TestZeroSelectorMarshalsExplicitly(t *testing.T) {
	var zero Selector
	text, err := zero.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "0x00000000" {
		t.Errorf("zero selector text = %q, want 0x00000000", text)
	}
}

func TestImplementationIDOf(t *testing.T) {
	v1 := ImplementationIDOf("agent-wallet/v1")
	v2 := ImplementationIDOf("agent-wallet/v2")
	if v1 == v2 {
		t.Error("distinct labels produced the same implementation id")
	}
	if v1 != ImplementationIDOf("agent-wallet/v1") {
		t.Error("implementation id derivation is not deterministic")
	}

	parsed, err := ParseImplementationID(v1.String())
	if err != nil {
		t.Fatalf("ParseImplementationID: %v", err)
	}
	if parsed != v1 {
		t.Error("round trip changed implementation id")
	}
}
