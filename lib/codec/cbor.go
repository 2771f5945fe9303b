// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Custodia's standard CBOR encoding
// configuration.
//
// Custodia uses CBOR for every internal byte-level contract: call
// argument encoding (the bytes after the 4-byte selector), admin
// operation payloads queued in the timelock, audit event records, and
// signed execution requests. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes — which is what makes selector+argument
// hashing, signature verification, and proposal deduplication sound.
//
// Struct tag rules: types that only ever cross a CBOR boundary use
// `cbor:"N,keyasint"` tags (calldata argument structs, admin ops,
// signed requests). Types that also appear in CLI JSON output use
// `json` tags only — fxamacker/cbor reads them as fallback, so one
// tag controls both formats.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding. decMode accepts standard CBOR and silently ignores
// unknown fields for forward compatibility.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	// ref.Address, ref.Selector, and ref.ImplementationID implement
	// encoding.TextMarshaler. Without this setting their unexported
	// array data would serialize as empty CBOR values, losing the
	// identity entirely.
	encOptions.TextMarshaler = cbor.TextMarshalerTextString
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Custodia never uses non-string map keys. Any-typed decode
		// targets get map[string]any instead of the CBOR default
		// map[interface{}]interface{}, which encoding/json rejects.
		DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler: cbor.TextUnmarshalerTextString,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// RawMessage is a raw encoded CBOR value, used to delay decoding of
// admin operation parameters until the operation kind is known.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder writing to w with the standard
// deterministic configuration.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a CBOR decoder reading from r with the standard
// decoding configuration.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
