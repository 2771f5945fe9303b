// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/custodia-foundation/custodia/lib/codec"
	"github.com/custodia-foundation/custodia/lib/ref"
	"github.com/custodia-foundation/custodia/lib/venue"
)

// Signed-path failures.
var (
	ErrNoOwnerKey      = errors.New("wallet: no owner key registered for signed execution")
	ErrWrongWallet     = errors.New("wallet: signed request names a different wallet")
	ErrBadSignature    = errors.New("wallet: signature does not verify")
	ErrNonceReplayed   = errors.New("wallet: nonce not greater than last accepted")
	ErrRequestExpired  = errors.New("wallet: signed request expired")
	ErrRequestNotValid = errors.New("wallet: malformed signed request")
)

// SignedRequest is an owner-authorized call submitted by any relay.
// The signature covers the deterministic CBOR encoding of the whole
// struct, so a request cannot be replayed against another wallet or
// with altered arguments. Nonces are strictly increasing; Expiry is a
// Unix timestamp in seconds, zero for no expiry.
type SignedRequest struct {
	Wallet ref.Address `cbor:"1,keyasint"`
	Target ref.Address `cbor:"2,keyasint"`
	Value  *big.Int    `cbor:"3,keyasint,omitempty"`
	Data   []byte      `cbor:"4,keyasint,omitempty"`
	Nonce  uint64      `cbor:"5,keyasint"`
	Expiry int64       `cbor:"6,keyasint,omitempty"`
}

// SigningBytes returns the canonical byte string the owner signs.
func (r SignedRequest) SigningBytes() ([]byte, error) {
	return codec.Marshal(r)
}

// Sign produces a signature over the request with the owner's private
// key. Exposed for relays and tests.
func Sign(key ed25519.PrivateKey, r SignedRequest) ([]byte, error) {
	payload, err := r.SigningBytes()
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(key, payload), nil
}

// ExecuteSigned verifies and runs an owner-signed request at the
// wallet clock's current time.
func (w *Wallet) ExecuteSigned(req SignedRequest, sig []byte) error {
	return w.ExecuteSignedAt(req, sig, w.clock.Now())
}

// ExecuteSignedAt verifies an owner-signed request against the given
// time and runs it through the standard execution pipeline. The
// module gate is replaced by the signature check; vetoes, registry,
// and policy still apply.
func (w *Wallet) ExecuteSignedAt(req SignedRequest, sig []byte, now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return ErrNotInitialized
	}
	if len(w.ownerKey) != ed25519.PublicKeySize {
		return ErrNoOwnerKey
	}
	if req.Wallet != w.addr {
		return fmt.Errorf("%w: %s", ErrWrongWallet, req.Wallet)
	}
	if req.Expiry != 0 && now.Unix() > req.Expiry {
		return fmt.Errorf("%w: expired at %d, now %d", ErrRequestExpired, req.Expiry, now.Unix())
	}
	payload, err := req.SigningBytes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestNotValid, err)
	}
	if !ed25519.Verify(w.ownerKey, payload, sig) {
		return ErrBadSignature
	}
	// Nonce advances only after the signature verifies, so a garbage
	// request cannot burn the owner's next nonce.
	if req.Nonce <= w.lastNonce {
		return fmt.Errorf("%w: nonce %d, last %d", ErrNonceReplayed, req.Nonce, w.lastNonce)
	}
	w.lastNonce = req.Nonce

	return w.executeLocked(venue.Call{Target: req.Target, Value: req.Value, Data: req.Data})
}
