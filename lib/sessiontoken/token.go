// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessiontoken mints and verifies the signed session
// credential carried in the browser's session cookie.
//
// A token is a CBOR-encoded payload followed by a 64-byte ed25519
// signature over the payload bytes, base64url-encoded for transport
// in the cookie value. Verification is purely local: any process
// holding the public key can authenticate a request without a network
// round trip, and any process holding the private key can mint.
package sessiontoken

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/codec"
)

// DefaultLifetime is the session lifetime applied when a mint request
// does not specify one. Sessions last five days; the cookie max-age
// is derived from the same value so both expire together.
const DefaultLifetime = 5 * 24 * time.Hour

// Sentinel errors returned by Verify. All of them mean the request is
// unauthenticated; the distinctions matter only for logging.
var (
	ErrTokenTooShort    = errors.New("sessiontoken: token shorter than an ed25519 signature")
	ErrMalformed        = errors.New("sessiontoken: token payload is not valid CBOR")
	ErrInvalidSignature = errors.New("sessiontoken: signature verification failed")
	ErrTokenExpired     = errors.New("sessiontoken: token has expired")
)

// Token is the session payload. Field keys are small integers to keep
// the cookie compact.
type Token struct {
	// Subject is the authenticated user ID.
	Subject string `cbor:"1,keyasint"`

	// ID is a unique token identifier, distinct per mint even for the
	// same subject.
	ID string `cbor:"2,keyasint"`

	// IssuedAt and ExpiresAt are Unix seconds.
	IssuedAt  int64 `cbor:"3,keyasint"`
	ExpiresAt int64 `cbor:"4,keyasint"`
}

// Mint creates a signed session token for subject, valid for lifetime
// starting at now. A non-positive lifetime selects DefaultLifetime.
// The returned string is safe to place directly in a cookie value.
func Mint(key ed25519.PrivateKey, subject string, now time.Time, lifetime time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("sessiontoken: mint: empty subject")
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}

	payload, err := codec.Marshal(Token{
		Subject:   subject,
		ID:        uuid.NewString(),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(lifetime).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("sessiontoken: encoding payload: %w", err)
	}

	signed := append(payload, ed25519.Sign(key, payload)...)
	return base64.RawURLEncoding.EncodeToString(signed), nil
}

// Verify checks the signature and expiry of a cookie value and
// returns the decoded token. Expiry is evaluated against now, which
// callers take from their clock so tests can control it.
func Verify(key ed25519.PublicKey, value string, now time.Time) (Token, error) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return Token{}, fmt.Errorf("sessiontoken: decoding token: %w", err)
	}
	if len(raw) <= ed25519.SignatureSize {
		return Token{}, ErrTokenTooShort
	}

	payload := raw[:len(raw)-ed25519.SignatureSize]
	signature := raw[len(raw)-ed25519.SignatureSize:]
	if !ed25519.Verify(key, payload, signature) {
		return Token{}, ErrInvalidSignature
	}

	var token Token
	if err := codec.Unmarshal(payload, &token); err != nil {
		return Token{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if now.Unix() >= token.ExpiresAt {
		return Token{}, ErrTokenExpired
	}
	return token, nil
}
