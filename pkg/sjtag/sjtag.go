// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sjtag derives secure JTAG unlock responses from a device challenge
// and the shared SJTAG key.
package sjtag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Size of challenge, key and response
const (
	ChallengeSize = 32
	KeySize       = 32
	ResponseSize  = sha256.Size
)

// Key is the 256-bit shared SJTAG key
type Key [KeySize]byte

// Challenge is the nonce read from the device
type Challenge [ChallengeSize]byte

// DeriveResponse computes SHA-256(challenge || key)
func DeriveResponse(challenge Challenge, key Key) [ResponseSize]byte {
	h := sha256.New()
	h.Write(challenge[:])
	h.Write(key[:])
	var out [ResponseSize]byte
	h.Sum(out[:0])
	return out
}

// ParseKey decodes a 64-digit hex key. Surrounding whitespace and an optional
// 0x prefix are ignored.
func ParseKey(s string) (Key, error) {
	var key Key
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != 2*KeySize {
		return key, fmt.Errorf("SJTAG key must be %d hex digits, got %d", 2*KeySize, len(s))
	}
	if _, err := hex.Decode(key[:], []byte(s)); err != nil {
		return key, fmt.Errorf("invalid SJTAG key: %w", err)
	}
	return key, nil
}

// ChallengeFromPayload converts an ACK payload into a Challenge
func ChallengeFromPayload(p []byte) (Challenge, error) {
	var c Challenge
	if len(p) != ChallengeSize {
		return c, fmt.Errorf("SJTAG challenge is %d bytes, want %d", len(p), ChallengeSize)
	}
	copy(c[:], p)
	return c, nil
}

// String renders the key fingerprint, never the key itself
func (k Key) String() string {
	sum := sha256.Sum256(k[:])
	return "key:" + hex.EncodeToString(sum[:4])
}
