// Package digest provides the hash primitives every LCM anchor, proof, and
// receipt is built from.
//
// All commitments in this repository are 32 bytes. SHA-256 is the default
// algorithm; BLAKE3 is available for payload hashing where callers opt in.
// Keyed derivation uses HMAC-SHA256 exclusively.
package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/multiformats/go-multihash"
)

// Size is the byte length of every digest and anchor in LCM.
const Size = 32

var (
	// ErrEmptyHMACKey is returned when a zero-length HMAC key is supplied.
	// An empty key is always a configuration bug, never a valid derivation.
	ErrEmptyHMACKey = errors.New("digest: empty HMAC key")

	// ErrBadLength is returned when a value that must be exactly Size bytes
	// is not.
	ErrBadLength = errors.New("digest: value is not 32 bytes")
)

// SHA256 returns the SHA-256 digest of b.
func SHA256(b []byte) []byte {
	s := sha256.Sum256(b)
	return s[:]
}

// BLAKE3 returns the 32-byte BLAKE3 digest of b.
func BLAKE3(b []byte) []byte {
	// multihash.Sum only errors on unknown codes or invalid lengths; BLAKE3
	// at 32 bytes is always valid.
	mh, err := multihash.Sum(b, multihash.BLAKE3, Size)
	if err != nil {
		panic(fmt.Sprintf("digest: blake3: %v", err))
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		panic(fmt.Sprintf("digest: blake3 decode: %v", err))
	}
	return dec.Digest
}

// HMACSHA256 returns HMAC-SHA256(key, message).
//
// Zero-length keys are rejected: silently deriving from an empty key would
// turn a missing-secret misconfiguration into an attacker-computable value.
func HMACSHA256(key, message []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrEmptyHMACKey
	}
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write(message)
	return mac.Sum(nil), nil
}

// Equal compares two digests in constant time.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// EncodeHex renders a digest as lowercase hex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex32 parses a 64-character hex string into a 32-byte digest.
func DecodeHex32(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("digest: invalid hex: %w", err)
	}
	if len(b) != Size {
		return nil, ErrBadLength
	}
	return b, nil
}

// Check32 validates that b is exactly Size bytes.
func Check32(b []byte) error {
	if len(b) != Size {
		return ErrBadLength
	}
	return nil
}
