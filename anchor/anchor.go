// Package anchor implements the LCM anchor derivation chain:
// master → dataset/model → training session → deployment.
//
// An anchor is a 32-byte secret-derived, content-bound commitment. The master
// anchor is stretched from an operator secret with PBKDF2; every child anchor
// is HMAC-SHA256(parent, contextHash), so possessing a child reveals nothing
// about its siblings or the master, while a verifier holding the parent can
// recompute any child from the original content.
//
// Derivation fails only on malformed input or weak configuration. Whether an
// anchor *should* be created is a policy decision that belongs to callers.
package anchor

import (
	"crypto/subtle"
	"fmt"

	"xdao.co/lcm/digest"
)

// Size is the byte length of every anchor.
const Size = digest.Size

// Anchor is a fixed 32-byte anchor value.
//
// The zero Anchor is not a valid derivation output and is used only as the
// wiped state after Zero.
type Anchor struct {
	b [Size]byte
}

// FromBytes constructs an Anchor from exactly 32 bytes.
func FromBytes(b []byte) (Anchor, error) {
	var a Anchor
	if len(b) != Size {
		return a, newError(KindInput, "LCM-ANCHOR-010", fmt.Sprintf("anchor must be %d bytes, got %d", Size, len(b)))
	}
	copy(a.b[:], b)
	return a, nil
}

// FromHex parses a 64-character hex anchor.
func FromHex(s string) (Anchor, error) {
	b, err := digest.DecodeHex32(s)
	if err != nil {
		return Anchor{}, wrapError(KindInput, "LCM-ANCHOR-010", "invalid anchor hex", err)
	}
	return FromBytes(b)
}

// Bytes returns a copy of the anchor bytes.
func (a Anchor) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, a.b[:])
	return out
}

// Hex renders the anchor as lowercase hex.
func (a Anchor) Hex() string {
	return digest.EncodeHex(a.b[:])
}

// Equal compares two anchors in constant time.
func (a Anchor) Equal(other Anchor) bool {
	return subtle.ConstantTimeCompare(a.b[:], other.b[:]) == 1
}

// IsZero reports whether the anchor is all zero bytes (the wiped state).
func (a Anchor) IsZero() bool {
	var zero [Size]byte
	return subtle.ConstantTimeCompare(a.b[:], zero[:]) == 1
}

// Zero wipes the anchor bytes in place.
//
// Master anchors MUST be zeroed as soon as the derivation calls that need
// them are done; see WithMaster for the scoped form.
func (a *Anchor) Zero() {
	for i := range a.b {
		a.b[i] = 0
	}
}
