package storage

import "errors"

// Sentinel errors shared by every backend. Callers match with errors.Is;
// backends may wrap these with locational detail.
var (
	// ErrNotFound reports that no object with the requested CID is stored.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidCID reports a key that does not parse as a CID at all.
	ErrInvalidCID = errors.New("storage: invalid cid")

	// ErrCIDMismatch reports bytes whose recomputed CID differs from the
	// requested one, a corrupted or substituted record.
	ErrCIDMismatch = errors.New("storage: cid mismatch")

	// ErrImmutable reports an attempt to overwrite a stored object with
	// different bytes under the same CID.
	ErrImmutable = errors.New("storage: immutable object mismatch")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
