package model

import "fmt"

// ErrorCode is the machine-readable class of a boundary failure. Codes are
// wire-stable: integrations branch on them, so they never change meaning.
type ErrorCode string

const (
	// ErrInvalidRequest covers malformed evidence references, unknown
	// compliance modes, and unparsable records.
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"

	// ErrInvalidCID covers references that do not parse as CIDs.
	ErrInvalidCID ErrorCode = "INVALID_CID"

	// ErrMissingCAS is returned when evidence is referenced by CID but the
	// caller configured no store to hydrate it from.
	ErrMissingCAS ErrorCode = "MISSING_CAS"

	// ErrNotFound is the store's ErrNotFound, surfaced at the boundary.
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrCIDMismatch reports hydrated bytes whose CID differs from the one
	// requested.
	ErrCIDMismatch ErrorCode = "CID_MISMATCH"

	ErrInternal ErrorCode = "INTERNAL"
)

// CodedError carries an ErrorCode alongside a human message. Boundary
// failures are distinct from audit findings: a CodedError means the audit
// could not run, not that evidence failed to verify.
type CodedError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}
