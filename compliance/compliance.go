// Package compliance defines the audit-mode policy shared by validators and
// report consumers.
package compliance

import "fmt"

// Mode selects how an audit run treats checks that could not complete.
//
// Strict mode prefers explicit failure over silent acceptance: a check that
// errored (e.g. unreadable source data) fails the run, the same as a
// mismatch. Permissive mode reports errored checks but lets the run pass on
// the evidence that did verify; the errors stay visible in the report.
type Mode int

const (
	Permissive Mode = iota
	Strict
)

// ParseMode maps the wire strings "permissive"/"strict".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "permissive":
		return Permissive, nil
	case "strict":
		return Strict, nil
	default:
		return Permissive, fmt.Errorf("compliance: unknown mode %q", s)
	}
}

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "permissive"
}
