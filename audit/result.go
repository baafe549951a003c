// Package audit is the read-side validation layer: it recomputes every
// cryptographic artifact in the anchor/receipt hierarchy from source data and
// compares against stored values.
//
// A failed comparison is NOT a Go error. Validation exists to run against
// potentially corrupted data, so findings are structured Results: Valid,
// Invalid (with the expected/actual evidence), or Error (the check itself
// could not complete). The layer never mutates what it inspects and never
// aborts early: an audit is a report, not a gate.
package audit

// Status is the outcome of one validation check.
type Status string

const (
	// StatusValid: the recomputed value matches the stored one.
	StatusValid Status = "VALID"
	// StatusInvalid: recomputation succeeded and the values differ. This is
	// an expected, reportable outcome, not an exception.
	StatusInvalid Status = "INVALID"
	// StatusError: the check itself could not run (malformed evidence,
	// unreadable input). Never conflated with Invalid.
	StatusError Status = "ERROR"
)

// Detail carries the mismatching values of an Invalid finding. Consumers
// must surface these verbatim; the specific mismatch is the actionable
// compliance evidence.
type Detail struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Result is one validation finding.
type Result struct {
	// Check names the validated artifact, e.g. "anchor.dataset" or
	// "receipt.chain".
	Check  string  `json:"check"`
	Status Status  `json:"status"`
	Detail *Detail `json:"detail,omitempty"`
	Reason string  `json:"reason,omitempty"`
}

func valid(check string) Result {
	return Result{Check: check, Status: StatusValid}
}

func invalid(check, expected, actual, reason string) Result {
	return Result{
		Check:  check,
		Status: StatusInvalid,
		Detail: &Detail{Expected: expected, Actual: actual},
		Reason: reason,
	}
}

func errored(check string, err error) Result {
	return Result{Check: check, Status: StatusError, Reason: err.Error()}
}
