package audit

import (
	"xdao.co/lcm/anchor"
	"xdao.co/lcm/compliance"
	"xdao.co/lcm/receipt"
)

// Report aggregates the findings of one audit run. The run always executes
// to completion; whether Error findings fail the run depends on the
// compliance mode it is judged under.
type Report struct {
	Mode     string   `json:"mode"`
	Findings []Result `json:"findings"`
}

// Add appends findings to the report.
func (r *Report) Add(findings ...Result) {
	r.Findings = append(r.Findings, findings...)
}

// Counts tallies findings by status.
func (r Report) Counts() (valid, invalid, errors int) {
	for _, f := range r.Findings {
		switch f.Status {
		case StatusValid:
			valid++
		case StatusInvalid:
			invalid++
		case StatusError:
			errors++
		}
	}
	return
}

// Passed reports whether the run passes under the given mode: Invalid always
// fails; Error fails only in strict mode.
func (r Report) Passed(mode compliance.Mode) bool {
	_, inv, errs := r.Counts()
	if inv > 0 {
		return false
	}
	if mode == compliance.Strict && errs > 0 {
		return false
	}
	return true
}

// Invalids returns the Invalid findings, the compliance evidence a consumer
// must surface verbatim.
func (r Report) Invalids() []Result {
	var out []Result
	for _, f := range r.Findings {
		if f.Status == StatusInvalid {
			out = append(out, f)
		}
	}
	return out
}

// Evidence is the input to a full audit run. Optional pieces are nil/empty;
// the auditor checks whatever is present and skips the rest.
type Evidence struct {
	// Master re-supplies the master anchor for secret-bound recomputation.
	// Without it, dataset/model anchors can only be cross-checked, not
	// rederived.
	Master *anchor.Anchor

	Dataset    *anchor.DatasetAnchor
	Model      *anchor.ModelAnchor
	Session    *anchor.TrainingSessionAnchor
	Deployment *anchor.DeploymentAnchor

	Receipts   []receipt.Receipt
	Checkpoint *receipt.Checkpoint
}

// Auditor runs audits under a fixed compliance mode.
type Auditor struct {
	Mode compliance.Mode
}

// Run validates every piece of evidence present and aggregates all findings
// into one report. It never mutates the evidence and never stops at the
// first failure.
func (a Auditor) Run(ev Evidence) Report {
	report := Report{Mode: a.Mode.String()}

	if ev.Master != nil {
		if ev.Dataset != nil {
			report.Add(ValidateDatasetAnchor(*ev.Dataset, *ev.Master))
		}
		if ev.Model != nil {
			report.Add(ValidateModelAnchor(*ev.Model, *ev.Master))
		}
	}
	if ev.Session != nil {
		report.Add(ValidateSessionAnchor(*ev.Session))
	}
	if ev.Deployment != nil {
		report.Add(ValidateDeploymentAnchor(*ev.Deployment)...)
	}
	if len(ev.Receipts) > 0 {
		res, _ := ValidateReceiptChain(ev.Receipts)
		report.Add(res)
	}
	if ev.Checkpoint != nil {
		report.Add(ValidateCheckpoint(*ev.Checkpoint, ev.Receipts)...)
	}
	if ev.Dataset != nil && ev.Model != nil && ev.Session != nil && ev.Deployment != nil && len(ev.Receipts) > 0 {
		report.Add(ValidateCrossConsistency(*ev.Dataset, *ev.Model, *ev.Session, *ev.Deployment, ev.Receipts[0])...)
	}
	return report
}
