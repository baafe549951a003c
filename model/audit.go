package model

import (
	"encoding/json"
	"errors"

	"github.com/ipfs/go-cid"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/audit"
	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/cidutil"
	"xdao.co/lcm/compliance"
	"xdao.co/lcm/receipt"
	"xdao.co/lcm/storage"
)

type AuditOptions struct {
	// CAS hydrates evidence referenced by CID. Optional when every evidence
	// field carries inline bytes.
	CAS storage.CAS

	// StoreReport, when set together with CAS, writes the canonical report
	// bytes back into the CAS.
	StoreReport bool
}

// AuditWithCAS hydrates the request's evidence (inline or by CID), runs a
// full audit and returns the boundary DTO plus the canonical report document.
func AuditWithCAS(req AuditRequest, opts AuditOptions) (*AuditResponse, error) {
	report, mode, err := runAudit(req, opts)
	if err != nil {
		return nil, err
	}

	findings := make([]Finding, 0, len(report.Findings))
	for _, f := range report.Findings {
		findings = append(findings, fromResult(f))
	}
	passed := report.Passed(mode)

	doc, docCID, err := renderReport(mode, passed, findings, opts)
	if err != nil {
		return nil, err
	}

	return &AuditResponse{
		Mode:     mode.String(),
		Passed:   passed,
		Findings: findings,
		Report:   ReportDocument{Bytes: doc, CID: docCID.String()},
	}, nil
}

// AuditResult is a compact, Go-friendly view of an audit run.
//
// Report holds the canonical report bytes and ReportCID the CID bound to
// them. Invalids carries only the failed checks, the evidence a consumer
// must surface verbatim.
type AuditResult struct {
	Report    []byte
	ReportCID cid.Cid
	Passed    bool
	Invalids  []Finding
}

// AuditResultView runs the audit and returns the compact view of the outcome.
func AuditResultView(req AuditRequest, opts AuditOptions) (*AuditResult, error) {
	resp, err := AuditWithCAS(req, opts)
	if err != nil {
		return nil, err
	}
	docCID, err := cid.Decode(resp.Report.CID)
	if err != nil {
		return nil, NewError(ErrInvalidCID, "invalid report cid")
	}
	var invalids []Finding
	for _, f := range resp.Findings {
		if f.Status == string(audit.StatusInvalid) {
			invalids = append(invalids, f)
		}
	}
	return &AuditResult{
		Report:    resp.Report.Bytes,
		ReportCID: docCID,
		Passed:    resp.Passed,
		Invalids:  invalids,
	}, nil
}

func runAudit(req AuditRequest, opts AuditOptions) (audit.Report, compliance.Mode, error) {
	mode, err := toCompliance(req.Compliance)
	if err != nil {
		return audit.Report{}, mode, err
	}

	var ev audit.Evidence

	if req.MasterAnchor != "" {
		master, err := anchor.FromHex(req.MasterAnchor)
		if err != nil {
			return audit.Report{}, mode, NewError(ErrInvalidRequest, "invalid master anchor: "+err.Error())
		}
		ev.Master = &master
	}

	if err := hydrateInto(req.Dataset, "dataset", opts.CAS, &ev.Dataset); err != nil {
		return audit.Report{}, mode, err
	}
	if err := hydrateInto(req.Model, "model", opts.CAS, &ev.Model); err != nil {
		return audit.Report{}, mode, err
	}
	if err := hydrateInto(req.Session, "session", opts.CAS, &ev.Session); err != nil {
		return audit.Report{}, mode, err
	}
	if err := hydrateInto(req.Deployment, "deployment", opts.CAS, &ev.Deployment); err != nil {
		return audit.Report{}, mode, err
	}
	if err := hydrateInto(req.Checkpoint, "checkpoint", opts.CAS, &ev.Checkpoint); err != nil {
		return audit.Report{}, mode, err
	}

	raw, err := hydrate(req.Receipts, opts.CAS)
	if err != nil {
		return audit.Report{}, mode, wrapHydrate("receipts", err)
	}
	if raw != nil {
		var receipts []receipt.Receipt
		if err := json.Unmarshal(raw, &receipts); err != nil {
			return audit.Report{}, mode, NewError(ErrInvalidRequest, "invalid receipts: "+err.Error())
		}
		ev.Receipts = receipts
	}

	return audit.Auditor{Mode: mode}.Run(ev), mode, nil
}

// hydrateInto fetches one evidence blob and unmarshals it into a fresh
// record, leaving *out nil when the reference is absent.
func hydrateInto[T any](ref BlobRef, field string, cas storage.CAS, out **T) error {
	raw, err := hydrate(ref, cas)
	if err != nil {
		return wrapHydrate(field, err)
	}
	if raw == nil {
		return nil
	}
	rec := new(T)
	if err := json.Unmarshal(raw, rec); err != nil {
		return NewError(ErrInvalidRequest, "invalid "+field+": "+err.Error())
	}
	*out = rec
	return nil
}

func hydrate(ref BlobRef, cas storage.CAS) ([]byte, error) {
	if ref.IsZero() {
		return nil, nil
	}
	if len(ref.Bytes) > 0 && ref.CID != "" {
		return nil, NewError(ErrInvalidRequest, "blob ref has both bytes and cid")
	}
	if len(ref.Bytes) > 0 {
		return ref.Bytes, nil
	}
	id, err := cid.Decode(ref.CID)
	if err != nil {
		return nil, NewError(ErrInvalidCID, "invalid cid")
	}
	if cas == nil {
		return nil, NewError(ErrMissingCAS, "evidence referenced by cid but no cas configured")
	}
	raw, err := cas.Get(id)
	if err != nil {
		return nil, mapErr(err)
	}
	return raw, nil
}

func wrapHydrate(field string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return NewError(ce.Code, field+": "+ce.Message)
	}
	return NewError(ErrInternal, field+": "+err.Error())
}

// renderReport produces the canonical report bytes and their CID. The
// findings order is the run order, preserved verbatim.
func renderReport(mode compliance.Mode, passed bool, findings []Finding, opts AuditOptions) ([]byte, cid.Cid, error) {
	doc := struct {
		Mode     string    `json:"mode"`
		Passed   bool      `json:"passed"`
		Findings []Finding `json:"findings"`
	}{Mode: mode.String(), Passed: passed, Findings: findings}

	raw, err := canonjson.Encode(doc)
	if err != nil {
		return nil, cid.Undef, NewError(ErrInternal, "render report: "+err.Error())
	}
	id, err := cidutil.CIDv1RawSHA256CID(raw)
	if err != nil {
		return nil, cid.Undef, NewError(ErrInternal, "report cid: "+err.Error())
	}

	if opts.StoreReport && opts.CAS != nil {
		stored, err := opts.CAS.Put(raw)
		if err != nil {
			return nil, cid.Undef, mapErr(err)
		}
		if !stored.Equals(id) {
			return nil, cid.Undef, NewError(ErrCIDMismatch, "cas returned a different cid for the report")
		}
	}
	return raw, id, nil
}

func fromResult(r audit.Result) Finding {
	f := Finding{Check: r.Check, Status: string(r.Status), Reason: r.Reason}
	if r.Detail != nil {
		f.Expected = r.Detail.Expected
		f.Actual = r.Detail.Actual
	}
	return f
}

func toCompliance(m ComplianceMode) (compliance.Mode, error) {
	switch m {
	case CompliancePermissive:
		return compliance.Permissive, nil
	case ComplianceStrict:
		return compliance.Strict, nil
	case "":
		return 0, NewError(ErrInvalidRequest, "missing compliance mode")
	default:
		return 0, NewError(ErrInvalidRequest, "invalid compliance mode")
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(ErrNotFound, err.Error())
	}
	if errors.Is(err, storage.ErrCIDMismatch) {
		return NewError(ErrCIDMismatch, err.Error())
	}
	if errors.Is(err, storage.ErrInvalidCID) {
		return NewError(ErrInvalidCID, err.Error())
	}
	return NewError(ErrInternal, err.Error())
}
