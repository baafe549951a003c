package model

// BlobRef refers to canonical bytes directly or by CID.
// At most one of CID or Bytes may be set; a zero BlobRef means the piece of
// evidence is absent.
//
// JSON note: Bytes are encoded as base64 by encoding/json.
type BlobRef struct {
	CID   string `json:"cid,omitempty"`
	Bytes []byte `json:"bytes,omitempty"`
}

// IsZero reports whether the reference carries neither bytes nor a CID.
func (b BlobRef) IsZero() bool { return b.CID == "" && len(b.Bytes) == 0 }

type ComplianceMode string

const (
	CompliancePermissive ComplianceMode = "permissive"
	ComplianceStrict     ComplianceMode = "strict"
)

// AuditRequest carries one provenance path's evidence into an audit run.
// Every evidence field is optional; the auditor checks whatever is present.
// Receipts refers to a JSON array of receipts in chain order.
type AuditRequest struct {
	MasterAnchor string         `json:"masterAnchor,omitempty"`
	Dataset      BlobRef        `json:"dataset,omitempty"`
	Model        BlobRef        `json:"model,omitempty"`
	Session      BlobRef        `json:"session,omitempty"`
	Deployment   BlobRef        `json:"deployment,omitempty"`
	Receipts     BlobRef        `json:"receipts,omitempty"`
	Checkpoint   BlobRef        `json:"checkpoint,omitempty"`
	Compliance   ComplianceMode `json:"compliance"`
}

// Finding is the JSON projection of one audit check outcome.
type Finding struct {
	Check    string `json:"check"`
	Status   string `json:"status"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ReportDocument holds the canonical audit report bytes and their CID.
type ReportDocument struct {
	Bytes []byte `json:"bytes"`
	CID   string `json:"cid"`
}

// AuditResponse is the boundary DTO for a completed audit run.
type AuditResponse struct {
	Mode     string         `json:"mode"`
	Passed   bool           `json:"passed"`
	Findings []Finding      `json:"findings"`
	Report   ReportDocument `json:"report"`
}
