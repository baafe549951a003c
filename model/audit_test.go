package model_test

import (
	"crypto/sha256"
	"encoding/json"
	"testing"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/cidutil"
	"xdao.co/lcm/digest"
	"xdao.co/lcm/model"
	"xdao.co/lcm/receipt"
	"xdao.co/lcm/storage"
	"xdao.co/lcm/storage/localfs"
)

func sum(s string) []byte {
	d := sha256.Sum256([]byte(s))
	return d[:]
}

// buildRequest assembles a fully consistent audit request. Records named in
// byCID are stored in cas and referenced by CID; the rest ride inline.
func buildRequest(t *testing.T, cas storage.CAS, byCID map[string]bool) model.AuditRequest {
	t.Helper()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	master, err := anchor.DeriveMaster("model-secret", make([]byte, 16), anchor.MinIterations)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := anchor.NewDatasetAnchor(master, "ds-1", sum("content"), sum("meta"), at)
	if err != nil {
		t.Fatal(err)
	}
	mdl, err := anchor.NewModelAnchor(master, "m-1", sum("weights"), []string{"ds-1"}, at)
	if err != nil {
		t.Fatal(err)
	}

	ledger, err := receipt.NewLedger("dep-1")
	if err != nil {
		t.Fatal(err)
	}
	ledger.Now = func() time.Time { return at }
	for i := 0; i < 3; i++ {
		if _, err := ledger.Append(receipt.IssueParams{
			QueryHash:            sum("q" + string(rune('0'+i))),
			OutputHash:           sum("o" + string(rune('0'+i))),
			ModelVersion:         "m-1",
			TrainingSnapshotID:   "sess-1",
			TrainingSnapshotRoot: sum("root"),
		}); err != nil {
			t.Fatal(err)
		}
	}

	ref := func(name string, v any) model.BlobRef {
		raw, err := canonjson.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		if !byCID[name] {
			return model.BlobRef{Bytes: raw}
		}
		id, err := cas.Put(raw)
		if err != nil {
			t.Fatal(err)
		}
		return model.BlobRef{CID: id.String()}
	}

	return model.AuditRequest{
		MasterAnchor: master.Hex(),
		Dataset:      ref("dataset", dataset),
		Model:        ref("model", mdl),
		Receipts:     ref("receipts", ledger.Receipts()),
		Compliance:   model.CompliancePermissive,
	}
}

func TestAuditWithCAS_InlineEvidence(t *testing.T) {
	req := buildRequest(t, nil, nil)

	resp, err := model.AuditWithCAS(req, model.AuditOptions{})
	if err != nil {
		t.Fatalf("AuditWithCAS: %v", err)
	}
	if !resp.Passed {
		t.Fatalf("consistent evidence failed: %+v", resp.Findings)
	}
	if len(resp.Findings) == 0 {
		t.Fatal("no checks ran")
	}
	if resp.Report.CID == "" || len(resp.Report.Bytes) == 0 {
		t.Fatal("missing report document")
	}

	var doc struct {
		Mode     string          `json:"mode"`
		Passed   bool            `json:"passed"`
		Findings []model.Finding `json:"findings"`
	}
	if err := json.Unmarshal(resp.Report.Bytes, &doc); err != nil {
		t.Fatalf("report not JSON: %v", err)
	}
	if doc.Mode != "permissive" || !doc.Passed || len(doc.Findings) != len(resp.Findings) {
		t.Fatalf("report disagrees with response: %+v", doc)
	}
}

func TestAuditWithCAS_CIDEvidence(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	req := buildRequest(t, cas, map[string]bool{"dataset": true, "receipts": true})

	resp, err := model.AuditWithCAS(req, model.AuditOptions{CAS: cas, StoreReport: true})
	if err != nil {
		t.Fatalf("AuditWithCAS: %v", err)
	}
	if !resp.Passed {
		t.Fatalf("consistent evidence failed: %+v", resp.Findings)
	}

	// StoreReport wrote the canonical report back into the CAS.
	res, err := model.AuditResultView(req, model.AuditOptions{CAS: cas})
	if err != nil {
		t.Fatalf("AuditResultView: %v", err)
	}
	if !cas.Has(res.ReportCID) {
		t.Fatal("report not stored in cas")
	}
	if len(res.Invalids) != 0 {
		t.Fatalf("unexpected invalid findings: %+v", res.Invalids)
	}
}

func TestAuditWithCAS_SurfacesInvalidFindings(t *testing.T) {
	req := buildRequest(t, nil, nil)

	// Re-point the dataset record at different content.
	var dataset anchor.DatasetAnchor
	if err := json.Unmarshal(req.Dataset.Bytes, &dataset); err != nil {
		t.Fatal(err)
	}
	dataset.ContentHash = digest.EncodeHex(sum("somewhere else entirely"))
	raw, err := canonjson.Encode(dataset)
	if err != nil {
		t.Fatal(err)
	}
	req.Dataset = model.BlobRef{Bytes: raw}

	res, err := model.AuditResultView(req, model.AuditOptions{})
	if err != nil {
		t.Fatalf("AuditResultView: %v", err)
	}
	if res.Passed {
		t.Fatal("tampered dataset passed")
	}
	if len(res.Invalids) == 0 {
		t.Fatal("invalid finding not surfaced")
	}
	if res.Invalids[0].Expected == "" || res.Invalids[0].Actual == "" {
		t.Fatalf("invalid finding lacks evidence: %+v", res.Invalids[0])
	}
}

func TestAuditWithCAS_RequestErrors(t *testing.T) {
	base := buildRequest(t, nil, nil)
	strayCID := cidutil.CIDv1RawSHA256([]byte("somewhere else"))

	cases := []struct {
		name string
		mod  func(r *model.AuditRequest)
		code model.ErrorCode
	}{
		{"missing compliance", func(r *model.AuditRequest) { r.Compliance = "" }, model.ErrInvalidRequest},
		{"bad compliance", func(r *model.AuditRequest) { r.Compliance = "lenient" }, model.ErrInvalidRequest},
		{"bad master", func(r *model.AuditRequest) { r.MasterAnchor = "zz" }, model.ErrInvalidRequest},
		{"bad cid", func(r *model.AuditRequest) { r.Dataset = model.BlobRef{CID: "not-a-cid"} }, model.ErrInvalidCID},
		{"cid without cas", func(r *model.AuditRequest) {
			r.Dataset = model.BlobRef{CID: strayCID}
		}, model.ErrMissingCAS},
		{"both bytes and cid", func(r *model.AuditRequest) {
			r.Dataset = model.BlobRef{CID: "x", Bytes: []byte("{}")}
		}, model.ErrInvalidRequest},
		{"garbage record", func(r *model.AuditRequest) {
			r.Dataset = model.BlobRef{Bytes: []byte("not json")}
		}, model.ErrInvalidRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mod(&req)
			_, err := model.AuditWithCAS(req, model.AuditOptions{})
			ce, ok := err.(*model.CodedError)
			if !ok {
				t.Fatalf("got %v, want *CodedError", err)
			}
			if ce.Code != tc.code {
				t.Fatalf("got code %s, want %s", ce.Code, tc.code)
			}
		})
	}
}
