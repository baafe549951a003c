package audit

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/compliance"
	"xdao.co/lcm/merkle"
	"xdao.co/lcm/receipt"
)

var auditTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func h(s string) []byte {
	d := sha256.Sum256([]byte(s))
	return d[:]
}

// fixture builds one internally consistent provenance path.
type fixture struct {
	master     anchor.Anchor
	dataset    anchor.DatasetAnchor
	model      anchor.ModelAnchor
	session    anchor.TrainingSessionAnchor
	deployment anchor.DeploymentAnchor
	receipts   []receipt.Receipt
	checkpoint receipt.Checkpoint
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	var f fixture
	var err error

	f.master, err = anchor.DeriveMaster("audit-secret", make([]byte, 16), anchor.MinIterations)
	if err != nil {
		t.Fatalf("DeriveMaster: %v", err)
	}

	f.dataset, err = anchor.NewDatasetAnchor(f.master, "dataset-v1", h("dataset bytes"), h("dataset meta"), auditTime)
	if err != nil {
		t.Fatalf("NewDatasetAnchor: %v", err)
	}
	f.model, err = anchor.NewModelAnchor(f.master, "model-v3", h("model bytes"), []string{"dataset-v1"}, auditTime)
	if err != nil {
		t.Fatalf("NewModelAnchor: %v", err)
	}

	modelAnchor, err := anchor.FromHex(f.model.Anchor)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	datasetAnchor, err := anchor.FromHex(f.dataset.Anchor)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	dsRoot, err := anchor.DatasetsRoot([]anchor.Anchor{datasetAnchor})
	if err != nil {
		t.Fatalf("DatasetsRoot: %v", err)
	}
	f.session, err = anchor.NewTrainingSessionAnchor("sess-1", modelAnchor, dsRoot.Bytes(), h("training snapshot"), auditTime)
	if err != nil {
		t.Fatalf("NewTrainingSessionAnchor: %v", err)
	}
	f.deployment, err = anchor.NewDeploymentAnchor(f.session, "deploy-1", h("build artifact"), auditTime)
	if err != nil {
		t.Fatalf("NewDeploymentAnchor: %v", err)
	}

	ledger, err := receipt.NewLedger("deploy-1")
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	ledger.Now = func() time.Time { return auditTime }
	for i := 0; i < 4; i++ {
		_, err := ledger.Append(receipt.IssueParams{
			QueryHash:            h("query" + string(rune('0'+i))),
			OutputHash:           h("output" + string(rune('0'+i))),
			ModelVersion:         "model-v3",
			TrainingSnapshotID:   "sess-1",
			TrainingSnapshotRoot: h("training snapshot"),
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	f.receipts = ledger.Receipts()

	cp, _, err := receipt.NewCheckpoint("deploy-1", f.receipts, auditTime)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	if err := cp.SignEd25519(priv); err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}
	f.checkpoint = cp
	return f
}

func (f fixture) evidence() Evidence {
	master := f.master
	dataset, model, session, deployment, cp := f.dataset, f.model, f.session, f.deployment, f.checkpoint
	return Evidence{
		Master:     &master,
		Dataset:    &dataset,
		Model:      &model,
		Session:    &session,
		Deployment: &deployment,
		Receipts:   f.receipts,
		Checkpoint: &cp,
	}
}

func TestRunAllValid(t *testing.T) {
	f := newFixture(t)
	report := Auditor{Mode: compliance.Strict}.Run(f.evidence())

	v, inv, errs := report.Counts()
	if inv != 0 || errs != 0 {
		t.Fatalf("clean evidence produced findings: %+v", report.Findings)
	}
	if v == 0 {
		t.Fatal("no checks ran")
	}
	if !report.Passed(compliance.Strict) || !report.Passed(compliance.Permissive) {
		t.Fatal("clean run did not pass")
	}
}

func TestValidateDatasetAnchorDetectsTamper(t *testing.T) {
	f := newFixture(t)
	tampered := f.dataset
	tampered.ContentHash = f.model.ContentHash // points at different content

	res := ValidateDatasetAnchor(tampered, f.master)
	if res.Status != StatusInvalid {
		t.Fatalf("got %s, want INVALID", res.Status)
	}
	if res.Detail == nil || res.Detail.Expected == res.Detail.Actual {
		t.Fatalf("missing or useless detail: %+v", res)
	}
}

func TestValidateDatasetAnchorMalformedIsError(t *testing.T) {
	f := newFixture(t)
	broken := f.dataset
	broken.ContentHash = "zz-not-hex"

	res := ValidateDatasetAnchor(broken, f.master)
	if res.Status != StatusError {
		t.Fatalf("got %s, want ERROR: malformed evidence is not a mismatch", res.Status)
	}
}

func TestValidateSessionAnchorDetectsTamper(t *testing.T) {
	f := newFixture(t)
	tampered := f.session
	tampered.TrainingRoot = f.session.DatasetsRoot

	res := ValidateSessionAnchor(tampered)
	if res.Status != StatusInvalid {
		t.Fatalf("got %s, want INVALID", res.Status)
	}
}

func TestValidateDeploymentAnchorDetectsTamper(t *testing.T) {
	f := newFixture(t)
	tampered := f.deployment
	tampered.BuildHash = f.session.TrainingRoot

	results := ValidateDeploymentAnchor(tampered)
	sawInvalid := false
	for _, r := range results {
		if r.Status == StatusInvalid {
			sawInvalid = true
		}
	}
	if !sawInvalid {
		t.Fatalf("tampered deployment passed: %+v", results)
	}
}

func TestValidateMerkleProof(t *testing.T) {
	leaves := [][]byte{h("a"), h("b"), h("c")}
	tree, err := merkle.Build(leaves)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}

	if res := ValidateMerkleProof(leaves[1], proof, tree.Root(), 1); res.Status != StatusValid {
		t.Fatalf("valid proof reported %s", res.Status)
	}
	if res := ValidateMerkleProof(leaves[0], proof, tree.Root(), 1); res.Status != StatusInvalid {
		t.Fatalf("wrong leaf reported %s", res.Status)
	}
	if res := ValidateMerkleProof([]byte("short"), proof, tree.Root(), 1); res.Status != StatusError {
		t.Fatalf("malformed leaf reported %s", res.Status)
	}
}

func TestValidateReceiptChainReportsBreak(t *testing.T) {
	f := newFixture(t)
	receipts := append([]receipt.Receipt(nil), f.receipts...)
	receipts[2].OutputHash = receipts[1].OutputHash

	res, chainReport := ValidateReceiptChain(receipts)
	if res.Status != StatusInvalid {
		t.Fatalf("got %s, want INVALID", res.Status)
	}
	if chainReport.FirstInvalidIndex == nil || *chainReport.FirstInvalidIndex != 2 {
		t.Fatalf("got FirstInvalidIndex %v, want 2", chainReport.FirstInvalidIndex)
	}
}

func TestValidateCheckpointSignatureAndRoot(t *testing.T) {
	f := newFixture(t)

	results := ValidateCheckpoint(f.checkpoint, f.receipts)
	for _, r := range results {
		if r.Status != StatusValid {
			t.Fatalf("clean checkpoint: %+v", r)
		}
	}

	// Signature over a mutated body fails.
	tampered := f.checkpoint
	tampered.TreeSize++
	results = ValidateCheckpoint(tampered, nil)
	if results[0].Status != StatusInvalid {
		t.Fatalf("tampered checkpoint signature reported %s", results[0].Status)
	}

	// Root over a different batch fails.
	results = ValidateCheckpoint(f.checkpoint, f.receipts[:3])
	sawRootInvalid := false
	for _, r := range results {
		if r.Check == "checkpoint.root" && r.Status == StatusInvalid {
			sawRootInvalid = true
		}
	}
	if !sawRootInvalid {
		t.Fatalf("truncated batch accepted: %+v", results)
	}
}

func TestValidateCrossConsistency(t *testing.T) {
	f := newFixture(t)

	results := ValidateCrossConsistency(f.dataset, f.model, f.session, f.deployment, f.receipts[0])
	for _, r := range results {
		if r.Status != StatusValid {
			t.Fatalf("consistent path: %+v", r)
		}
	}

	// Unauthorized dataset.
	strangeDataset := f.dataset
	strangeDataset.DatasetID = "dataset-v2"
	results = ValidateCrossConsistency(strangeDataset, f.model, f.session, f.deployment, f.receipts[0])
	if results[0].Check != "xref.model-dataset" || results[0].Status != StatusInvalid {
		t.Fatalf("unauthorized dataset accepted: %+v", results[0])
	}

	// Receipt claiming a different snapshot.
	strayReceipt := f.receipts[0]
	strayReceipt.TrainingSnapshotID = "sess-2"
	results = ValidateCrossConsistency(f.dataset, f.model, f.session, f.deployment, strayReceipt)
	found := false
	for _, r := range results {
		if r.Check == "xref.receipt-session" && r.Status == StatusInvalid {
			found = true
		}
	}
	if !found {
		t.Fatalf("stray receipt accepted: %+v", results)
	}
}

func TestRunAggregatesAndNeverAbortsEarly(t *testing.T) {
	f := newFixture(t)
	ev := f.evidence()

	// Corrupt two independent pieces; both must be reported.
	broken := *ev.Dataset
	broken.ContentHash = f.model.ContentHash
	ev.Dataset = &broken
	receipts := append([]receipt.Receipt(nil), f.receipts...)
	receipts[1].ModelVersion = "model-v9"
	ev.Receipts = receipts

	report := Auditor{}.Run(ev)
	_, inv, _ := report.Counts()
	if inv < 2 {
		t.Fatalf("expected at least 2 invalid findings, got %d: %+v", inv, report.Findings)
	}
	if report.Passed(compliance.Permissive) {
		t.Fatal("run with invalid findings passed")
	}
}

func TestErrorFindingsFailOnlyStrictMode(t *testing.T) {
	f := newFixture(t)
	ev := Evidence{Master: &f.master}
	broken := f.dataset
	broken.MetadataHash = "not-hex"
	ev.Dataset = &broken

	report := Auditor{Mode: compliance.Strict}.Run(ev)
	_, inv, errs := report.Counts()
	if inv != 0 || errs != 1 {
		t.Fatalf("got inv=%d errs=%d, want 0/1", inv, errs)
	}
	if report.Passed(compliance.Strict) {
		t.Fatal("strict mode passed with errored checks")
	}
	if !report.Passed(compliance.Permissive) {
		t.Fatal("permissive mode failed on errored checks alone")
	}
}
