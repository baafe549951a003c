package bundle_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"testing"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/receipt"
	"xdao.co/lcm/storage/bundle"
	"xdao.co/lcm/storage/localfs"
)

func evidenceFixture(t *testing.T) bundle.Evidence {
	t.Helper()
	at := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	sum := func(s string) []byte {
		d := sha256.Sum256([]byte(s))
		return d[:]
	}

	master, err := anchor.DeriveMaster("bundle-secret", make([]byte, 16), anchor.MinIterations)
	if err != nil {
		t.Fatal(err)
	}
	dataset, err := anchor.NewDatasetAnchor(master, "ds-1", sum("content"), sum("meta"), at)
	if err != nil {
		t.Fatal(err)
	}
	model, err := anchor.NewModelAnchor(master, "m-1", sum("weights"), []string{"ds-1"}, at)
	if err != nil {
		t.Fatal(err)
	}

	ledger, err := receipt.NewLedger("dep-1")
	if err != nil {
		t.Fatal(err)
	}
	ledger.Now = func() time.Time { return at }
	if _, err := ledger.Append(receipt.IssueParams{
		QueryHash:            sum("q"),
		OutputHash:           sum("o"),
		ModelVersion:         "m-1",
		TrainingSnapshotID:   "sess-1",
		TrainingSnapshotRoot: sum("root"),
	}); err != nil {
		t.Fatal(err)
	}

	return bundle.Evidence{
		Dataset:  &dataset,
		Model:    &model,
		Receipts: ledger.Receipts(),
	}
}

func TestExportEvidence_RoundTrip(t *testing.T) {
	ev := evidenceFixture(t)
	src, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	labels, err := bundle.ExportEvidence(&buf, src, ev)
	if err != nil {
		t.Fatalf("ExportEvidence: %v", err)
	}
	for _, want := range []string{bundle.LabelDataset, bundle.LabelModel, bundle.LabelReceipts} {
		if _, ok := labels[want]; !ok {
			t.Fatalf("missing label %q", want)
		}
	}

	gotLabels, err := bundle.ReadLabels(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	if len(gotLabels) != len(labels) {
		t.Fatalf("label count mismatch: got %d want %d", len(gotLabels), len(labels))
	}

	dst, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := bundle.Import(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatalf("Import: %v", err)
	}

	raw, err := dst.Get(gotLabels[bundle.LabelDataset])
	if err != nil {
		t.Fatalf("Get dataset: %v", err)
	}
	var dataset anchor.DatasetAnchor
	if err := json.Unmarshal(raw, &dataset); err != nil {
		t.Fatalf("unmarshal dataset: %v", err)
	}
	if dataset.Anchor != ev.Dataset.Anchor {
		t.Fatalf("dataset record changed across the bundle")
	}
}

func TestExportEvidence_Deterministic(t *testing.T) {
	ev := evidenceFixture(t)
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	var a, b bytes.Buffer
	if _, err := bundle.ExportEvidence(&a, cas, ev); err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.ExportEvidence(&b, cas, ev); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("expected deterministic evidence bundle bytes")
	}
}

func TestExportEvidence_RejectsEmpty(t *testing.T) {
	cas, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if _, err := bundle.ExportEvidence(&buf, cas, bundle.Evidence{}); err == nil {
		t.Fatal("expected error for empty evidence")
	}
}
