package receipt

import (
	"sync"
	"testing"
	"time"

	"xdao.co/lcm/merkle"
)

func TestVerifyChainIntactSegments(t *testing.T) {
	for _, n := range []int{1, 2, 5, 16} {
		chain := mustChain(t, n)
		report := VerifyChain(chain)
		if !report.Valid {
			t.Fatalf("n=%d: intact chain reported invalid: %+v", n, report)
		}
		if report.FirstInvalidIndex != nil {
			t.Fatalf("n=%d: FirstInvalidIndex set on intact chain", n)
		}
		if len(report.Links) != n {
			t.Fatalf("n=%d: got %d links", n, len(report.Links))
		}
	}
}

func TestVerifyChainEmptySegment(t *testing.T) {
	report := VerifyChain(nil)
	if !report.Valid || len(report.Links) != 0 {
		t.Fatalf("empty segment: %+v", report)
	}
}

func TestVerifyChainDetectsMiddleReplacement(t *testing.T) {
	chain := mustChain(t, 5)
	const k = 2

	// Replace receipt k with a different, internally consistent receipt
	// issued against the same predecessor.
	p := params(9)
	p.ReceiptID = "replacement"
	replacement, err := Issue(p, &chain[k-1])
	if err != nil {
		t.Fatalf("Issue replacement: %v", err)
	}
	chain[k] = replacement

	report := VerifyChain(chain)
	if report.Valid {
		t.Fatal("replaced receipt accepted")
	}
	if report.FirstInvalidIndex == nil || *report.FirstInvalidIndex != k+1 {
		t.Fatalf("got FirstInvalidIndex %v, want %d", report.FirstInvalidIndex, k+1)
	}
	link := report.Links[k+1]
	if link.PrevOK || link.Expected == "" || link.Actual == "" {
		t.Fatalf("link detail missing expected/actual evidence: %+v", link)
	}
	if link.Expected != replacement.ReceiptHash || link.Actual != chain[k+1].PrevReceiptHash {
		t.Fatalf("evidence mismatch: %+v", link)
	}
}

func TestVerifyChainDetectsFieldTamper(t *testing.T) {
	chain := mustChain(t, 3)
	chain[1].ModelVersion = "model-v4" // body no longer matches recorded hash

	report := VerifyChain(chain)
	if report.Valid {
		t.Fatal("tampered receipt accepted")
	}
	if report.FirstInvalidIndex == nil || *report.FirstInvalidIndex != 1 {
		t.Fatalf("got FirstInvalidIndex %v, want 1", report.FirstInvalidIndex)
	}
	if report.Links[1].HashOK {
		t.Fatal("hash recomputation did not flag the tampered body")
	}
}

func TestVerifyChainReportsAllLinksPastFirstBreak(t *testing.T) {
	chain := mustChain(t, 4)
	chain[1].OutputHash = chain[0].OutputHash

	report := VerifyChain(chain)
	if len(report.Links) != 4 {
		t.Fatalf("report stopped early: %d links", len(report.Links))
	}
}

func TestLedgerSerializesConcurrentAppends(t *testing.T) {
	l, err := NewLedger("deploy-1")
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	l.Now = func() time.Time { return issueTime }

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.Append(params(i % 8)); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if l.Len() != n {
		t.Fatalf("got %d receipts, want %d", l.Len(), n)
	}
	// Serialization means the result is one unbroken chain, no forks.
	report := VerifyChain(l.Receipts())
	if !report.Valid {
		t.Fatalf("concurrent appends forked the chain: %+v", report.FirstInvalidIndex)
	}

	head, ok := l.Head()
	if !ok {
		t.Fatal("ledger has no head")
	}
	receipts := l.Receipts()
	if receipts[len(receipts)-1].ReceiptHash != head.ReceiptHash {
		t.Fatal("head is not the last receipt")
	}
}

func TestLedgerCheckpointBatches(t *testing.T) {
	l, err := NewLedger("deploy-1")
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	l.Now = func() time.Time { return issueTime }

	for i := 0; i < 3; i++ {
		if _, err := l.Append(params(i)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	cp, tree, batch, err := l.Checkpoint(issueTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.TreeSize != 3 || len(batch) != 3 {
		t.Fatalf("got tree size %d and batch %d, want 3 receipts", cp.TreeSize, len(batch))
	}
	if cp.DeploymentID != "deploy-1" {
		t.Fatalf("unexpected deployment id %q", cp.DeploymentID)
	}

	// The ledger checkpoint must agree with the standalone constructor over
	// the same batch.
	want, _, err := NewCheckpoint("deploy-1", batch, issueTime.Add(time.Hour))
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	if cp.Root != want.Root {
		t.Fatalf("roots disagree: %s vs %s", cp.Root, want.Root)
	}

	// The tree supports inclusion proofs for the batch.
	leaf, err := batch[1].HashBytes()
	if err != nil {
		t.Fatalf("HashBytes: %v", err)
	}
	proof, err := tree.Proof(1)
	if err != nil {
		t.Fatalf("Proof: %v", err)
	}
	root, err := cp.RootBytes()
	if err != nil {
		t.Fatalf("RootBytes: %v", err)
	}
	if !merkle.VerifyProof(leaf, proof, root, 1) {
		t.Fatal("inclusion proof rejected")
	}

	// Nothing pending right after a checkpoint.
	if _, _, _, err := l.Checkpoint(issueTime.Add(2 * time.Hour)); err == nil {
		t.Fatal("expected error when no receipts are pending")
	}

	// Receipts appended afterwards land in the next batch only.
	if _, err := l.Append(params(7)); err != nil {
		t.Fatalf("Append: %v", err)
	}
	cp2, _, batch2, err := l.Checkpoint(issueTime.Add(3 * time.Hour))
	if err != nil {
		t.Fatalf("second Checkpoint: %v", err)
	}
	if cp2.TreeSize != 1 || len(batch2) != 1 {
		t.Fatalf("second batch: tree size %d, batch %d, want 1", cp2.TreeSize, len(batch2))
	}
	if batch2[0].ReceiptHash == batch[2].ReceiptHash {
		t.Fatal("second batch reuses the first batch's receipts")
	}
}

func TestNewLedgerRequiresDeploymentID(t *testing.T) {
	if _, err := NewLedger(""); err == nil {
		t.Fatal("expected error for empty deployment id")
	}
}
