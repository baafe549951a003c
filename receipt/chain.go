package receipt

import (
	"errors"
	"sync"
	"time"

	"xdao.co/lcm/digest"
	"xdao.co/lcm/merkle"
)

// LinkCheck is the verification detail for one receipt in a chain segment.
type LinkCheck struct {
	Index int `json:"index"`
	// HashOK reports that the receipt's recorded hash recomputes from its body.
	HashOK bool `json:"hashOk"`
	// PrevOK reports that the recorded prevReceiptHash matches the actual
	// hash of the predecessor (always true for the segment's first receipt).
	PrevOK bool `json:"prevOk"`
	// Expected and Actual carry the mismatching values when a check fails.
	// They are the actionable compliance evidence; consumers must surface
	// them verbatim.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// ChainReport is the result of verifying an ordered receipt segment.
type ChainReport struct {
	Valid bool `json:"valid"`
	// FirstInvalidIndex is the index of the first broken link, nil when the
	// segment is intact.
	FirstInvalidIndex *int        `json:"firstInvalidIndex,omitempty"`
	Links             []LinkCheck `json:"links"`
}

// VerifyChain walks an ordered receipt segment and checks every link: each
// receipt's recorded hash must recompute from its body, and each recorded
// prevReceiptHash must equal the actual hash of its predecessor.
//
// A broken link is reported, never repaired. The walk continues past the
// first break so the report covers the whole segment, but Valid and
// FirstInvalidIndex reflect the first break found.
func VerifyChain(receipts []Receipt) ChainReport {
	report := ChainReport{Valid: true, Links: make([]LinkCheck, 0, len(receipts))}

	var prevActual string
	for i, r := range receipts {
		link := LinkCheck{Index: i, HashOK: true, PrevOK: true}

		actual, err := r.ComputeHash()
		if err != nil {
			link.HashOK = false
			link.Reason = "receipt body does not canonicalize: " + err.Error()
		} else if r.ReceiptHash != actual {
			link.HashOK = false
			link.Expected = actual
			link.Actual = r.ReceiptHash
			link.Reason = "recorded receipt hash does not recompute"
		}

		if i > 0 && link.Reason == "" {
			if r.PrevReceiptHash != prevActual {
				link.PrevOK = false
				link.Expected = prevActual
				link.Actual = r.PrevReceiptHash
				link.Reason = "prevReceiptHash does not match predecessor"
			}
		}

		if (!link.HashOK || !link.PrevOK) && report.FirstInvalidIndex == nil {
			idx := i
			report.FirstInvalidIndex = &idx
			report.Valid = false
		}
		report.Links = append(report.Links, link)
		prevActual = actual
	}
	return report
}

// Ledger serializes receipt issuance for one deployment.
//
// Receipt chaining needs a single globally agreed head per chain; concurrent
// issuance without serialization forks the chain. Appends take the ledger
// mutex, so hashing stays parallel across deployments but ordered within one.
type Ledger struct {
	mu           sync.Mutex
	deploymentID string
	receipts     []Receipt

	// batch accumulates the hashes of receipts issued since the last
	// checkpoint; pending marks where that batch starts in receipts.
	batch   merkle.Batcher
	pending int

	// Now supplies append timestamps when IssueParams.Timestamp is zero.
	// Tests override it for reproducible chains.
	Now func() time.Time
}

// NewLedger creates an empty ledger for a deployment.
func NewLedger(deploymentID string) (*Ledger, error) {
	if deploymentID == "" {
		return nil, errors.New("receipt: deployment id is required")
	}
	return &Ledger{deploymentID: deploymentID, Now: time.Now}, nil
}

// DeploymentID returns the deployment this ledger chains receipts for.
func (l *Ledger) DeploymentID() string {
	return l.deploymentID
}

// Append issues a receipt chained to the current head and advances the head.
func (l *Ledger) Append(p IssueParams) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p.Timestamp.IsZero() {
		p.Timestamp = l.Now()
	}
	var prev *Receipt
	if n := len(l.receipts); n > 0 {
		prev = &l.receipts[n-1]
	}
	r, err := Issue(p, prev)
	if err != nil {
		return Receipt{}, err
	}
	leaf, err := r.HashBytes()
	if err != nil {
		return Receipt{}, err
	}
	if _, err := l.batch.Append(leaf); err != nil {
		return Receipt{}, err
	}
	l.receipts = append(l.receipts, r)
	return r, nil
}

// Checkpoint freezes the receipts issued since the previous checkpoint into
// a Merkle tree and returns the unsigned checkpoint, the tree (for proof
// extraction), and the batch it covers. Receipts appended afterwards start
// the next batch. Fails when no receipts are pending.
func (l *Ledger) Checkpoint(ts time.Time) (Checkpoint, *merkle.Tree, []Receipt, error) {
	if ts.IsZero() {
		return Checkpoint{}, nil, nil, errors.New("receipt: timestamp is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tree, err := l.batch.Snapshot()
	if err != nil {
		return Checkpoint{}, nil, nil, errors.New("receipt: no receipts pending checkpoint")
	}
	batch := make([]Receipt, len(l.receipts)-l.pending)
	copy(batch, l.receipts[l.pending:])
	l.pending = len(l.receipts)

	cp := Checkpoint{
		DeploymentID: l.deploymentID,
		TreeSize:     tree.LeafCount(),
		Root:         digest.EncodeHex(tree.Root()),
		Timestamp:    ts.UTC().Format(time.RFC3339),
	}
	return cp, tree, batch, nil
}

// Head returns the most recent receipt, if any.
func (l *Ledger) Head() (Receipt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.receipts) == 0 {
		return Receipt{}, false
	}
	return l.receipts[len(l.receipts)-1], true
}

// Len returns the number of receipts issued.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.receipts)
}

// Receipts returns a copy of the chain in issuance order.
func (l *Ledger) Receipts() []Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Receipt, len(l.receipts))
	copy(out, l.receipts)
	return out
}
