// Package receipt implements the tamper-evident inference receipt chain.
//
// Every inference event produces one immutable Receipt. A receipt's identity
// hash is the SHA-256 of its canonical JSON body, and that body includes the
// previous receipt's hash, so the receipts of a deployment form a singly
// linked hash chain: altering any receipt invalidates every receipt after it.
//
// Receipts are batched into Merkle trees and the roots published as signed
// Checkpoints, giving verifiers O(log n) inclusion proofs per receipt.
package receipt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/digest"
)

// GenesisPrevHash is the well-known sentinel carried by the first receipt of
// a chain: 32 zero bytes, hex encoded.
const GenesisPrevHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Receipt is the immutable record of one inference event.
//
// All fields are wire-stable strings; the struct round-trips through
// canonical JSON without loss, which is what makes ReceiptHash reproducible
// across processes.
type Receipt struct {
	ReceiptID            string `json:"receiptId"`
	QueryHash            string `json:"queryHash"`
	OutputHash           string `json:"outputHash"`
	ModelVersion         string `json:"modelVersion"`
	TrainingSnapshotID   string `json:"trainingSnapshotId"`
	TrainingSnapshotRoot string `json:"trainingSnapshotRoot"`
	Timestamp            string `json:"timestamp"`
	PrevReceiptHash      string `json:"prevReceiptHash"`
	ReceiptHash          string `json:"receiptHash,omitempty"`
}

// IssueParams carries the inputs to Issue. QueryHash, OutputHash, and
// TrainingSnapshotRoot are 32-byte digests of caller-opaque payloads.
type IssueParams struct {
	// ReceiptID is optional; a random UUID is assigned when empty.
	ReceiptID            string
	QueryHash            []byte
	OutputHash           []byte
	ModelVersion         string
	TrainingSnapshotID   string
	TrainingSnapshotRoot []byte
	Timestamp            time.Time
}

// Issue creates a receipt chained to prev. A nil prev starts a new chain with
// the genesis sentinel. Issue fails only on malformed input; it performs no
// policy checks and no I/O.
func Issue(p IssueParams, prev *Receipt) (Receipt, error) {
	if p.ModelVersion == "" {
		return Receipt{}, errors.New("receipt: model version is required")
	}
	if p.TrainingSnapshotID == "" {
		return Receipt{}, errors.New("receipt: training snapshot id is required")
	}
	if p.Timestamp.IsZero() {
		return Receipt{}, errors.New("receipt: timestamp is required")
	}
	if err := digest.Check32(p.QueryHash); err != nil {
		return Receipt{}, fmt.Errorf("receipt: query hash: %w", err)
	}
	if err := digest.Check32(p.OutputHash); err != nil {
		return Receipt{}, fmt.Errorf("receipt: output hash: %w", err)
	}
	if err := digest.Check32(p.TrainingSnapshotRoot); err != nil {
		return Receipt{}, fmt.Errorf("receipt: training snapshot root: %w", err)
	}

	prevHash := GenesisPrevHash
	if prev != nil {
		if prev.ReceiptHash == "" {
			return Receipt{}, errors.New("receipt: previous receipt has no hash")
		}
		if _, err := digest.DecodeHex32(prev.ReceiptHash); err != nil {
			return Receipt{}, fmt.Errorf("receipt: previous receipt hash: %w", err)
		}
		prevHash = prev.ReceiptHash
	}

	id := p.ReceiptID
	if id == "" {
		id = uuid.NewString()
	}

	r := Receipt{
		ReceiptID:            id,
		QueryHash:            digest.EncodeHex(p.QueryHash),
		OutputHash:           digest.EncodeHex(p.OutputHash),
		ModelVersion:         p.ModelVersion,
		TrainingSnapshotID:   p.TrainingSnapshotID,
		TrainingSnapshotRoot: digest.EncodeHex(p.TrainingSnapshotRoot),
		Timestamp:            p.Timestamp.UTC().Format(time.RFC3339),
		PrevReceiptHash:      prevHash,
	}
	h, err := r.ComputeHash()
	if err != nil {
		return Receipt{}, err
	}
	r.ReceiptHash = h
	return r, nil
}

// ComputeHash returns the receipt's identity hash: the SHA-256 of the
// canonical JSON body with the ReceiptHash field absent.
func (r Receipt) ComputeHash() (string, error) {
	body := r
	body.ReceiptHash = ""
	b, err := canonjson.Encode(body)
	if err != nil {
		return "", fmt.Errorf("receipt: canonicalize: %w", err)
	}
	return digest.EncodeHex(digest.SHA256(b)), nil
}

// HashBytes returns the raw 32-byte identity hash, the Merkle leaf form.
func (r Receipt) HashBytes() ([]byte, error) {
	h, err := r.ComputeHash()
	if err != nil {
		return nil, err
	}
	return digest.DecodeHex32(h)
}

// IsGenesis reports whether the receipt starts a chain.
func (r Receipt) IsGenesis() bool {
	return strings.EqualFold(r.PrevReceiptHash, GenesisPrevHash)
}
