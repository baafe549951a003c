// Package storage persists the immutable artifacts of the provenance trail:
// anchor records, receipt batches, checkpoints, and audit reports, each
// addressed by the CID of its canonical JSON bytes.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable store.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (callers supply canonical
//   JSON, so a record's CID is reproducible from the record alone).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
