package bundle

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/receipt"
	"xdao.co/lcm/storage"
)

// Well-known label names used by evidence bundles.
const (
	LabelDataset    = "dataset"
	LabelModel      = "model"
	LabelSession    = "session"
	LabelDeployment = "deployment"
	LabelReceipts   = "receipts"
	LabelCheckpoint = "checkpoint"
)

// Evidence names one provenance path's records for export. Every field is
// optional; absent records are simply not bundled.
//
// The master anchor is deliberately not part of an evidence bundle: it is
// secret material, and every record here verifies without it or against a
// master the verifier already holds.
type Evidence struct {
	Dataset    *anchor.DatasetAnchor
	Model      *anchor.ModelAnchor
	Session    *anchor.TrainingSessionAnchor
	Deployment *anchor.DeploymentAnchor
	Receipts   []receipt.Receipt
	Checkpoint *receipt.Checkpoint
}

// ExportEvidence canonicalizes each present record, writes it through cas and
// exports a labeled bundle containing exactly those blocks. It returns the
// label-to-CID mapping that also appears in the bundle's index.
func ExportEvidence(w io.Writer, cas storage.CAS, ev Evidence) (map[string]cid.Cid, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}

	labels := make(map[string]cid.Cid)
	put := func(label string, v any) error {
		raw, err := canonjson.Encode(v)
		if err != nil {
			return fmt.Errorf("bundle: canonicalize %s: %w", label, err)
		}
		id, err := cas.Put(raw)
		if err != nil {
			return fmt.Errorf("bundle: store %s: %w", label, err)
		}
		labels[label] = id
		return nil
	}

	if ev.Dataset != nil {
		if err := put(LabelDataset, ev.Dataset); err != nil {
			return nil, err
		}
	}
	if ev.Model != nil {
		if err := put(LabelModel, ev.Model); err != nil {
			return nil, err
		}
	}
	if ev.Session != nil {
		if err := put(LabelSession, ev.Session); err != nil {
			return nil, err
		}
	}
	if ev.Deployment != nil {
		if err := put(LabelDeployment, ev.Deployment); err != nil {
			return nil, err
		}
	}
	if len(ev.Receipts) > 0 {
		if err := put(LabelReceipts, ev.Receipts); err != nil {
			return nil, err
		}
	}
	if ev.Checkpoint != nil {
		if err := put(LabelCheckpoint, ev.Checkpoint); err != nil {
			return nil, err
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("bundle: no evidence to export")
	}

	ids := make([]cid.Cid, 0, len(labels))
	for _, id := range labels {
		ids = append(ids, id)
	}
	if err := Export(w, cas, ids, ExportOptions{Labels: labels, IncludeIndex: true}); err != nil {
		return nil, err
	}
	return labels, nil
}

// ReadLabels scans a bundle for its index.json and returns the label-to-CID
// mapping. Bundles exported without an index yield storage.ErrNotFound.
func ReadLabels(r io.Reader) (map[string]cid.Cid, error) {
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, storage.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		if cleanTarPath(h.Name) != "index.json" {
			continue
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		var idx indexJSON
		if err := json.Unmarshal(raw, &idx); err != nil {
			return nil, fmt.Errorf("bundle: invalid index.json: %w", err)
		}
		out := make(map[string]cid.Cid, len(idx.Labels))
		for _, l := range idx.Labels {
			name := strings.TrimSpace(l.Name)
			if name == "" {
				return nil, fmt.Errorf("bundle: empty label name in index")
			}
			id, err := cid.Decode(l.CID)
			if err != nil {
				return nil, storage.ErrInvalidCID
			}
			out[name] = id
		}
		return out, nil
	}
}
