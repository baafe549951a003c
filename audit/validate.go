package audit

import (
	"fmt"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/digest"
	"xdao.co/lcm/merkle"
	"xdao.co/lcm/receipt"
)

// ValidateAnchor recomputes deriveChild(parent, contextHash) and compares it
// to the stored anchor.
func ValidateAnchor(stored anchor.Anchor, parent anchor.Anchor, contextHash []byte) Result {
	const check = "anchor.child"
	recomputed, err := anchor.DeriveChild(parent, contextHash)
	if err != nil {
		return errored(check, err)
	}
	if !recomputed.Equal(stored) {
		return invalid(check, recomputed.Hex(), stored.Hex(), "stored anchor does not recompute from parent and context")
	}
	return valid(check)
}

// ValidateDatasetAnchor recomputes a dataset anchor record from the master
// anchor and the record's own content/metadata hashes.
func ValidateDatasetAnchor(rec anchor.DatasetAnchor, master anchor.Anchor) Result {
	const check = "anchor.dataset"
	content, err := digest.DecodeHex32(rec.ContentHash)
	if err != nil {
		return errored(check, fmt.Errorf("content hash: %w", err))
	}
	meta, err := digest.DecodeHex32(rec.MetadataHash)
	if err != nil {
		return errored(check, fmt.Errorf("metadata hash: %w", err))
	}
	ctx, err := anchor.DatasetContext(content, meta)
	if err != nil {
		return errored(check, err)
	}
	recomputed, err := anchor.DeriveChild(master, ctx)
	if err != nil {
		return errored(check, err)
	}
	if recomputed.Hex() != rec.Anchor {
		return invalid(check, recomputed.Hex(), rec.Anchor, "dataset anchor does not recompute")
	}
	return valid(check)
}

// ValidateModelAnchor recomputes a model anchor record from the master anchor
// and the record's content hash.
func ValidateModelAnchor(rec anchor.ModelAnchor, master anchor.Anchor) Result {
	const check = "anchor.model"
	content, err := digest.DecodeHex32(rec.ContentHash)
	if err != nil {
		return errored(check, fmt.Errorf("content hash: %w", err))
	}
	recomputed, err := anchor.DeriveChild(master, content)
	if err != nil {
		return errored(check, err)
	}
	if recomputed.Hex() != rec.Anchor {
		return invalid(check, recomputed.Hex(), rec.Anchor, "model anchor does not recompute")
	}
	return valid(check)
}

// ValidateSessionAnchor recomputes the 3-leaf session root from the record's
// own leaves. No secret is needed; the session anchor is a public
// commitment.
func ValidateSessionAnchor(rec anchor.TrainingSessionAnchor) Result {
	const check = "anchor.session"
	modelAnchor, err := anchor.FromHex(rec.ModelAnchor)
	if err != nil {
		return errored(check, fmt.Errorf("model anchor: %w", err))
	}
	dsRoot, err := digest.DecodeHex32(rec.DatasetsRoot)
	if err != nil {
		return errored(check, fmt.Errorf("datasets root: %w", err))
	}
	trRoot, err := digest.DecodeHex32(rec.TrainingRoot)
	if err != nil {
		return errored(check, fmt.Errorf("training root: %w", err))
	}
	recomputed, err := anchor.SessionAnchorValue(modelAnchor, dsRoot, trRoot)
	if err != nil {
		return errored(check, err)
	}
	if recomputed.Hex() != rec.Anchor {
		return invalid(check, recomputed.Hex(), rec.Anchor, "session anchor does not recompute")
	}
	return valid(check)
}

// ValidateDeploymentAnchor checks both seals of a deployment record: the
// anchor (session-keyed child of the build hash) and the deployment hash
// (self-hash of the canonical record).
func ValidateDeploymentAnchor(rec anchor.DeploymentAnchor) []Result {
	out := make([]Result, 0, 2)

	const anchorCheck = "anchor.deployment"
	sessionAnchor, err := anchor.FromHex(rec.SessionAnchor)
	if err != nil {
		out = append(out, errored(anchorCheck, fmt.Errorf("session anchor: %w", err)))
	} else if build, err := digest.DecodeHex32(rec.BuildHash); err != nil {
		out = append(out, errored(anchorCheck, fmt.Errorf("build hash: %w", err)))
	} else if recomputed, err := anchor.DeriveChild(sessionAnchor, build); err != nil {
		out = append(out, errored(anchorCheck, err))
	} else if recomputed.Hex() != rec.Anchor {
		out = append(out, invalid(anchorCheck, recomputed.Hex(), rec.Anchor, "deployment anchor does not recompute"))
	} else {
		out = append(out, valid(anchorCheck))
	}

	const hashCheck = "deployment.hash"
	recomputedHash, err := rec.ComputeDeploymentHash()
	if err != nil {
		out = append(out, errored(hashCheck, err))
	} else if recomputedHash != rec.DeploymentHash {
		out = append(out, invalid(hashCheck, recomputedHash, rec.DeploymentHash, "deployment hash does not recompute"))
	} else {
		out = append(out, valid(hashCheck))
	}
	return out
}

// ValidateMerkleProof recomputes a leaf's inclusion path and compares against
// the published root.
func ValidateMerkleProof(leaf []byte, proof [][]byte, root []byte, index int) Result {
	const check = "merkle.proof"
	if err := digest.Check32(leaf); err != nil {
		return errored(check, fmt.Errorf("leaf: %w", err))
	}
	if err := digest.Check32(root); err != nil {
		return errored(check, fmt.Errorf("root: %w", err))
	}
	if merkle.VerifyProof(leaf, proof, root, index) {
		return valid(check)
	}
	return invalid(check, digest.EncodeHex(root), "(recomputed path diverges)",
		fmt.Sprintf("inclusion proof for leaf index %d does not reach the root", index))
}

// ValidateReceiptChain verifies link integrity over an ordered segment and
// reports the first break with per-link detail.
func ValidateReceiptChain(receipts []receipt.Receipt) (Result, receipt.ChainReport) {
	const check = "receipt.chain"
	report := receipt.VerifyChain(receipts)
	if report.Valid {
		return valid(check), report
	}
	idx := *report.FirstInvalidIndex
	link := report.Links[idx]
	return invalid(check, link.Expected, link.Actual,
		fmt.Sprintf("chain break at index %d: %s", idx, link.Reason)), report
}

// ValidateCheckpoint checks a checkpoint's signature and, when the batch is
// supplied, that the published root matches the batch's receipt hashes.
func ValidateCheckpoint(cp receipt.Checkpoint, batch []receipt.Receipt) []Result {
	out := make([]Result, 0, 2)

	const sigCheck = "checkpoint.signature"
	if err := cp.Verify(); err != nil {
		out = append(out, invalid(sigCheck, "(valid signature)", cp.Signature, err.Error()))
	} else {
		out = append(out, valid(sigCheck))
	}

	if batch != nil {
		const rootCheck = "checkpoint.root"
		ts, err := time.Parse(time.RFC3339, cp.Timestamp)
		if err != nil {
			out = append(out, errored(rootCheck, fmt.Errorf("timestamp: %w", err)))
			return out
		}
		recomputed, _, err := receipt.NewCheckpoint(cp.DeploymentID, batch, ts)
		if err != nil {
			out = append(out, errored(rootCheck, err))
		} else if recomputed.Root != cp.Root || recomputed.TreeSize != cp.TreeSize {
			out = append(out, invalid(rootCheck, recomputed.Root, cp.Root, "checkpoint root does not recompute from batch"))
		} else {
			out = append(out, valid(rootCheck))
		}
	}
	return out
}
