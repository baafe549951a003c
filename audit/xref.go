package audit

import (
	"fmt"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/receipt"
)

// ValidateCrossConsistency checks the referential integrity of one complete
// provenance path from dataset through model, training session, and
// deployment to the receipt chain. These are graph checks, not cryptographic
// ones; they catch records that individually verify but do not belong
// together.
func ValidateCrossConsistency(
	dataset anchor.DatasetAnchor,
	model anchor.ModelAnchor,
	session anchor.TrainingSessionAnchor,
	deployment anchor.DeploymentAnchor,
	rec receipt.Receipt,
) []Result {
	out := make([]Result, 0, 5)

	const authCheck = "xref.model-dataset"
	if model.Authorizes(dataset.DatasetID) {
		out = append(out, valid(authCheck))
	} else {
		out = append(out, invalid(authCheck,
			fmt.Sprintf("dataset %q in authorized set", dataset.DatasetID),
			fmt.Sprintf("authorized set %v", model.AuthorizedDatasets),
			"model is not authorized to train on this dataset"))
	}

	const sessionModelCheck = "xref.session-model"
	if session.ModelAnchor == model.Anchor {
		out = append(out, valid(sessionModelCheck))
	} else {
		out = append(out, invalid(sessionModelCheck, model.Anchor, session.ModelAnchor,
			"session does not commit to this model anchor"))
	}

	const deploySessionCheck = "xref.deployment-session"
	if deployment.SessionID == session.SessionID && deployment.SessionAnchor == session.Anchor {
		out = append(out, valid(deploySessionCheck))
	} else {
		out = append(out, invalid(deploySessionCheck,
			session.SessionID+"/"+session.Anchor,
			deployment.SessionID+"/"+deployment.SessionAnchor,
			"deployment does not reference this training session"))
	}

	const receiptSessionCheck = "xref.receipt-session"
	if rec.TrainingSnapshotID == session.SessionID {
		out = append(out, valid(receiptSessionCheck))
	} else {
		out = append(out, invalid(receiptSessionCheck, session.SessionID, rec.TrainingSnapshotID,
			"receipt's training snapshot id does not match the session behind its deployment"))
	}

	const receiptRootCheck = "xref.receipt-root"
	if rec.TrainingSnapshotRoot == session.TrainingRoot {
		out = append(out, valid(receiptRootCheck))
	} else {
		out = append(out, invalid(receiptRootCheck, session.TrainingRoot, rec.TrainingSnapshotRoot,
			"receipt's training snapshot root does not match the session's"))
	}

	return out
}
