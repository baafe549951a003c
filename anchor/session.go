package anchor

import (
	"time"

	"xdao.co/lcm/digest"
	"xdao.co/lcm/merkle"
)

// TrainingSessionAnchor binds one training run to a model version, the
// datasets it consumed, and the training-snapshot Merkle root.
//
// Unlike the simple HMAC chain, the session anchor is the root of a 3-leaf
// Merkle tree over {modelAnchor, datasetsRoot, trainingRoot} (in that fixed
// order, duplicate-last pairing). Any of the three can later be proven
// included without revealing the others.
type TrainingSessionAnchor struct {
	SessionID    string `json:"sessionId"`
	ModelAnchor  string `json:"modelAnchor"`
	DatasetsRoot string `json:"datasetsRoot"`
	TrainingRoot string `json:"trainingRoot"`
	Anchor       string `json:"anchor"`
	CreatedAt    string `json:"createdAt"`
}

// NewTrainingSessionAnchor computes the session anchor over the three
// 32-byte commitments.
func NewTrainingSessionAnchor(sessionID string, modelAnchor Anchor, datasetsRoot, trainingRoot []byte, createdAt time.Time) (TrainingSessionAnchor, error) {
	if sessionID == "" {
		return TrainingSessionAnchor{}, newError(KindInput, "LCM-ANCHOR-031", "session id is required")
	}
	ts, err := formatTime(createdAt)
	if err != nil {
		return TrainingSessionAnchor{}, err
	}
	a, err := SessionAnchorValue(modelAnchor, datasetsRoot, trainingRoot)
	if err != nil {
		return TrainingSessionAnchor{}, err
	}
	return TrainingSessionAnchor{
		SessionID:    sessionID,
		ModelAnchor:  modelAnchor.Hex(),
		DatasetsRoot: digest.EncodeHex(datasetsRoot),
		TrainingRoot: digest.EncodeHex(trainingRoot),
		Anchor:       a.Hex(),
		CreatedAt:    ts,
	}, nil
}

// SessionAnchorValue returns the raw session anchor: the Merkle root of the
// 3-leaf tree [modelAnchor, datasetsRoot, trainingRoot].
func SessionAnchorValue(modelAnchor Anchor, datasetsRoot, trainingRoot []byte) (Anchor, error) {
	if modelAnchor.IsZero() {
		return Anchor{}, newError(KindInput, "LCM-ANCHOR-012", "model anchor is zero (wiped or unset)")
	}
	if err := digest.Check32(datasetsRoot); err != nil {
		return Anchor{}, wrapError(KindInput, "LCM-ANCHOR-011", "datasets root must be 32 bytes", err)
	}
	if err := digest.Check32(trainingRoot); err != nil {
		return Anchor{}, wrapError(KindInput, "LCM-ANCHOR-011", "training root must be 32 bytes", err)
	}

	tree, err := merkle.Build([][]byte{modelAnchor.Bytes(), datasetsRoot, trainingRoot})
	if err != nil {
		return Anchor{}, wrapError(KindInternal, "LCM-ANCHOR-093", "session tree build failed", err)
	}
	return FromBytes(tree.Root())
}

// DatasetsRoot batches the dataset anchors a session trained against into a
// single Merkle root. Order is significant: callers fix it (typically sorted
// by dataset ID) and must keep it stable for revalidation.
func DatasetsRoot(anchors []Anchor) (Anchor, error) {
	if len(anchors) == 0 {
		return Anchor{}, newError(KindInput, "LCM-ANCHOR-032", "at least one dataset anchor is required")
	}
	leaves := make([][]byte, len(anchors))
	for i, a := range anchors {
		if a.IsZero() {
			return Anchor{}, newError(KindInput, "LCM-ANCHOR-012", "dataset anchor is zero (wiped or unset)")
		}
		leaves[i] = a.Bytes()
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return Anchor{}, wrapError(KindInternal, "LCM-ANCHOR-093", "datasets tree build failed", err)
	}
	return FromBytes(tree.Root())
}
