package anchor

import (
	"sort"
	"time"

	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/digest"
)

// DeriveChild derives a child anchor as HMAC-SHA256(parent, contextHash).
//
// The same derivation serves dataset, model, and deployment anchors; the only
// difference is what contextHash commits to. Given identical inputs the
// output bytes are always identical, which is the property every validator
// checks.
func DeriveChild(parent Anchor, contextHash []byte) (Anchor, error) {
	if parent.IsZero() {
		return Anchor{}, newError(KindInput, "LCM-ANCHOR-012", "parent anchor is zero (wiped or unset)")
	}
	if err := digest.Check32(contextHash); err != nil {
		return Anchor{}, wrapError(KindInput, "LCM-ANCHOR-011", "context hash must be 32 bytes", err)
	}
	mac, err := digest.HMACSHA256(parent.b[:], contextHash)
	if err != nil {
		return Anchor{}, wrapError(KindCrypto, "LCM-ANCHOR-091", "hmac derivation failed", err)
	}
	return FromBytes(mac)
}

// DatasetContext builds the 32-byte context hash a dataset anchor commits to:
// SHA256(contentHash || metadataHash).
func DatasetContext(contentHash, metadataHash []byte) ([]byte, error) {
	if err := digest.Check32(contentHash); err != nil {
		return nil, wrapError(KindInput, "LCM-ANCHOR-011", "dataset content hash must be 32 bytes", err)
	}
	if err := digest.Check32(metadataHash); err != nil {
		return nil, wrapError(KindInput, "LCM-ANCHOR-011", "dataset metadata hash must be 32 bytes", err)
	}
	msg := make([]byte, 0, 2*digest.Size)
	msg = append(msg, contentHash...)
	msg = append(msg, metadataHash...)
	return digest.SHA256(msg), nil
}

// DatasetAnchor is the persisted record of a dataset anchor. All fields are
// wire-stable strings; the record hashes reproducibly under canonical JSON.
type DatasetAnchor struct {
	DatasetID    string `json:"datasetId"`
	ContentHash  string `json:"contentHash"`
	MetadataHash string `json:"metadataHash"`
	Anchor       string `json:"anchor"`
	CreatedAt    string `json:"createdAt"`
}

// NewDatasetAnchor derives a dataset anchor from the master anchor and the
// dataset's content and metadata hashes (32 bytes each).
func NewDatasetAnchor(master Anchor, datasetID string, contentHash, metadataHash []byte, createdAt time.Time) (DatasetAnchor, error) {
	if datasetID == "" {
		return DatasetAnchor{}, newError(KindInput, "LCM-ANCHOR-021", "dataset id is required")
	}
	ts, err := formatTime(createdAt)
	if err != nil {
		return DatasetAnchor{}, err
	}
	ctx, err := DatasetContext(contentHash, metadataHash)
	if err != nil {
		return DatasetAnchor{}, err
	}
	a, err := DeriveChild(master, ctx)
	if err != nil {
		return DatasetAnchor{}, err
	}
	return DatasetAnchor{
		DatasetID:    datasetID,
		ContentHash:  digest.EncodeHex(contentHash),
		MetadataHash: digest.EncodeHex(metadataHash),
		Anchor:       a.Hex(),
		CreatedAt:    ts,
	}, nil
}

// ModelAnchor is the persisted record of a model anchor. AuthorizedDatasets
// lists the dataset IDs this model may train against. The list is stored
// sorted and deduplicated so the record hashes deterministically.
type ModelAnchor struct {
	ModelID            string   `json:"modelId"`
	ContentHash        string   `json:"contentHash"`
	Anchor             string   `json:"anchor"`
	AuthorizedDatasets []string `json:"authorizedDatasets"`
	CreatedAt          string   `json:"createdAt"`
}

// NewModelAnchor derives a model anchor as HMAC-SHA256(master, contentHash).
func NewModelAnchor(master Anchor, modelID string, contentHash []byte, authorizedDatasets []string, createdAt time.Time) (ModelAnchor, error) {
	if modelID == "" {
		return ModelAnchor{}, newError(KindInput, "LCM-ANCHOR-022", "model id is required")
	}
	ts, err := formatTime(createdAt)
	if err != nil {
		return ModelAnchor{}, err
	}
	a, err := DeriveChild(master, contentHash)
	if err != nil {
		return ModelAnchor{}, err
	}
	return ModelAnchor{
		ModelID:            modelID,
		ContentHash:        digest.EncodeHex(contentHash),
		Anchor:             a.Hex(),
		AuthorizedDatasets: uniqueSorted(authorizedDatasets),
		CreatedAt:          ts,
	}, nil
}

// Authorizes reports whether the model record lists datasetID as a permitted
// training input.
func (m ModelAnchor) Authorizes(datasetID string) bool {
	i := sort.SearchStrings(m.AuthorizedDatasets, datasetID)
	return i < len(m.AuthorizedDatasets) && m.AuthorizedDatasets[i] == datasetID
}

// DeploymentAnchor binds a training session to a build artifact. The record
// is created once per model-version deployment and is immutable afterwards;
// receipts reference it, never copy it.
type DeploymentAnchor struct {
	DeploymentID   string `json:"deploymentId"`
	SessionID      string `json:"sessionId"`
	SessionAnchor  string `json:"sessionAnchor"`
	BuildHash      string `json:"buildHash"`
	Anchor         string `json:"anchor"`
	DeploymentHash string `json:"deploymentHash,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// NewDeploymentAnchor derives a deployment anchor as
// HMAC-SHA256(sessionAnchor, buildHash) and seals the record with its own
// deployment hash (SHA256 of the canonical record without that field).
func NewDeploymentAnchor(session TrainingSessionAnchor, deploymentID string, buildHash []byte, createdAt time.Time) (DeploymentAnchor, error) {
	if deploymentID == "" {
		return DeploymentAnchor{}, newError(KindInput, "LCM-ANCHOR-023", "deployment id is required")
	}
	ts, err := formatTime(createdAt)
	if err != nil {
		return DeploymentAnchor{}, err
	}
	sessionAnchor, err := FromHex(session.Anchor)
	if err != nil {
		return DeploymentAnchor{}, err
	}
	a, err := DeriveChild(sessionAnchor, buildHash)
	if err != nil {
		return DeploymentAnchor{}, err
	}

	rec := DeploymentAnchor{
		DeploymentID:  deploymentID,
		SessionID:     session.SessionID,
		SessionAnchor: session.Anchor,
		BuildHash:     digest.EncodeHex(buildHash),
		Anchor:        a.Hex(),
		CreatedAt:     ts,
	}
	h, err := rec.ComputeDeploymentHash()
	if err != nil {
		return DeploymentAnchor{}, err
	}
	rec.DeploymentHash = h
	return rec, nil
}

// ComputeDeploymentHash recomputes the record's deployment hash: the SHA-256
// of the canonical record with the DeploymentHash field absent.
func (d DeploymentAnchor) ComputeDeploymentHash() (string, error) {
	body := d
	body.DeploymentHash = ""
	b, err := canonjson.Encode(body)
	if err != nil {
		return "", wrapError(KindInternal, "LCM-ANCHOR-092", "deployment record canonicalization failed", err)
	}
	return digest.EncodeHex(digest.SHA256(b)), nil
}

func uniqueSorted(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

func formatTime(ts time.Time) (string, error) {
	if ts.IsZero() {
		return "", newError(KindInput, "LCM-ANCHOR-024", "creation timestamp is required")
	}
	return ts.UTC().Format(time.RFC3339), nil
}
