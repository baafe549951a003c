package receipt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/digest"
	"xdao.co/lcm/keys"
	"xdao.co/lcm/merkle"
)

// Checkpoint is a signed tree head over one receipt batch: the Merkle root of
// the batch's receipt hashes (in issuance order), the tree size, and an
// issuer signature. A published checkpoint lets any verifier check a single
// receipt's inclusion with an O(log n) proof, without seeing the other
// receipts.
type Checkpoint struct {
	DeploymentID string `json:"deploymentId"`
	TreeSize     int    `json:"treeSize"`
	Root         string `json:"root"`
	Timestamp    string `json:"timestamp"`
	IssuerKey    string `json:"issuerKey,omitempty"`
	SignatureAlg string `json:"signatureAlg,omitempty"`
	HashAlg      string `json:"hashAlg,omitempty"`
	Signature    string `json:"signature,omitempty"`
}

// NewCheckpoint freezes a receipt batch into a Merkle tree and returns the
// unsigned checkpoint together with the tree (for proof extraction). The
// receipts' order is preserved: receipt i is leaf i.
func NewCheckpoint(deploymentID string, receipts []Receipt, ts time.Time) (Checkpoint, *merkle.Tree, error) {
	if deploymentID == "" {
		return Checkpoint{}, nil, errors.New("receipt: deployment id is required")
	}
	if len(receipts) == 0 {
		return Checkpoint{}, nil, errors.New("receipt: empty batch")
	}
	if ts.IsZero() {
		return Checkpoint{}, nil, errors.New("receipt: timestamp is required")
	}

	leaves := make([][]byte, len(receipts))
	for i, r := range receipts {
		leaf, err := r.HashBytes()
		if err != nil {
			return Checkpoint{}, nil, fmt.Errorf("receipt %d: %w", i, err)
		}
		leaves[i] = leaf
	}
	tree, err := merkle.Build(leaves)
	if err != nil {
		return Checkpoint{}, nil, err
	}

	return Checkpoint{
		DeploymentID: deploymentID,
		TreeSize:     len(receipts),
		Root:         digest.EncodeHex(tree.Root()),
		Timestamp:    ts.UTC().Format(time.RFC3339),
	}, tree, nil
}

// SignedBytes returns the canonical JSON the signature covers: the checkpoint
// with the Signature field absent.
func (c Checkpoint) SignedBytes() ([]byte, error) {
	body := c
	body.Signature = ""
	return canonjson.Encode(body)
}

// SignEd25519 signs the checkpoint with sha256 + ed25519 and records the
// issuer key.
func (c *Checkpoint) SignEd25519(priv ed25519.PrivateKey) error {
	issuer, err := keys.IssuerKeyFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	c.IssuerKey = issuer
	c.SignatureAlg = "ed25519"
	c.HashAlg = "sha256"
	msg, err := c.SignedBytes()
	if err != nil {
		return err
	}
	c.Signature = keys.SignEd25519SHA256(msg, priv)
	return nil
}

// SignDilithium3 signs the checkpoint with the post-quantum scheme.
// hashAlg must be one of: sha256, sha512, sha3-256.
func (c *Checkpoint) SignDilithium3(pub *mode3.PublicKey, priv *mode3.PrivateKey, hashAlg string) error {
	issuer, err := keys.IssuerKeyFromDilithium3(pub)
	if err != nil {
		return err
	}
	c.IssuerKey = issuer
	c.SignatureAlg = "dilithium3"
	c.HashAlg = hashAlg
	msg, err := c.SignedBytes()
	if err != nil {
		return err
	}
	sig, err := keys.SignDilithium3(msg, hashAlg, priv)
	if err != nil {
		return err
	}
	c.Signature = sig
	return nil
}

// Verify checks the checkpoint signature. Unsigned checkpoints fail
// explicitly: a tree head without an issuer binds nothing.
func (c Checkpoint) Verify() error {
	if c.Signature == "" || c.IssuerKey == "" || c.SignatureAlg == "" || c.HashAlg == "" {
		return errors.New("receipt: checkpoint is not signed")
	}
	msg, err := c.SignedBytes()
	if err != nil {
		return err
	}
	return keys.Verify(c.IssuerKey, c.SignatureAlg, c.HashAlg, msg, c.Signature)
}

// RootBytes returns the checkpoint's Merkle root as raw bytes.
func (c Checkpoint) RootBytes() ([]byte, error) {
	return digest.DecodeHex32(c.Root)
}
