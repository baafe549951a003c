package receipt

import (
	"crypto/ed25519"
	"testing"

	"xdao.co/lcm/keys"
	"xdao.co/lcm/merkle"
)

type seqReader struct{ b byte }

func (r *seqReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func TestNewCheckpointRootCoversReceiptHashes(t *testing.T) {
	chain := mustChain(t, 6)
	cp, tree, err := NewCheckpoint("deploy-1", chain, issueTime)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}
	if cp.TreeSize != 6 {
		t.Fatalf("got tree size %d, want 6", cp.TreeSize)
	}

	root, err := cp.RootBytes()
	if err != nil {
		t.Fatalf("RootBytes: %v", err)
	}
	// Every receipt is provably included at its issuance index.
	for i, r := range chain {
		leaf, err := r.HashBytes()
		if err != nil {
			t.Fatalf("HashBytes: %v", err)
		}
		proof, err := tree.Proof(i)
		if err != nil {
			t.Fatalf("Proof(%d): %v", i, err)
		}
		if !merkle.VerifyProof(leaf, proof, root, i) {
			t.Fatalf("receipt %d inclusion proof rejected", i)
		}
	}
}

func TestNewCheckpointRejectsEmptyBatch(t *testing.T) {
	if _, _, err := NewCheckpoint("deploy-1", nil, issueTime); err == nil {
		t.Fatal("expected error for empty batch")
	}
}

func TestCheckpointSignVerifyEd25519(t *testing.T) {
	chain := mustChain(t, 3)
	cp, _, err := NewCheckpoint("deploy-1", chain, issueTime)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}

	if err := cp.Verify(); err == nil {
		t.Fatal("unsigned checkpoint verified")
	}

	priv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	if err := cp.SignEd25519(priv); err != nil {
		t.Fatalf("SignEd25519: %v", err)
	}
	if err := cp.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Any mutation of the signed body invalidates the signature.
	tampered := cp
	tampered.TreeSize++
	if err := tampered.Verify(); err == nil {
		t.Fatal("tampered checkpoint verified")
	}
}

func TestCheckpointSignVerifyDilithium3(t *testing.T) {
	chain := mustChain(t, 2)
	cp, _, err := NewCheckpoint("deploy-1", chain, issueTime)
	if err != nil {
		t.Fatalf("NewCheckpoint: %v", err)
	}

	pub, priv, err := keys.GenerateDilithium3Keypair(&seqReader{})
	if err != nil {
		t.Fatalf("GenerateDilithium3Keypair: %v", err)
	}
	if err := cp.SignDilithium3(pub, priv, "sha3-256"); err != nil {
		t.Fatalf("SignDilithium3: %v", err)
	}
	if err := cp.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	tampered := cp
	tampered.Root = GenesisPrevHash
	if err := tampered.Verify(); err == nil {
		t.Fatal("tampered checkpoint verified")
	}
}
