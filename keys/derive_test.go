package keys

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
)

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	a, err := DeriveRoleSeed(root, "operator")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	b, err := DeriveRoleSeed(root, "operator")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("same root and role must derive the same seed")
	}

	auditor, err := DeriveRoleSeed(root, "auditor")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) == string(auditor) {
		t.Fatal("operator and auditor roles must derive different seeds")
	}
}

func TestDeriveRoleSeedRejectsShortRoot(t *testing.T) {
	if _, err := DeriveRoleSeed(make([]byte, ed25519.SeedSize-1), "operator"); err == nil {
		t.Fatal("expected error for short root seed")
	}
}

func TestGenerateIssuerKeyFromSeedFormat(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x42
	}
	issuerKey := GenerateIssuerKeyFromSeed(seed)
	if !strings.HasPrefix(issuerKey, "ed25519:") {
		t.Fatalf("expected ed25519 prefix, got %q", issuerKey)
	}
	b64 := strings.TrimPrefix(issuerKey, "ed25519:")
	pubBytes, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("expected valid base64: %v", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		t.Fatalf("expected %d pubkey bytes, got %d", ed25519.PublicKeySize, len(pubBytes))
	}
}
