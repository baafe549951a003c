package anchor

import (
	"bytes"
	"crypto/sha256"
	"testing"
	"time"

	"xdao.co/lcm/digest"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testMaster(t *testing.T) Anchor {
	t.Helper()
	m, err := DeriveMaster("test-secret", make([]byte, 16), MinIterations)
	if err != nil {
		t.Fatalf("DeriveMaster: %v", err)
	}
	return m
}

func TestDeriveMasterDeterministic(t *testing.T) {
	a := testMaster(t)
	b := testMaster(t)
	if !a.Equal(b) {
		t.Fatal("master derivation not deterministic")
	}
	if a.IsZero() {
		t.Fatal("derived master is zero")
	}
}

func TestDeriveMasterRejectsWeakParameters(t *testing.T) {
	cases := []struct {
		name   string
		secret string
		salt   []byte
		iters  int
		rule   string
	}{
		{"low iterations", "s3cret", make([]byte, 16), MinIterations - 1, "LCM-ANCHOR-001"},
		{"empty secret", "", make([]byte, 16), MinIterations, "LCM-ANCHOR-002"},
		{"short salt", "s3cret", make([]byte, 4), MinIterations, "LCM-ANCHOR-003"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveMaster(tc.secret, tc.salt, tc.iters)
			if err == nil {
				t.Fatal("expected configuration error")
			}
			if !IsKind(err, KindConfig) {
				t.Fatalf("got kind of %v, want Config", err)
			}
			if RuleID(err) != tc.rule {
				t.Fatalf("got rule %s, want %s", RuleID(err), tc.rule)
			}
		})
	}
}

func TestWithMasterZeroesOnExit(t *testing.T) {
	var captured *Anchor
	err := WithMaster("test-secret", make([]byte, 16), MinIterations, func(m *Anchor) error {
		if m.IsZero() {
			t.Fatal("master is zero inside scope")
		}
		captured = m
		return nil
	})
	if err != nil {
		t.Fatalf("WithMaster: %v", err)
	}
	if !captured.IsZero() {
		t.Fatal("master not wiped after scope exit")
	}
}

func TestDeriveChildDeterministic(t *testing.T) {
	master := testMaster(t)
	ctx := sha256.Sum256([]byte("dataset-v1"))

	a, err := DeriveChild(master, ctx[:])
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	b, err := DeriveChild(master, ctx[:])
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("child derivation not deterministic")
	}

	// Matches a direct HMAC recomputation.
	mac, err := digest.HMACSHA256(master.Bytes(), ctx[:])
	if err != nil {
		t.Fatalf("HMACSHA256: %v", err)
	}
	if !bytes.Equal(a.Bytes(), mac) {
		t.Fatal("child anchor is not HMAC-SHA256(master, context)")
	}
}

func TestDeriveChildRejectsMalformedInput(t *testing.T) {
	master := testMaster(t)
	if _, err := DeriveChild(master, []byte("short")); !IsKind(err, KindInput) {
		t.Fatalf("short context: got %v, want Input kind", err)
	}
	ctx := sha256.Sum256([]byte("x"))
	if _, err := DeriveChild(Anchor{}, ctx[:]); RuleID(err) != "LCM-ANCHOR-012" {
		t.Fatalf("zero parent: got %v, want LCM-ANCHOR-012", err)
	}
}

func TestDeriveChildContextAvalanche(t *testing.T) {
	master := testMaster(t)
	ctx := sha256.Sum256([]byte("dataset-v1"))
	base, err := DeriveChild(master, ctx[:])
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	for bit := 0; bit < Size*8; bit++ {
		mutated := append([]byte(nil), ctx[:]...)
		mutated[bit/8] ^= 1 << (bit % 8)
		got, err := DeriveChild(master, mutated)
		if err != nil {
			t.Fatalf("DeriveChild bit %d: %v", bit, err)
		}
		if got.Equal(base) {
			t.Fatalf("context bit %d flip did not change the anchor", bit)
		}
	}
}

func TestNewDatasetAnchor(t *testing.T) {
	master := testMaster(t)
	content := sha256.Sum256([]byte("dataset bytes"))
	meta := sha256.Sum256([]byte(`{"name":"dataset-v1"}`))

	rec, err := NewDatasetAnchor(master, "dataset-v1", content[:], meta[:], testTime)
	if err != nil {
		t.Fatalf("NewDatasetAnchor: %v", err)
	}
	if rec.DatasetID != "dataset-v1" || rec.CreatedAt != "2026-03-01T12:00:00Z" {
		t.Fatalf("unexpected record fields: %+v", rec)
	}

	// Recompute independently: anchor = HMAC(master, SHA256(content || meta)).
	ctx, err := DatasetContext(content[:], meta[:])
	if err != nil {
		t.Fatalf("DatasetContext: %v", err)
	}
	want, err := DeriveChild(master, ctx)
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	if rec.Anchor != want.Hex() {
		t.Fatal("dataset anchor does not recompute")
	}

	if _, err := NewDatasetAnchor(master, "", content[:], meta[:], testTime); RuleID(err) != "LCM-ANCHOR-021" {
		t.Fatalf("missing id: got %v", err)
	}
	if _, err := NewDatasetAnchor(master, "d", content[:], meta[:], time.Time{}); RuleID(err) != "LCM-ANCHOR-024" {
		t.Fatalf("zero time: got %v", err)
	}
}

func TestNewModelAnchorAuthorizedSet(t *testing.T) {
	master := testMaster(t)
	content := sha256.Sum256([]byte("model weights"))

	rec, err := NewModelAnchor(master, "model-v3", content[:],
		[]string{"b", "a", "b", "", "c"}, testTime)
	if err != nil {
		t.Fatalf("NewModelAnchor: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(rec.AuthorizedDatasets) != len(want) {
		t.Fatalf("got %v, want %v", rec.AuthorizedDatasets, want)
	}
	for i := range want {
		if rec.AuthorizedDatasets[i] != want[i] {
			t.Fatalf("got %v, want %v", rec.AuthorizedDatasets, want)
		}
	}
	if !rec.Authorizes("b") || rec.Authorizes("z") {
		t.Fatal("Authorizes set semantics broken")
	}
}

func TestTrainingSessionAnchorIsThreeLeafRoot(t *testing.T) {
	master := testMaster(t)
	modelHash := sha256.Sum256([]byte("model"))
	modelAnchor, err := DeriveChild(master, modelHash[:])
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	dsRoot := sha256.Sum256([]byte("datasets-root"))
	trRoot := sha256.Sum256([]byte("training-root"))

	rec, err := NewTrainingSessionAnchor("sess-1", modelAnchor, dsRoot[:], trRoot[:], testTime)
	if err != nil {
		t.Fatalf("NewTrainingSessionAnchor: %v", err)
	}

	// Independent recomputation with duplicate-last pairing over 3 leaves:
	// root = H( H(model || datasets) || H(training || training) ).
	h := func(a, b []byte) []byte {
		s := sha256.New()
		s.Write(a)
		s.Write(b)
		return s.Sum(nil)
	}
	want := h(h(modelAnchor.Bytes(), dsRoot[:]), h(trRoot[:], trRoot[:]))
	if rec.Anchor != digest.EncodeHex(want) {
		t.Fatalf("session anchor mismatch: got %s, want %s", rec.Anchor, digest.EncodeHex(want))
	}
}

func TestDatasetsRoot(t *testing.T) {
	master := testMaster(t)
	h1 := sha256.Sum256([]byte("d1"))
	h2 := sha256.Sum256([]byte("d2"))
	a1, _ := DeriveChild(master, h1[:])
	a2, _ := DeriveChild(master, h2[:])

	root, err := DatasetsRoot([]Anchor{a1, a2})
	if err != nil {
		t.Fatalf("DatasetsRoot: %v", err)
	}
	rootSwapped, err := DatasetsRoot([]Anchor{a2, a1})
	if err != nil {
		t.Fatalf("DatasetsRoot: %v", err)
	}
	if root.Equal(rootSwapped) {
		t.Fatal("leaf order must be significant")
	}
	if _, err := DatasetsRoot(nil); RuleID(err) != "LCM-ANCHOR-032" {
		t.Fatalf("empty set: got %v", err)
	}
}

func TestNewDeploymentAnchorSealsRecord(t *testing.T) {
	master := testMaster(t)
	modelHash := sha256.Sum256([]byte("model"))
	modelAnchor, _ := DeriveChild(master, modelHash[:])
	dsRoot := sha256.Sum256([]byte("datasets-root"))
	trRoot := sha256.Sum256([]byte("training-root"))
	session, err := NewTrainingSessionAnchor("sess-1", modelAnchor, dsRoot[:], trRoot[:], testTime)
	if err != nil {
		t.Fatalf("NewTrainingSessionAnchor: %v", err)
	}

	build := sha256.Sum256([]byte("build-artifact"))
	dep, err := NewDeploymentAnchor(session, "deploy-1", build[:], testTime)
	if err != nil {
		t.Fatalf("NewDeploymentAnchor: %v", err)
	}

	// The deployment hash recomputes from the rest of the record.
	got, err := dep.ComputeDeploymentHash()
	if err != nil {
		t.Fatalf("ComputeDeploymentHash: %v", err)
	}
	if got != dep.DeploymentHash {
		t.Fatal("deployment hash does not recompute")
	}

	// And the anchor is the session-keyed child of the build hash.
	sessionAnchor, err := FromHex(session.Anchor)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	want, err := DeriveChild(sessionAnchor, build[:])
	if err != nil {
		t.Fatalf("DeriveChild: %v", err)
	}
	if dep.Anchor != want.Hex() {
		t.Fatal("deployment anchor does not recompute")
	}

	// Tampering with any field breaks the seal.
	mutated := dep
	mutated.BuildHash = dep.Anchor
	h, err := mutated.ComputeDeploymentHash()
	if err != nil {
		t.Fatalf("ComputeDeploymentHash: %v", err)
	}
	if h == dep.DeploymentHash {
		t.Fatal("mutated record produced the same deployment hash")
	}
}

func TestAnchorHexRoundTrip(t *testing.T) {
	a := testMaster(t)
	b, err := FromHex(a.Hex())
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if !a.Equal(b) {
		t.Fatal("hex round-trip mismatch")
	}
	if _, err := FromHex("not-hex"); !IsKind(err, KindInput) {
		t.Fatalf("got %v, want Input kind", err)
	}
}

func TestZeroWipes(t *testing.T) {
	a := testMaster(t)
	a.Zero()
	if !a.IsZero() {
		t.Fatal("Zero did not wipe the anchor")
	}
}
