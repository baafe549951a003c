// lcm_vector_gen emits a deterministic evidence set: a full anchor hierarchy,
// a three-receipt chain, and a signed checkpoint, each printed as canonical
// JSON with its CID. The output is pasted into walkthrough docs and used to
// spot regressions in canonical encodings.
package main

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/cidutil"
	"xdao.co/lcm/digest"
	"xdao.co/lcm/receipt"
)

var vectorTime = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func emit(label string, v any) {
	b, err := canonjson.Encode(v)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%s CID=%s\n", label, cidutil.CIDv1RawSHA256(b))
	fmt.Printf("---BEGIN %s---\n%s\n---END %s---\n", label, b, label)
}

func main() {
	master, err := anchor.DeriveMaster("lcm-conformance-vector", fill(16, 0x5A), anchor.MinIterations)
	if err != nil {
		panic(err)
	}
	fmt.Printf("MASTER=%s\n", master.Hex())

	ds, err := anchor.NewDatasetAnchor(master, "dataset-v1",
		digest.SHA256([]byte("dataset content")),
		digest.SHA256([]byte("dataset metadata")),
		vectorTime)
	if err != nil {
		panic(err)
	}
	emit("DATASET", ds)

	mdl, err := anchor.NewModelAnchor(master, "model-v3",
		digest.SHA256([]byte("model weights")),
		[]string{"dataset-v1"}, vectorTime)
	if err != nil {
		panic(err)
	}
	emit("MODEL", mdl)

	dsAnchor, err := anchor.FromHex(ds.Anchor)
	if err != nil {
		panic(err)
	}
	mdlAnchor, err := anchor.FromHex(mdl.Anchor)
	if err != nil {
		panic(err)
	}
	dsRoot, err := anchor.DatasetsRoot([]anchor.Anchor{dsAnchor})
	if err != nil {
		panic(err)
	}
	sess, err := anchor.NewTrainingSessionAnchor("sess-1", mdlAnchor,
		dsRoot.Bytes(), digest.SHA256([]byte("training log")), vectorTime)
	if err != nil {
		panic(err)
	}
	emit("SESSION", sess)

	dep, err := anchor.NewDeploymentAnchor(sess, "deploy-1",
		digest.SHA256([]byte("build artifact")), vectorTime)
	if err != nil {
		panic(err)
	}
	emit("DEPLOYMENT", dep)

	ledger, err := receipt.NewLedger("deploy-1")
	if err != nil {
		panic(err)
	}
	snapshotRoot := digest.SHA256([]byte("training snapshot"))
	for i := 0; i < 3; i++ {
		_, err := ledger.Append(receipt.IssueParams{
			ReceiptID:            fmt.Sprintf("vec-receipt-%d", i),
			QueryHash:            digest.SHA256([]byte(fmt.Sprintf("query %d", i))),
			OutputHash:           digest.SHA256([]byte(fmt.Sprintf("output %d", i))),
			ModelVersion:         "model-v3",
			TrainingSnapshotID:   "sess-1",
			TrainingSnapshotRoot: snapshotRoot,
			Timestamp:            vectorTime.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			panic(err)
		}
	}
	emit("RECEIPTS", ledger.Receipts())

	cp, _, err := receipt.NewCheckpoint("deploy-1", ledger.Receipts(), vectorTime.Add(time.Hour))
	if err != nil {
		panic(err)
	}
	priv := ed25519.NewKeyFromSeed(fill(ed25519.SeedSize, 0xA1))
	if err := cp.SignEd25519(priv); err != nil {
		panic(err)
	}
	emit("CHECKPOINT", cp)
}
