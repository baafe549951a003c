package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"xdao.co/lcm/anchor"
	"xdao.co/lcm/audit"
	"xdao.co/lcm/canonjson"
	"xdao.co/lcm/cidutil"
	"xdao.co/lcm/digest"
	"xdao.co/lcm/keys"
	"xdao.co/lcm/model"
	"xdao.co/lcm/receipt"
	"xdao.co/lcm/storage/bundle"
	"xdao.co/lcm/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "anchor":
		return cmdAnchor(args[1:], out, errOut)
	case "receipt":
		return cmdReceipt(args[1:], out, errOut)
	case "checkpoint":
		return cmdCheckpoint(args[1:], out, errOut)
	case "audit":
		return cmdAudit(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "doc-cid":
		return cmdDocCID(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-lcm: anchoring and receipt-chain CLI for ML provenance")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-lcm anchor master --salt-hex <hex> [--iterations <n>] [--secret-env <VAR>]")
	fmt.Fprintln(w, "  xdao-lcm anchor dataset --master <hex> --dataset-id <id> --content <file> --metadata <file> [--created-at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm anchor model --master <hex> --model-id <id> --content <file> [--authorized <dataset-id> ...] [--created-at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm anchor session --session-id <id> --model <model.json> --dataset <ds.json> [--dataset ...] --training-root-hex <hex> [--created-at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm anchor deployment --session <session.json> --deployment-id <id> --build <file> [--created-at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm receipt issue --query <file> --output <file> --model-version <v> --snapshot-id <id> --snapshot-root-hex <hex> [--prev <receipt.json>] [--receipt-id <id>] [--issued-at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm receipt verify <receipts.json>")
	fmt.Fprintln(w, "  xdao-lcm checkpoint create --deployment-id <id> --receipts <file> (--seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>) [--at <RFC3339>]")
	fmt.Fprintln(w, "  xdao-lcm checkpoint verify --checkpoint <file> [--receipts <file>]")
	fmt.Fprintln(w, "  xdao-lcm audit [--master <hex>] [--dataset <file>] [--model <file>] [--session <file>] [--deployment <file>] [--receipts <file>] [--checkpoint <file>] [--mode permissive|strict]")
	fmt.Fprintln(w, "  xdao-lcm bundle export --dir <cas-dir> [--out <file>] [--dataset <file>] [--model <file>] [--session <file>] [--deployment <file>] [--receipts <file>] [--checkpoint <file>]")
	fmt.Fprintln(w, "  xdao-lcm bundle import --dir <cas-dir> <bundle.tar>")
	fmt.Fprintln(w, "  xdao-lcm bundle labels <bundle.tar>")
	fmt.Fprintln(w, "  xdao-lcm doc-cid <file>")
	fmt.Fprintln(w, "  xdao-lcm key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-lcm key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  xdao-lcm key list")
	fmt.Fprintln(w, "  xdao-lcm key export --name <name> [--role <role>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - anchor master reads the secret from the environment (default LCM_MASTER_SECRET), never from argv")
	fmt.Fprintln(w, "  - anchor/record commands write one canonical JSON record to stdout")
	fmt.Fprintln(w, "  - receipt verify and audit exit 1 when any check is INVALID")
	fmt.Fprintln(w, "  - KMS-lite stores keys under ~/.xdao/lcm/keys/<name> (0600 private key files)")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
}

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// fileHash reads a file and returns the SHA-256 of its bytes.
func fileHash(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

func parseCreatedAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func printRecord(out io.Writer, errOut io.Writer, v any) int {
	raw, err := canonjson.Encode(v)
	if err != nil {
		fmt.Fprintf(errOut, "encode record: %v\n", err)
		return 1
	}
	_, _ = out.Write(raw)
	_, _ = io.WriteString(out, "\n")
	return 0
}

func cmdAnchor(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-lcm anchor <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: master, dataset, model, session, deployment")
		return 2
	}
	switch args[0] {
	case "master":
		return cmdAnchorMaster(args[1:], out, errOut)
	case "dataset":
		return cmdAnchorDataset(args[1:], out, errOut)
	case "model":
		return cmdAnchorModel(args[1:], out, errOut)
	case "session":
		return cmdAnchorSession(args[1:], out, errOut)
	case "deployment":
		return cmdAnchorDeployment(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown anchor subcommand: %s\n", args[0])
		return 2
	}
}

func cmdAnchorMaster(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor master", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var saltHex string
	var iterations int
	var secretEnv string
	fs.StringVar(&saltHex, "salt-hex", "", "Salt as hex (at least 8 bytes)")
	fs.IntVar(&iterations, "iterations", anchor.MinIterations, "PBKDF2 iteration count")
	fs.StringVar(&secretEnv, "secret-env", "LCM_MASTER_SECRET", "Environment variable holding the master secret")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if saltHex == "" {
		fmt.Fprintln(errOut, "missing --salt-hex")
		return 2
	}
	secret := os.Getenv(secretEnv)
	if secret == "" {
		fmt.Fprintf(errOut, "empty secret: set %s\n", secretEnv)
		return 2
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --salt-hex: %v\n", err)
		return 2
	}

	master, err := anchor.DeriveMaster(secret, salt, iterations)
	if err != nil {
		fmt.Fprintf(errOut, "derive master: %v\n", err)
		return 2
	}
	defer master.Zero()
	_, _ = fmt.Fprintln(out, master.Hex())
	return 0
}

func cmdAnchorDataset(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor dataset", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var masterHex, datasetID, contentPath, metadataPath, createdAt string
	fs.StringVar(&masterHex, "master", "", "Master anchor as hex")
	fs.StringVar(&datasetID, "dataset-id", "", "Dataset identifier")
	fs.StringVar(&contentPath, "content", "", "Dataset content file")
	fs.StringVar(&metadataPath, "metadata", "", "Dataset metadata file")
	fs.StringVar(&createdAt, "created-at", "", "RFC3339 timestamp (defaults to now UTC)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if masterHex == "" || datasetID == "" || contentPath == "" || metadataPath == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm anchor dataset --master <hex> --dataset-id <id> --content <file> --metadata <file>")
		return 2
	}

	master, err := anchor.FromHex(masterHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --master: %v\n", err)
		return 2
	}
	defer master.Zero()
	content, err := fileHash(contentPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --content: %v\n", err)
		return 1
	}
	metadata, err := fileHash(metadataPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --metadata: %v\n", err)
		return 1
	}
	at, err := parseCreatedAt(createdAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --created-at (expected RFC3339): %v\n", err)
		return 2
	}

	rec, err := anchor.NewDatasetAnchor(master, datasetID, content, metadata, at)
	if err != nil {
		fmt.Fprintf(errOut, "dataset anchor: %v\n", err)
		return 1
	}
	return printRecord(out, errOut, rec)
}

func cmdAnchorModel(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor model", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var masterHex, modelID, contentPath, createdAt string
	var authorized stringList
	fs.StringVar(&masterHex, "master", "", "Master anchor as hex")
	fs.StringVar(&modelID, "model-id", "", "Model identifier")
	fs.StringVar(&contentPath, "content", "", "Model content file (e.g. weights)")
	fs.Var(&authorized, "authorized", "Authorized dataset id (repeatable)")
	fs.StringVar(&createdAt, "created-at", "", "RFC3339 timestamp (defaults to now UTC)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if masterHex == "" || modelID == "" || contentPath == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm anchor model --master <hex> --model-id <id> --content <file>")
		return 2
	}

	master, err := anchor.FromHex(masterHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --master: %v\n", err)
		return 2
	}
	defer master.Zero()
	content, err := fileHash(contentPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --content: %v\n", err)
		return 1
	}
	at, err := parseCreatedAt(createdAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --created-at (expected RFC3339): %v\n", err)
		return 2
	}

	rec, err := anchor.NewModelAnchor(master, modelID, content, authorized, at)
	if err != nil {
		fmt.Fprintf(errOut, "model anchor: %v\n", err)
		return 1
	}
	return printRecord(out, errOut, rec)
}

func cmdAnchorSession(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor session", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var sessionID, modelPath, trainingRootHex, createdAt string
	var datasetPaths stringList
	fs.StringVar(&sessionID, "session-id", "", "Training session identifier")
	fs.StringVar(&modelPath, "model", "", "Model anchor record (JSON file)")
	fs.Var(&datasetPaths, "dataset", "Dataset anchor record, JSON file (repeatable)")
	fs.StringVar(&trainingRootHex, "training-root-hex", "", "Training snapshot root as hex (32 bytes)")
	fs.StringVar(&createdAt, "created-at", "", "RFC3339 timestamp (defaults to now UTC)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if sessionID == "" || modelPath == "" || len(datasetPaths) == 0 || trainingRootHex == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm anchor session --session-id <id> --model <file> --dataset <file> --training-root-hex <hex>")
		return 2
	}

	var modelRec anchor.ModelAnchor
	if err := readJSON(modelPath, &modelRec); err != nil {
		fmt.Fprintf(errOut, "read --model: %v\n", err)
		return 1
	}
	modelAnchor, err := anchor.FromHex(modelRec.Anchor)
	if err != nil {
		fmt.Fprintf(errOut, "invalid model record anchor: %v\n", err)
		return 2
	}

	datasetAnchors := make([]anchor.Anchor, 0, len(datasetPaths))
	for _, p := range datasetPaths {
		var rec anchor.DatasetAnchor
		if err := readJSON(p, &rec); err != nil {
			fmt.Fprintf(errOut, "read --dataset %s: %v\n", p, err)
			return 1
		}
		a, err := anchor.FromHex(rec.Anchor)
		if err != nil {
			fmt.Fprintf(errOut, "invalid dataset record anchor (%s): %v\n", p, err)
			return 2
		}
		datasetAnchors = append(datasetAnchors, a)
	}

	dsRoot, err := anchor.DatasetsRoot(datasetAnchors)
	if err != nil {
		fmt.Fprintf(errOut, "datasets root: %v\n", err)
		return 1
	}
	trainingRoot, err := digest.DecodeHex32(trainingRootHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --training-root-hex: %v\n", err)
		return 2
	}
	at, err := parseCreatedAt(createdAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --created-at (expected RFC3339): %v\n", err)
		return 2
	}

	rec, err := anchor.NewTrainingSessionAnchor(sessionID, modelAnchor, dsRoot.Bytes(), trainingRoot, at)
	if err != nil {
		fmt.Fprintf(errOut, "session anchor: %v\n", err)
		return 1
	}
	return printRecord(out, errOut, rec)
}

func cmdAnchorDeployment(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("anchor deployment", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var sessionPath, deploymentID, buildPath, createdAt string
	fs.StringVar(&sessionPath, "session", "", "Training session anchor record (JSON file)")
	fs.StringVar(&deploymentID, "deployment-id", "", "Deployment identifier")
	fs.StringVar(&buildPath, "build", "", "Build artifact file")
	fs.StringVar(&createdAt, "created-at", "", "RFC3339 timestamp (defaults to now UTC)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if sessionPath == "" || deploymentID == "" || buildPath == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm anchor deployment --session <file> --deployment-id <id> --build <file>")
		return 2
	}

	var session anchor.TrainingSessionAnchor
	if err := readJSON(sessionPath, &session); err != nil {
		fmt.Fprintf(errOut, "read --session: %v\n", err)
		return 1
	}
	build, err := fileHash(buildPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --build: %v\n", err)
		return 1
	}
	at, err := parseCreatedAt(createdAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --created-at (expected RFC3339): %v\n", err)
		return 2
	}

	rec, err := anchor.NewDeploymentAnchor(session, deploymentID, build, at)
	if err != nil {
		fmt.Fprintf(errOut, "deployment anchor: %v\n", err)
		return 1
	}
	return printRecord(out, errOut, rec)
}

func cmdReceipt(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-lcm receipt <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: issue, verify")
		return 2
	}
	switch args[0] {
	case "issue":
		return cmdReceiptIssue(args[1:], out, errOut)
	case "verify":
		return cmdReceiptVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown receipt subcommand: %s\n", args[0])
		return 2
	}
}

func cmdReceiptIssue(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("receipt issue", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var queryPath, outputPath, modelVersion, snapshotID, snapshotRootHex string
	var prevPath, receiptID, issuedAt string
	fs.StringVar(&queryPath, "query", "", "Query payload file")
	fs.StringVar(&outputPath, "output", "", "Output payload file")
	fs.StringVar(&modelVersion, "model-version", "", "Model version identifier")
	fs.StringVar(&snapshotID, "snapshot-id", "", "Training snapshot identifier")
	fs.StringVar(&snapshotRootHex, "snapshot-root-hex", "", "Training snapshot root as hex (32 bytes)")
	fs.StringVar(&prevPath, "prev", "", "Previous receipt (JSON file); omit for the genesis receipt")
	fs.StringVar(&receiptID, "receipt-id", "", "Receipt identifier (defaults to a random UUID)")
	fs.StringVar(&issuedAt, "issued-at", "", "RFC3339 timestamp (defaults to now UTC)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if queryPath == "" || outputPath == "" || modelVersion == "" || snapshotID == "" || snapshotRootHex == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm receipt issue --query <file> --output <file> --model-version <v> --snapshot-id <id> --snapshot-root-hex <hex>")
		return 2
	}

	queryHash, err := fileHash(queryPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --query: %v\n", err)
		return 1
	}
	outputHash, err := fileHash(outputPath)
	if err != nil {
		fmt.Fprintf(errOut, "read --output: %v\n", err)
		return 1
	}
	snapshotRoot, err := digest.DecodeHex32(snapshotRootHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --snapshot-root-hex: %v\n", err)
		return 2
	}
	at, err := parseCreatedAt(issuedAt)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --issued-at (expected RFC3339): %v\n", err)
		return 2
	}

	var prev *receipt.Receipt
	if prevPath != "" {
		var p receipt.Receipt
		if err := readJSON(prevPath, &p); err != nil {
			fmt.Fprintf(errOut, "read --prev: %v\n", err)
			return 1
		}
		prev = &p
	}

	rec, err := receipt.Issue(receipt.IssueParams{
		ReceiptID:            receiptID,
		QueryHash:            queryHash,
		OutputHash:           outputHash,
		ModelVersion:         modelVersion,
		TrainingSnapshotID:   snapshotID,
		TrainingSnapshotRoot: snapshotRoot,
		Timestamp:            at,
	}, prev)
	if err != nil {
		fmt.Fprintf(errOut, "issue: %v\n", err)
		return 1
	}
	return printRecord(out, errOut, rec)
}

func cmdReceiptVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("receipt verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-lcm receipt verify <receipts.json>")
		return 2
	}

	var receipts []receipt.Receipt
	if err := readJSON(fs.Arg(0), &receipts); err != nil {
		fmt.Fprintf(errOut, "read receipts: %v\n", err)
		return 1
	}

	report := receipt.VerifyChain(receipts)
	if report.Valid {
		fmt.Fprintf(out, "OK (%d receipts)\n", len(receipts))
		return 0
	}
	for _, link := range report.Links {
		if link.HashOK && link.PrevOK {
			continue
		}
		fmt.Fprintf(errOut, "receipt[%d]: %s\n", link.Index, link.Reason)
		fmt.Fprintf(errOut, "  expected: %s\n", link.Expected)
		fmt.Fprintf(errOut, "  actual:   %s\n", link.Actual)
	}
	fmt.Fprintf(errOut, "chain invalid: first break at index %d\n", *report.FirstInvalidIndex)
	return 1
}

func cmdCheckpoint(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-lcm checkpoint <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: create, verify")
		return 2
	}
	switch args[0] {
	case "create":
		return cmdCheckpointCreate(args[1:], out, errOut)
	case "verify":
		return cmdCheckpointVerify(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown checkpoint subcommand: %s\n", args[0])
		return 2
	}
}

func cmdCheckpointCreate(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("checkpoint create", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var deploymentID, receiptsPath, at string
	var seedHex, signerName, signerRole, keyFile string
	fs.StringVar(&deploymentID, "deployment-id", "", "Deployment identifier")
	fs.StringVar(&receiptsPath, "receipts", "", "Receipts (JSON array file)")
	fs.StringVar(&at, "at", "", "RFC3339 timestamp (defaults to now UTC)")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'xdao-lcm key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex) created by 'xdao-lcm key init/derive'")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if deploymentID == "" || receiptsPath == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm checkpoint create --deployment-id <id> --receipts <file> (--seed-hex | --signer | --key-file)")
		return 2
	}
	if seedHex == "" && signerName == "" && keyFile == "" {
		fmt.Fprintln(errOut, "missing signer: use --seed-hex, --signer, or --key-file")
		return 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 2
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return 2
	}

	var receipts []receipt.Receipt
	if err := readJSON(receiptsPath, &receipts); err != nil {
		fmt.Fprintf(errOut, "read --receipts: %v\n", err)
		return 1
	}
	ts, err := parseCreatedAt(at)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --at (expected RFC3339): %v\n", err)
		return 2
	}

	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
	if err != nil {
		fmt.Fprintf(errOut, "invalid signer: %v\n", err)
		return 2
	}
	priv := ed25519.NewKeyFromSeed(seed)

	cp, _, err := receipt.NewCheckpoint(deploymentID, receipts, ts)
	if err != nil {
		fmt.Fprintf(errOut, "checkpoint: %v\n", err)
		return 1
	}
	if err := cp.SignEd25519(priv); err != nil {
		fmt.Fprintf(errOut, "sign: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Issuer-Key: %s\n", cp.IssuerKey)
	return printRecord(out, errOut, cp)
}

func cmdCheckpointVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("checkpoint verify", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var checkpointPath, receiptsPath string
	fs.StringVar(&checkpointPath, "checkpoint", "", "Checkpoint (JSON file)")
	fs.StringVar(&receiptsPath, "receipts", "", "Optional receipts (JSON array file) for root recomputation")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if checkpointPath == "" {
		fmt.Fprintln(errOut, "usage: xdao-lcm checkpoint verify --checkpoint <file> [--receipts <file>]")
		return 2
	}

	var cp receipt.Checkpoint
	if err := readJSON(checkpointPath, &cp); err != nil {
		fmt.Fprintf(errOut, "read --checkpoint: %v\n", err)
		return 1
	}
	var receipts []receipt.Receipt
	if receiptsPath != "" {
		if err := readJSON(receiptsPath, &receipts); err != nil {
			fmt.Fprintf(errOut, "read --receipts: %v\n", err)
			return 1
		}
	}

	rc := 0
	for _, res := range audit.ValidateCheckpoint(cp, receipts) {
		switch res.Status {
		case audit.StatusValid:
			fmt.Fprintf(out, "%s: OK\n", res.Check)
		case audit.StatusInvalid:
			fmt.Fprintf(errOut, "%s: INVALID (%s)\n", res.Check, res.Reason)
			if res.Detail != nil {
				fmt.Fprintf(errOut, "  expected: %s\n", res.Detail.Expected)
				fmt.Fprintf(errOut, "  actual:   %s\n", res.Detail.Actual)
			}
			rc = 1
		default:
			fmt.Fprintf(errOut, "%s: ERROR (%s)\n", res.Check, res.Reason)
			rc = 1
		}
	}
	return rc
}

func cmdAudit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var masterHex, datasetPath, modelPath, sessionPath, deploymentPath, receiptsPath, checkpointPath, mode string
	fs.StringVar(&masterHex, "master", "", "Master anchor as hex (enables dataset/model recomputation)")
	fs.StringVar(&datasetPath, "dataset", "", "Dataset anchor record (JSON file)")
	fs.StringVar(&modelPath, "model", "", "Model anchor record (JSON file)")
	fs.StringVar(&sessionPath, "session", "", "Training session anchor record (JSON file)")
	fs.StringVar(&deploymentPath, "deployment", "", "Deployment anchor record (JSON file)")
	fs.StringVar(&receiptsPath, "receipts", "", "Receipts (JSON array file)")
	fs.StringVar(&checkpointPath, "checkpoint", "", "Checkpoint (JSON file)")
	fs.StringVar(&mode, "mode", "permissive", "Compliance mode: permissive or strict")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	req := model.AuditRequest{MasterAnchor: masterHex}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "permissive":
		req.Compliance = model.CompliancePermissive
	case "strict":
		req.Compliance = model.ComplianceStrict
	default:
		fmt.Fprintln(errOut, "invalid --mode (expected permissive or strict)")
		return 2
	}

	load := func(path string, ref *model.BlobRef) bool {
		if path == "" {
			return true
		}
		b, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", path, err)
			return false
		}
		ref.Bytes = b
		return true
	}
	if !load(datasetPath, &req.Dataset) ||
		!load(modelPath, &req.Model) ||
		!load(sessionPath, &req.Session) ||
		!load(deploymentPath, &req.Deployment) ||
		!load(receiptsPath, &req.Receipts) ||
		!load(checkpointPath, &req.Checkpoint) {
		return 1
	}

	resp, err := model.AuditWithCAS(req, model.AuditOptions{})
	if err != nil {
		fmt.Fprintf(errOut, "audit: %v\n", err)
		var ce *model.CodedError
		if errors.As(err, &ce) && ce.Code == model.ErrInvalidRequest {
			return 2
		}
		return 1
	}

	_, _ = out.Write(resp.Report.Bytes)
	_, _ = io.WriteString(out, "\n")
	fmt.Fprintf(errOut, "Report-CID: %s\n", resp.Report.CID)
	if !resp.Passed {
		return 1
	}
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: xdao-lcm bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import, labels")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	case "labels":
		return cmdBundleLabels(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir, outPath string
	var datasetPath, modelPath, sessionPath, deploymentPath, receiptsPath, checkpointPath string
	fs.StringVar(&dir, "dir", "", "LocalFS CAS directory (records are stored here as blocks)")
	fs.StringVar(&outPath, "out", "", "Bundle output file (defaults to stdout)")
	fs.StringVar(&datasetPath, "dataset", "", "Dataset anchor record (JSON file)")
	fs.StringVar(&modelPath, "model", "", "Model anchor record (JSON file)")
	fs.StringVar(&sessionPath, "session", "", "Training session anchor record (JSON file)")
	fs.StringVar(&deploymentPath, "deployment", "", "Deployment anchor record (JSON file)")
	fs.StringVar(&receiptsPath, "receipts", "", "Receipts (JSON array file)")
	fs.StringVar(&checkpointPath, "checkpoint", "", "Checkpoint (JSON file)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(errOut, "missing --dir")
		return 2
	}

	var ev bundle.Evidence
	if datasetPath != "" {
		ev.Dataset = new(anchor.DatasetAnchor)
		if err := readJSON(datasetPath, ev.Dataset); err != nil {
			fmt.Fprintf(errOut, "read --dataset: %v\n", err)
			return 1
		}
	}
	if modelPath != "" {
		ev.Model = new(anchor.ModelAnchor)
		if err := readJSON(modelPath, ev.Model); err != nil {
			fmt.Fprintf(errOut, "read --model: %v\n", err)
			return 1
		}
	}
	if sessionPath != "" {
		ev.Session = new(anchor.TrainingSessionAnchor)
		if err := readJSON(sessionPath, ev.Session); err != nil {
			fmt.Fprintf(errOut, "read --session: %v\n", err)
			return 1
		}
	}
	if deploymentPath != "" {
		ev.Deployment = new(anchor.DeploymentAnchor)
		if err := readJSON(deploymentPath, ev.Deployment); err != nil {
			fmt.Fprintf(errOut, "read --deployment: %v\n", err)
			return 1
		}
	}
	if receiptsPath != "" {
		if err := readJSON(receiptsPath, &ev.Receipts); err != nil {
			fmt.Fprintf(errOut, "read --receipts: %v\n", err)
			return 1
		}
	}
	if checkpointPath != "" {
		ev.Checkpoint = new(receipt.Checkpoint)
		if err := readJSON(checkpointPath, ev.Checkpoint); err != nil {
			fmt.Fprintf(errOut, "read --checkpoint: %v\n", err)
			return 1
		}
	}

	cas, err := localfs.New(dir)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 1
	}

	var w io.Writer = out
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			fmt.Fprintf(errOut, "create --out: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}

	labels, err := bundle.ExportEvidence(w, cas, ev)
	if err != nil {
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	for _, name := range []string{bundle.LabelDataset, bundle.LabelModel, bundle.LabelSession, bundle.LabelDeployment, bundle.LabelReceipts, bundle.LabelCheckpoint} {
		if id, ok := labels[name]; ok {
			fmt.Fprintf(errOut, "%s\t%s\n", name, id)
		}
	}
	return 0
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle import", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir string
	fs.StringVar(&dir, "dir", "", "LocalFS CAS directory to import blocks into")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(errOut, "missing --dir")
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-lcm bundle import --dir <cas-dir> <bundle.tar>")
		return 2
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open bundle: %v\n", err)
		return 1
	}
	defer f.Close()

	cas, err := localfs.New(dir)
	if err != nil {
		fmt.Fprintf(errOut, "open cas: %v\n", err)
		return 1
	}
	if err := bundle.Import(f, cas); err != nil {
		fmt.Fprintf(errOut, "import: %v\n", err)
		return 1
	}
	return 0
}

func cmdBundleLabels(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle labels", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-lcm bundle labels <bundle.tar>")
		return 2
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open bundle: %v\n", err)
		return 1
	}
	defer f.Close()

	labels, err := bundle.ReadLabels(f)
	if err != nil {
		fmt.Fprintf(errOut, "read labels: %v\n", err)
		return 1
	}
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "%s\t%s\n", name, labels[name])
	}
	return 0
}

func cmdDocCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("doc-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: xdao-lcm doc-cid <file>")
		return 2
	}
	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.CIDv1RawSHA256(b))
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "xdao-lcm key: minimal local key management (KMS-lite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  xdao-lcm key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  xdao-lcm key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  xdao-lcm key list")
	fmt.Fprintln(w, "  xdao-lcm key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool

	fs.StringVar(&name, "name", "", "Key name (directory under ~/.xdao/lcm/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = keys.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	issuerKey, rootPath, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. operator, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := keys.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := keys.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, rolePath, err := ks.DeriveKeyFromRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", issuerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rolePath)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var role string

	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports derived role key)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := keys.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if role != "" {
		if err := keys.CheckRole(role); err != nil {
			fmt.Fprintf(errOut, "invalid --role: %v\n", err)
			return 2
		}
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	issuerKey, err := ks.ExportKey(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, issuerKey)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := keys.CreateKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Identifier)
		for _, r := range e.Roles {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}
