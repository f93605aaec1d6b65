package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cpoe/internal/infra/keys/soft"
	"cpoe/internal/usecase"
)

func runIssue(args []string) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dir string
	var issuerDID string
	var inPath string
	var scope string
	var validityDays int
	var outPath string
	fs.StringVar(&dir, "dir", ".", "key directory")
	fs.StringVar(&issuerDID, "issuer-did", "", "issuer did:web identifier")
	fs.StringVar(&inPath, "in", "", "issue request JSON path")
	fs.StringVar(&scope, "scope", "", "attestation scope (overrides request file)")
	fs.IntVar(&validityDays, "validity-days", 0, "validity window in days (default 90)")
	fs.StringVar(&outPath, "out", "", "output token path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if issuerDID == "" || inPath == "" {
		fmt.Fprintln(os.Stderr, "issue requires --issuer-did and --in")
		return 1
	}

	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read request: %v\n", err)
		return 1
	}
	var req usecase.IssueRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		fmt.Fprintf(os.Stderr, "parse request: %v\n", err)
		return 1
	}
	if scope != "" {
		req.Scope = scope
	}
	if validityDays > 0 {
		req.ValidFor = time.Duration(validityDays) * 24 * time.Hour
	}

	kp, err := soft.NewStore(dir).Load(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load keypair: %v\n", err)
		return 1
	}

	issuer := usecase.NewIssuer(issuerDID, kp)
	token, claims, err := issuer.Issue(context.Background(), req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue credential: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "subject: %s\n", claims.Subject)
	if err := writeOutput(outPath, []byte(token)); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
