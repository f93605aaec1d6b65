package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"cpoe/internal/domain"
	"cpoe/internal/infra/resolver"
	"cpoe/internal/usecase"
)

// pinnedKeyResolver short-circuits DID resolution for offline verification
// against a key the caller already trusts.
type pinnedKeyResolver struct {
	pub ed25519.PublicKey
}

func (r pinnedKeyResolver) Resolve(ctx context.Context, did, kid string) (*domain.ResolvedKey, error) {
	return &domain.ResolvedKey{DID: did, KID: kid, Public: r.pub}, nil
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var canonicalIssuer string
	var pubkeyBase64 string
	fs.StringVar(&inPath, "in", "", "credential token path")
	fs.StringVar(&canonicalIssuer, "canonical-issuer", "", "did of the primary issuer")
	fs.StringVar(&pubkeyBase64, "pubkey-base64", "", "pinned issuer public key for offline verification")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in")
		return 1
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read token: %v\n", err)
		return 1
	}
	token := strings.TrimSpace(string(raw))

	var keys usecase.KeyResolver
	if pubkeyBase64 != "" {
		pub, err := base64.RawURLEncoding.DecodeString(pubkeyBase64)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			fmt.Fprintln(os.Stderr, "invalid --pubkey-base64")
			return 1
		}
		keys = pinnedKeyResolver{pub: ed25519.PublicKey(pub)}
	} else {
		keys = resolver.New(0)
	}

	verifier := usecase.NewVerifier(keys, canonicalIssuer)
	result, err := verifier.Verify(context.Background(), token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verification failed: %v\n", err)
		return 1
	}
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal result: %v\n", err)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
