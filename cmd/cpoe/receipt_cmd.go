package main

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"cpoe/internal/domain"
	"cpoe/internal/usecase"
)

func runReceipt(args []string) int {
	fs := flag.NewFlagSet("receipt", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server string
	var entryID string
	var logPubkeyBase64 string
	var tokenPath string
	fs.StringVar(&server, "server", "", "log server base URL")
	fs.StringVar(&entryID, "entry-id", "", "log entry id")
	fs.StringVar(&logPubkeyBase64, "log-pubkey-base64", "", "log public key; enables offline receipt verification")
	fs.StringVar(&tokenPath, "in", "", "credential token path; binds the receipt to the statement hash")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if server == "" || entryID == "" {
		fmt.Fprintln(os.Stderr, "receipt requires --server and --entry-id")
		return 1
	}

	client := &http.Client{Timeout: 30 * time.Second}
	endpoint := strings.TrimRight(server, "/") + "/v1/entries/" + url.PathEscape(entryID) + "/receipt"
	resp, err := client.Get(endpoint)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch receipt: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		return 1
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "receipt failed (%d): %s\n", resp.StatusCode, payload)
		return 1
	}

	if logPubkeyBase64 != "" {
		if code := verifyReceiptPayload(payload, logPubkeyBase64, tokenPath); code != 0 {
			return code
		}
		fmt.Fprintln(os.Stderr, "receipt verified")
	}

	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}

func verifyReceiptPayload(payload []byte, logPubkeyBase64, tokenPath string) int {
	pub, err := base64.RawURLEncoding.DecodeString(logPubkeyBase64)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		fmt.Fprintln(os.Stderr, "invalid --log-pubkey-base64")
		return 1
	}
	var resp struct {
		EntryID string `json:"entry_id"`
		LogID   string `json:"log_id"`
		Proof   string `json:"proof"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "parse receipt: %v\n", err)
		return 1
	}
	proof, err := base64.RawURLEncoding.DecodeString(resp.Proof)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode proof: %v\n", err)
		return 1
	}

	var statementHash []byte
	if tokenPath != "" {
		raw, err := os.ReadFile(tokenPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read token: %v\n", err)
			return 1
		}
		sum := sha256.Sum256([]byte(strings.TrimSpace(string(raw))))
		statementHash = sum[:]
	}

	receipt := domain.Receipt{EntryID: resp.EntryID, LogID: resp.LogID, Proof: proof}
	if _, err := usecase.VerifyReceipt(receipt, statementHash, ed25519.PublicKey(pub)); err != nil {
		fmt.Fprintf(os.Stderr, "receipt verification failed: %v\n", err)
		return 1
	}
	return 0
}
