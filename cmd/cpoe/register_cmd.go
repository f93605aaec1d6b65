package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func runRegister(args []string) int {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var server string
	var inPath string
	var proofOnly bool
	fs.StringVar(&server, "server", "", "log server base URL")
	fs.StringVar(&inPath, "in", "", "credential token path")
	fs.BoolVar(&proofOnly, "proof-only", false, "register the hash only, not the credential body")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if server == "" || inPath == "" {
		fmt.Fprintln(os.Stderr, "register requires --server and --in")
		return 1
	}
	raw, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read token: %v\n", err)
		return 1
	}

	body, err := json.Marshal(map[string]any{
		"credential": strings.TrimSpace(string(raw)),
		"proof_only": proofOnly,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal request: %v\n", err)
		return 1
	}

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(strings.TrimRight(server, "/")+"/v1/register", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "register: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		return 1
	}
	if resp.StatusCode != http.StatusCreated {
		fmt.Fprintf(os.Stderr, "register failed (%d): %s\n", resp.StatusCode, payload)
		return 1
	}
	if err := writeOutput("", payload); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
