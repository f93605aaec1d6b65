package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}
	switch args[1] {
	case "keygen":
		return runKeygen(args[2:])
	case "issue":
		return runIssue(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "register":
		return runRegister(args[2:])
	case "receipt":
		return runReceipt(args[2:])
	case "serve":
		return runServe(args[2:])
	}
	usage(args)
	return 1
}

func usage(args []string) {
	name := "cpoe"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s keygen --dir <dir>\n", name)
	fmt.Fprintf(os.Stderr, "  %s issue --dir <keydir> --issuer-did <did> --in <request.json> [--scope <scope>] [--validity-days <n>] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <token-file> [--canonical-issuer <did>] [--pubkey-base64 <b64>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s register --server <url> --in <token-file> [--proof-only]\n", name)
	fmt.Fprintf(os.Stderr, "  %s receipt --server <url> --entry-id <id> [--log-pubkey-base64 <b64>] [--in <token-file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s serve\n", name)
}
