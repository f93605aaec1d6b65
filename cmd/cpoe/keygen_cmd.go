package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"

	"cpoe/internal/infra/keys/soft"
)

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dir string
	fs.StringVar(&dir, "dir", ".", "key directory")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	store := soft.NewStore(dir)
	kp, err := store.Generate(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keypair: %v\n", err)
		return 1
	}
	fmt.Printf("kid: %s\n", kp.KID)
	fmt.Printf("public_key: %s\n", base64.RawURLEncoding.EncodeToString(kp.Public))
	return 0
}
