package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"cpoe/internal/config"
	"cpoe/internal/domain"
	"cpoe/internal/infra/httpapi"
	"cpoe/internal/infra/keys/soft"
	"cpoe/internal/infra/logdb"
	"cpoe/internal/infra/logmem"
	"cpoe/internal/infra/policy"
	"cpoe/internal/infra/resolver"
	"cpoe/internal/infra/treehash"
	"cpoe/internal/usecase"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.FromEnv()
	ctx := context.Background()

	keyStore := soft.NewStore(cfg.KeyDir)
	kp, err := keyStore.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		kp, err = keyStore.Generate(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load signing key: %v\n", err)
		return 1
	}

	var store domain.EntryStore
	if cfg.PostgresDSN != "" {
		db, err := logdb.Open(cfg.PostgresDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open postgres: %v\n", err)
			return 1
		}
		if err := logdb.Migrate(db); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			return 1
		}
		store = logdb.New(db)
	} else {
		store = logmem.New()
	}

	var tree treehash.Strategy = treehash.Linear{}
	if cfg.TreeStrategy == "rfc6962" {
		tree = treehash.RFC6962{}
	}

	log := usecase.NewTransparencyLog(cfg.LogID, store, tree, kp)
	if cfg.PolicyBundlePath != "" {
		engine, err := policy.NewEngineFromBundlePath(ctx, cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load policy bundle: %v\n", err)
			return 1
		}
		log.Policy = policy.NewGate(engine)
		fmt.Fprintf(os.Stderr, "policy bundle %s loaded (hash %s)\n", cfg.PolicyBundleID, engine.BundleHash())
	}

	verifier := usecase.NewVerifier(resolver.New(cfg.ResolverTimeout()), cfg.CanonicalIssuer)

	var didDoc *domain.DIDDocument
	if cfg.IssuerDID != "" {
		doc := resolver.BuildDocument(cfg.IssuerDID, kp.KID, kp.Public)
		didDoc = &doc
	}

	server := httpapi.NewServer(cfg, httpapi.ServerDeps{
		Log:         log,
		Verifier:    verifier,
		DIDDocument: didDoc,
	})
	fmt.Fprintf(os.Stderr, "listening on %s (log %s, key %s)\n", cfg.HTTPAddr, cfg.LogID, kp.KID)
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}
