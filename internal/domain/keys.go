package domain

import (
	"context"
	"crypto/ed25519"
)

// Keypair is one Ed25519 signing identity. The private half never leaves the
// process that loaded it; the public half is published through a DID
// document.
type Keypair struct {
	KID     string
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// KeyStore persists exactly one keypair per configured location.
// Load never generates; a missing keypair is ErrNotFound.
type KeyStore interface {
	Generate(ctx context.Context) (*Keypair, error)
	Load(ctx context.Context) (*Keypair, error)
}
