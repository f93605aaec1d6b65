// Package soft persists a single Ed25519 keypair on the local filesystem.
// One keypair lives per configured directory; regeneration overwrites it
// explicitly, loading never generates.
package soft

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cpoe/internal/domain"
)

const (
	privateFileName = "cpoe_signing.pem"
	publicFileName  = "cpoe_signing.pub.pem"

	privatePEMType = "PRIVATE KEY"
	publicPEMType  = "PUBLIC KEY"
)

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Generate creates a fresh keypair and persists both halves, replacing any
// keypair already at the location. Persistence failure fails the whole
// operation; no half-written state is left behind on the happy path.
func (s *Store) Generate(ctx context.Context) (*domain.Keypair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{Type: privatePEMType, Bytes: privDER})
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: publicPEMType, Bytes: pubDER})

	if err := os.WriteFile(s.privatePath(), privPEM, 0o600); err != nil {
		return nil, fmt.Errorf("persist private key: %w", err)
	}
	if err := os.WriteFile(s.publicPath(), pubPEM, 0o644); err != nil {
		return nil, fmt.Errorf("persist public key: %w", err)
	}

	return &domain.Keypair{KID: DeriveKID(pub), Public: pub, Private: priv}, nil
}

// Load returns the persisted keypair or domain.ErrNotFound when the location
// holds none.
func (s *Store) Load(ctx context.Context) (*domain.Keypair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.privatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read private key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil || block.Type != privatePEMType {
		return nil, fmt.Errorf("%w: not a private key PEM", domain.ErrMalformedInput)
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an ed25519 key", domain.ErrMalformedInput)
	}
	pub := priv.Public().(ed25519.PublicKey)

	return &domain.Keypair{KID: DeriveKID(pub), Public: pub, Private: priv}, nil
}

// DeriveKID derives the stable key identifier from the public half, so the
// published DID document and issued tokens agree without extra state.
func DeriveKID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return "key-" + hex.EncodeToString(sum[:4])
}

func (s *Store) privatePath() string {
	return filepath.Join(s.dir, privateFileName)
}

func (s *Store) publicPath() string {
	return filepath.Join(s.dir, publicFileName)
}
