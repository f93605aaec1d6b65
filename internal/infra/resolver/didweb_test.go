package resolver

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cpoe/internal/domain"
)

func TestDocumentURL(t *testing.T) {
	cases := []struct {
		did  string
		want string
	}{
		{"did:web:acme.com", "https://acme.com/.well-known/did.json"},
		{"did:web:acme.com:dept:sec", "https://acme.com/dept/sec/did.json"},
		{"did:web:localhost%3A3000", "https://localhost:3000/.well-known/did.json"},
		{"did:web:example.org:users:alice", "https://example.org/users/alice/did.json"},
	}
	for _, tc := range cases {
		got, err := DocumentURL(tc.did)
		if err != nil {
			t.Fatalf("%s: %v", tc.did, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.did, got, tc.want)
		}
	}
}

func TestDocumentURLInvalid(t *testing.T) {
	for _, did := range []string{"", "did:web:", "did:key:z6Mk", "urn:uuid:1234", "did:web:acme.com::"} {
		if _, err := DocumentURL(did); !errors.Is(err, domain.ErrInvalidDID) {
			t.Fatalf("%q: got %v, want ErrInvalidDID", did, err)
		}
	}
}

// didForServer turns an httptest TLS server URL into the did:web identifier
// that resolves back to it.
func didForServer(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return "did:web:" + strings.ReplaceAll(u.Host, ":", "%3A")
}

// serveDocument starts a TLS server whose well-known endpoint serves *doc.
// The document can be filled in after the server URL (and so the DID) is
// known.
func serveDocument(t *testing.T, doc *domain.DIDDocument) *httptest.Server {
	t.Helper()
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/did.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestResolveExtractsMatchingKey(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	var doc domain.DIDDocument
	ts := serveDocument(t, &doc)
	did := didForServer(t, ts)
	doc = BuildDocument(did, "key-abc", pub)

	r := NewWithClient(ts.Client(), time.Second)
	resolved, err := r.Resolve(context.Background(), did, did+"#key-abc")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved.Public.Equal(pub) {
		t.Fatal("resolved key differs from published key")
	}

	// Bare fragment kids match the document's full ids too.
	if _, err := r.Resolve(context.Background(), did, "key-abc"); err != nil {
		t.Fatalf("resolve by fragment: %v", err)
	}
}

func TestResolveKeyNotFound(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var doc domain.DIDDocument
	ts := serveDocument(t, &doc)
	did := didForServer(t, ts)
	doc = BuildDocument(did, "key-abc", pub)

	r := NewWithClient(ts.Client(), time.Second)
	if _, err := r.Resolve(context.Background(), did, "key-other"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound", err)
	}
}

func TestResolveUnreachable(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()
	did := didForServer(t, ts)

	r := NewWithClient(ts.Client(), time.Second)
	if _, err := r.Resolve(context.Background(), did, "key-abc"); !errors.Is(err, domain.ErrIdentityUnreachable) {
		t.Fatalf("got %v, want ErrIdentityUnreachable on 5xx", err)
	}

	ts.Close()
	if _, err := r.Resolve(context.Background(), did, "key-abc"); !errors.Is(err, domain.ErrIdentityUnreachable) {
		t.Fatalf("got %v, want ErrIdentityUnreachable on closed server", err)
	}
}

func TestResolveTimeout(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		ts.Close()
	}()
	did := didForServer(t, ts)

	r := NewWithClient(ts.Client(), 50*time.Millisecond)
	start := time.Now()
	_, err := r.Resolve(context.Background(), did, "key-abc")
	if !errors.Is(err, domain.ErrIdentityUnreachable) {
		t.Fatalf("got %v, want ErrIdentityUnreachable on timeout", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("resolution hung for %s", elapsed)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("timeout not surfaced in error: %v", err)
	}
}

func TestResolveMalformedDocument(t *testing.T) {
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer ts.Close()
	did := didForServer(t, ts)

	r := NewWithClient(ts.Client(), time.Second)
	if _, err := r.Resolve(context.Background(), did, "key-abc"); !errors.Is(err, domain.ErrMalformedInput) {
		t.Fatalf("got %v, want ErrMalformedInput", err)
	}
}

func TestResolveRejectsForeignKeyTypes(t *testing.T) {
	var doc domain.DIDDocument
	ts := serveDocument(t, &doc)
	did := didForServer(t, ts)
	doc = domain.DIDDocument{
		ID: did,
		VerificationMethod: []domain.VerificationMethod{{
			ID:           did + "#key-rsa",
			Type:         "JsonWebKey2020",
			PublicKeyJwk: &domain.JWK{Kty: "RSA"},
		}},
	}

	r := NewWithClient(ts.Client(), time.Second)
	if _, err := r.Resolve(context.Background(), did, "key-rsa"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("got %v, want ErrKeyNotFound for RSA method", err)
	}
}

func TestBuildDocumentRoundTrips(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	doc := BuildDocument("did:web:acme.com", "key-1", pub)
	if len(doc.VerificationMethod) != 1 {
		t.Fatal("expected a single verification method")
	}
	x := doc.VerificationMethod[0].PublicKeyJwk.X
	raw, err := base64.RawURLEncoding.DecodeString(x)
	if err != nil {
		t.Fatalf("decode x: %v", err)
	}
	if !ed25519.PublicKey(raw).Equal(pub) {
		t.Fatal("document key does not round trip")
	}
}
