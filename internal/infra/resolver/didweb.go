// Package resolver maps did:web identifiers to HTTPS document fetches and
// extracts issuer verification keys from the returned DID documents.
package resolver

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cpoe/internal/domain"
)

const (
	didWebPrefix = "did:web:"

	wellKnownPath = "/.well-known/did.json"
	documentFile  = "/did.json"

	// Documents larger than this are not identity documents.
	maxDocumentBytes = 1 << 20

	DefaultTimeout = 8 * time.Second
)

type Resolver struct {
	client  *http.Client
	timeout time.Duration
}

// New builds a resolver with a bounded per-resolution timeout. A zero
// timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{client: &http.Client{}, timeout: timeout}
}

// NewWithClient is used by tests to point resolution at an httptest server.
func NewWithClient(client *http.Client, timeout time.Duration) *Resolver {
	r := New(timeout)
	if client != nil {
		r.client = client
	}
	return r
}

// DocumentURL maps a did:web identifier onto its HTTPS document location.
// Percent-encoded colons in the first segment carry non-default ports.
func DocumentURL(did string) (string, error) {
	if !strings.HasPrefix(did, didWebPrefix) {
		return "", fmt.Errorf("%w: %q is not did:web", domain.ErrInvalidDID, did)
	}
	rest := strings.TrimPrefix(did, didWebPrefix)
	if rest == "" {
		return "", fmt.Errorf("%w: empty authority", domain.ErrInvalidDID)
	}
	segments := strings.Split(rest, ":")
	authority, err := url.PathUnescape(segments[0])
	if err != nil || authority == "" {
		return "", fmt.Errorf("%w: bad authority %q", domain.ErrInvalidDID, segments[0])
	}
	if len(segments) == 1 {
		return "https://" + authority + wellKnownPath, nil
	}
	path := make([]string, 0, len(segments)-1)
	for _, seg := range segments[1:] {
		decoded, err := url.PathUnescape(seg)
		if err != nil || decoded == "" {
			return "", fmt.Errorf("%w: bad path segment %q", domain.ErrInvalidDID, seg)
		}
		path = append(path, decoded)
	}
	return "https://" + authority + "/" + strings.Join(path, "/") + documentFile, nil
}

// Resolve fetches the DID document for did and returns the verification key
// whose id matches kid. Network failures, timeouts and non-2xx responses are
// ErrIdentityUnreachable (retryable); a document that parses but carries no
// matching usable key is ErrKeyNotFound.
func (r *Resolver) Resolve(ctx context.Context, did, kid string) (*domain.ResolvedKey, error) {
	docURL, err := DocumentURL(did)
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidDID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout after %s fetching %s", domain.ErrIdentityUnreachable, r.timeout, docURL)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s returned %d", domain.ErrIdentityUnreachable, docURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentityUnreachable, err)
	}

	var doc domain.DIDDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: identity document is not valid JSON", domain.ErrMalformedInput)
	}

	method, ok := matchVerificationMethod(doc, did, kid)
	if !ok {
		return nil, fmt.Errorf("%w: no verification method %q in %s", domain.ErrKeyNotFound, kid, did)
	}
	pub, err := publicKeyFromMethod(method)
	if err != nil {
		return nil, err
	}
	return &domain.ResolvedKey{DID: did, KID: method.ID, Public: pub}, nil
}

func matchVerificationMethod(doc domain.DIDDocument, did, kid string) (domain.VerificationMethod, bool) {
	for _, vm := range doc.VerificationMethod {
		if vm.ID == kid {
			return vm, true
		}
		// A bare fragment kid matches against the document's full ids.
		if !strings.Contains(kid, "#") && (vm.ID == did+"#"+kid || strings.HasSuffix(vm.ID, "#"+kid)) {
			return vm, true
		}
	}
	return domain.VerificationMethod{}, false
}

func publicKeyFromMethod(vm domain.VerificationMethod) (ed25519.PublicKey, error) {
	jwk := vm.PublicKeyJwk
	if jwk == nil {
		return nil, fmt.Errorf("%w: verification method %q carries no JWK", domain.ErrKeyNotFound, vm.ID)
	}
	if jwk.Kty != "OKP" || jwk.Crv != "Ed25519" {
		return nil, fmt.Errorf("%w: unsupported key type %s/%s", domain.ErrKeyNotFound, jwk.Kty, jwk.Crv)
	}
	raw, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("%w: bad JWK x encoding", domain.ErrMalformedInput)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: JWK x is %d bytes", domain.ErrMalformedInput, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// BuildDocument renders the DID document this service publishes for its own
// issuer identity.
func BuildDocument(did string, kid string, pub ed25519.PublicKey) domain.DIDDocument {
	fullKID := did + "#" + kid
	return domain.DIDDocument{
		Context: []string{"https://www.w3.org/ns/did/v1", "https://w3id.org/security/jwk/v1"},
		ID:      did,
		VerificationMethod: []domain.VerificationMethod{{
			ID:         fullKID,
			Type:       "JsonWebKey2020",
			Controller: did,
			PublicKeyJwk: &domain.JWK{
				Kty: "OKP",
				Crv: "Ed25519",
				X:   base64.RawURLEncoding.EncodeToString(pub),
			},
		}},
		AssertionMethod: []string{fullKID},
	}
}
