package httpapi

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cpoe/internal/config"
	"cpoe/internal/domain"
	"cpoe/internal/infra/logmem"
	"cpoe/internal/infra/ratelimit"
	"cpoe/internal/infra/resolver"
	"cpoe/internal/infra/treehash"
	"cpoe/internal/usecase"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixedResolver struct {
	key domain.ResolvedKey
}

func (r *fixedResolver) Resolve(ctx context.Context, did, kid string) (*domain.ResolvedKey, error) {
	key := r.key
	return &key, nil
}

type testHarness struct {
	server    *Server
	issuer    *usecase.Issuer
	logKey    *domain.Keypair
	issuerKey *domain.Keypair
}

func newHarness(t *testing.T, cfg config.Config, limiter domain.RateLimiter) *testHarness {
	t.Helper()
	issuerPub, issuerPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate issuer key: %v", err)
	}
	logPub, logPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate log key: %v", err)
	}
	issuerKey := &domain.Keypair{KID: "key-test", Public: issuerPub, Private: issuerPriv}
	logKey := &domain.Keypair{KID: "key-log", Public: logPub, Private: logPriv}

	issuer := usecase.NewIssuer("did:web:example.org", issuerKey)
	log := usecase.NewTransparencyLog("log-test", logmem.New(), treehash.Linear{}, logKey)
	verifier := usecase.NewVerifier(&fixedResolver{key: domain.ResolvedKey{Public: issuerPub}}, "did:web:canonical.example")
	doc := resolver.BuildDocument("did:web:example.org", issuerKey.KID, issuerPub)

	server := NewServer(cfg, ServerDeps{
		Log:         log,
		Verifier:    verifier,
		DIDDocument: &doc,
		RateLimiter: limiter,
	})
	return &testHarness{server: server, issuer: issuer, logKey: logKey, issuerKey: issuerKey}
}

func (h *testHarness) issueToken(t *testing.T, scope string) string {
	t.Helper()
	token, _, err := h.issuer.Issue(context.Background(), usecase.IssueRequest{
		Scope: scope,
		Evidence: domain.EvidenceInput{
			Summary: domain.EvidenceSummary{
				ControlsTested: 10,
				ControlsPassed: 8,
				ControlsFailed: 2,
				OverallScore:   80,
			},
			Provenance: domain.Provenance{
				Source:         domain.ProvenanceTool,
				SourceIdentity: "scanner-7",
			},
		},
		Frameworks: []domain.FrameworkMapping{{Framework: "SOC2", Controls: []string{"CC6.1"}}},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestRegisterAndReceipt(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)
	token := h.issueToken(t, "register-e2e")

	w := doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{
		Credential: token,
		ProofOnly:  true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", w.Code, w.Body.String())
	}
	var registered registerResponse
	decodeBody(t, w, &registered)
	if registered.TreeSize != 1 || registered.EntryID == "" {
		t.Fatalf("unexpected register response: %+v", registered)
	}
	if !registered.ProofOnly {
		t.Fatal("proof_only flag lost")
	}

	w = doJSON(t, h.server.Handler(), http.MethodGet, "/v1/entries/"+registered.EntryID+"/receipt", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("receipt status %d: %s", w.Code, w.Body.String())
	}
	var receipt receiptResponse
	decodeBody(t, w, &receipt)
	if receipt.EntryID != registered.EntryID || receipt.LogID != "log-test" {
		t.Fatalf("receipt mismatch: %+v", receipt)
	}

	// The returned proof verifies offline against the log public key.
	proof, err := base64.RawURLEncoding.DecodeString(receipt.Proof)
	if err != nil {
		t.Fatalf("decode proof: %v", err)
	}
	tokenHash := sha256.Sum256([]byte(token))
	st, err := usecase.VerifyReceipt(domain.Receipt{
		EntryID: receipt.EntryID,
		LogID:   receipt.LogID,
		Proof:   proof,
	}, tokenHash[:], h.logKey.Public)
	if err != nil {
		t.Fatalf("verify receipt: %v", err)
	}
	if st.TreeSize != 1 {
		t.Fatalf("receipt tree size %d", st.TreeSize)
	}
}

func TestRegisterRejectsMalformed(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)

	w := doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{Credential: "not-a-token"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	var resp errorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "MALFORMED_INPUT" {
		t.Fatalf("code %q", resp.Code)
	}

	w = doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty credential status %d", w.Code)
	}
}

func TestReceiptUnknownEntry(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)
	w := doJSON(t, h.server.Handler(), http.MethodGet, "/v1/entries/nope/receipt", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestListEntriesEndpoint(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)

	for i := 0; i < 3; i++ {
		token := h.issueToken(t, fmt.Sprintf("scope-%d", i))
		w := doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{
			Credential: token,
			ProofOnly:  i == 0,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("register %d: %d", i, w.Code)
		}
	}

	w := doJSON(t, h.server.Handler(), http.MethodGet, "/v1/entries?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var listResp struct {
		Entries []entryResponse `json:"entries"`
	}
	decodeBody(t, w, &listResp)
	if len(listResp.Entries) != 2 {
		t.Fatalf("got %d entries", len(listResp.Entries))
	}
	if listResp.Entries[0].TreeSize != 3 {
		t.Fatal("entries not newest-first")
	}

	w = doJSON(t, h.server.Handler(), http.MethodGet, "/v1/entries?framework=soc2", nil)
	decodeBody(t, w, &listResp)
	// The proof-only row carries no statement, so only two rows match.
	if len(listResp.Entries) != 2 {
		t.Fatalf("framework filter matched %d", len(listResp.Entries))
	}
	for _, entry := range listResp.Entries {
		if entry.Issuer != "did:web:example.org" {
			t.Fatalf("issuer %q", entry.Issuer)
		}
	}
}

func TestLogInfo(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)

	w := doJSON(t, h.server.Handler(), http.MethodGet, "/v1/log/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var info map[string]any
	decodeBody(t, w, &info)
	if info["tree_size"] != float64(0) {
		t.Fatalf("empty log tree size %v", info["tree_size"])
	}
	if info["strategy"] != "linear-sha256" {
		t.Fatalf("strategy %v", info["strategy"])
	}

	token := h.issueToken(t, "info")
	doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{Credential: token})

	w = doJSON(t, h.server.Handler(), http.MethodGet, "/v1/log/info", nil)
	decodeBody(t, w, &info)
	if info["tree_size"] != float64(1) {
		t.Fatalf("tree size %v", info["tree_size"])
	}
	if info["tree_hash"] == "" {
		t.Fatal("tree hash missing")
	}
}

func TestVerifyEndpoint(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)
	token := h.issueToken(t, "verify-http")

	w := doJSON(t, h.server.Handler(), http.MethodPost, "/v1/verify", verifyRequest{Credential: token})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var result map[string]any
	decodeBody(t, w, &result)
	if result["trustTier"] != string(domain.TrustTierSelfSigned) {
		t.Fatalf("tier %v", result["trustTier"])
	}

	w = doJSON(t, h.server.Handler(), http.MethodPost, "/v1/verify", verifyRequest{Credential: "garbage"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("garbage status %d", w.Code)
	}
}

func TestDIDDocumentEndpoint(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)

	w := doJSON(t, h.server.Handler(), http.MethodGet, "/.well-known/did.json", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var doc domain.DIDDocument
	decodeBody(t, w, &doc)
	if doc.ID != "did:web:example.org" {
		t.Fatalf("doc id %q", doc.ID)
	}
	if len(doc.VerificationMethod) != 1 {
		t.Fatalf("%d verification methods", len(doc.VerificationMethod))
	}
}

func TestRegisterRateLimited(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{Now: func() time.Time { return now }})
	cfg := config.Config{RateLimitRequests: 1, RateLimitWindowSeconds: 60}
	h := newHarness(t, cfg, limiter)

	token := h.issueToken(t, "limited")
	w := doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{Credential: token})
	if w.Code != http.StatusCreated {
		t.Fatalf("first register status %d", w.Code)
	}

	w = doJSON(t, h.server.Handler(), http.MethodPost, "/v1/register", registerRequest{Credential: token})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second register status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After header missing")
	}
	var resp errorResponse
	decodeBody(t, w, &resp)
	if resp.Code != "RATE_LIMITED" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestNoRoute(t *testing.T) {
	h := newHarness(t, config.Config{}, nil)
	w := doJSON(t, h.server.Handler(), http.MethodGet, "/v1/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}
