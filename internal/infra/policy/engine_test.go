package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"cpoe/internal/domain"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join("..", "..", "..", "policy", "bundles", "registration_v1")
	engine, err := NewEngineFromBundlePath(context.Background(), path, "registration_v1")
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func baseInput() domain.PolicyInput {
	return domain.PolicyInput{
		Issuer:     "did:web:acme.com",
		Scope:      "SOC2 production controls",
		Source:     "tool",
		Frameworks: []string{"SOC2"},
		Summary: domain.EvidenceSummary{
			ControlsTested: 10,
			ControlsPassed: 8,
			ControlsFailed: 2,
			OverallScore:   80,
		},
	}
}

func TestEngineAllowsBaseline(t *testing.T) {
	engine := newEngine(t)

	first, err := engine.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !first.Result.Allow {
		t.Fatalf("baseline denied: %+v", first.Result.Deny)
	}
	if first.BundleHash == "" {
		t.Fatal("bundle hash not set")
	}

	second, err := engine.Evaluate(context.Background(), baseInput())
	if err != nil {
		t.Fatalf("evaluate again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("evaluation is not deterministic")
	}
}

func TestEngineDenies(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name   string
		mutate func(input *domain.PolicyInput)
		want   string
	}{
		{
			name:   "missing issuer",
			mutate: func(input *domain.PolicyInput) { input.Issuer = "" },
			want:   "ISSUER_MISSING",
		},
		{
			name:   "non did:web issuer",
			mutate: func(input *domain.PolicyInput) { input.Issuer = "did:key:z6Mk" },
			want:   "ISSUER_SCHEME",
		},
		{
			name:   "missing scope",
			mutate: func(input *domain.PolicyInput) { input.Scope = "" },
			want:   "SCOPE_MISSING",
		},
		{
			name:   "unknown source",
			mutate: func(input *domain.PolicyInput) { input.Source = "hearsay" },
			want:   "SOURCE_UNKNOWN",
		},
		{
			name:   "empty summary",
			mutate: func(input *domain.PolicyInput) { input.Summary = domain.EvidenceSummary{} },
			want:   "SUMMARY_EMPTY",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := baseInput()
			tt.mutate(&input)
			out, err := engine.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Result.Allow {
				t.Fatal("expected deny")
			}
			found := false
			for _, deny := range out.Result.Deny {
				if deny.Code == tt.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("deny codes %+v missing %s", out.Result.Deny, tt.want)
			}
		})
	}
}

func TestEngineRejectsTimeBuiltin(t *testing.T) {
	rejectBuiltin(t, "time.now_ns()")
}

func TestEngineRejectsHttpSend(t *testing.T) {
	rejectBuiltin(t, `http.send({"method": "get", "url": "https://example.com"})`)
}

func TestEngineRejectsRand(t *testing.T) {
	rejectBuiltin(t, "rand.intn(10)")
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package cpoe.policy
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "policy.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir, "test"); err == nil {
		t.Fatal("expected builtin to be rejected")
	}
}

func TestGateDeniesWithCodes(t *testing.T) {
	gate := NewGate(newEngine(t))

	cred := domain.UnverifiedCredential{}
	cred.Claims.Issuer = "did:web:acme.com"
	cred.Claims.VC.Subject.Scope = "" // SCOPE_MISSING
	cred.Claims.VC.Subject.Provenance.Source = domain.ProvenanceTool
	cred.Claims.VC.Subject.Summary = domain.EvidenceSummary{ControlsTested: 4, ControlsPassed: 4, OverallScore: 100}

	err := gate.EvaluateRegistration(context.Background(), cred, domain.RegisterOptions{})
	if !errors.Is(err, domain.ErrPolicyDenied) {
		t.Fatalf("got %v, want ErrPolicyDenied", err)
	}
	if msg := err.Error(); !strings.Contains(msg, "SCOPE_MISSING") {
		t.Fatalf("deny codes missing from error: %q", msg)
	}
}

func TestGateAllows(t *testing.T) {
	gate := NewGate(newEngine(t))

	cred := domain.UnverifiedCredential{}
	cred.Claims.Issuer = "did:web:acme.com"
	cred.Claims.VC.Subject.Scope = "SOC2 production controls"
	cred.Claims.VC.Subject.Provenance.Source = domain.ProvenanceAuditor
	cred.Claims.VC.Subject.Summary = domain.EvidenceSummary{ControlsTested: 4, ControlsPassed: 4, OverallScore: 100}

	if err := gate.EvaluateRegistration(context.Background(), cred, domain.RegisterOptions{ProofOnly: true}); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
}
