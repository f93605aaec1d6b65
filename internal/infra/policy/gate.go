package policy

import (
	"context"
	"fmt"
	"strings"

	"cpoe/internal/domain"
)

// Gate adapts an Engine to the registration path: it shapes the unverified
// credential into a PolicyInput, evaluates, and turns a deny list into
// ErrPolicyDenied.
type Gate struct {
	Engine *Engine
}

func NewGate(engine *Engine) *Gate {
	return &Gate{Engine: engine}
}

func (g *Gate) EvaluateRegistration(ctx context.Context, cred domain.UnverifiedCredential, opts domain.RegisterOptions) error {
	subject := cred.Claims.VC.Subject
	frameworks := make([]string, 0, len(subject.Frameworks))
	for _, fw := range subject.Frameworks {
		frameworks = append(frameworks, fw.Framework)
	}
	input := domain.PolicyInput{
		Issuer:     cred.Claims.Issuer,
		Scope:      subject.Scope,
		Source:     string(subject.Provenance.Source),
		Frameworks: frameworks,
		ProofOnly:  opts.ProofOnly,
		Summary:    subject.Summary,
	}

	evaluation, err := g.Engine.Evaluate(ctx, input)
	if err != nil {
		return fmt.Errorf("policy evaluation: %w", err)
	}
	if evaluation.Result.Allow {
		return nil
	}
	codes := make([]string, 0, len(evaluation.Result.Deny))
	for _, deny := range evaluation.Result.Deny {
		codes = append(codes, deny.Code)
	}
	if len(codes) == 0 {
		codes = append(codes, "POLICY_DENY")
	}
	return fmt.Errorf("%w: %s", domain.ErrPolicyDenied, strings.Join(codes, ", "))
}
