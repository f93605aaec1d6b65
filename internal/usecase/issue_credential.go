package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"cpoe/internal/domain"
)

// DefaultValidity is the credential validity window when the caller supplies
// none.
const DefaultValidity = 90 * 24 * time.Hour

// IssueRequest carries everything the issuer needs beyond its own identity:
// the attested scope, normalized evidence, and optional enrichment.
type IssueRequest struct {
	Scope        string
	Evidence     domain.EvidenceInput
	Frameworks   []domain.FrameworkMapping
	EvidenceRefs []domain.EvidenceRef
	ProcessChain []domain.ProcessStep
	SubjectID    string
	ValidFor     time.Duration
}

// Issuer assembles, signs and emits CPOE credential tokens for one issuer
// identity. Issuance is stateless and parallelizable; the keypair is
// read-only after construction.
type Issuer struct {
	DID     string
	Keypair *domain.Keypair

	clock func() time.Time
	newID func() string
}

func NewIssuer(did string, kp *domain.Keypair) *Issuer {
	return &Issuer{
		DID:     did,
		Keypair: kp,
		clock:   time.Now,
		newID:   func() string { return "urn:uuid:" + uuid.NewString() },
	}
}

// Issue builds the canonical credential body, signs it with the issuer key
// and returns the three-segment token. The signature is a pure function of
// (header, payload, key); the fresh subject id is what makes every issued
// credential distinct.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (string, *domain.TokenClaims, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	if i.Keypair == nil || len(i.Keypair.Private) == 0 {
		return "", nil, fmt.Errorf("%w: issuer has no signing key", domain.ErrNotFound)
	}
	if req.Scope == "" {
		return "", nil, fmt.Errorf("%w: scope is required", domain.ErrMalformedInput)
	}
	summary, err := domain.NormalizeEvidence(req.Evidence)
	if err != nil {
		return "", nil, err
	}

	validFor := req.ValidFor
	if validFor <= 0 {
		validFor = DefaultValidity
	}
	now := i.clock().UTC().Truncate(time.Second)
	until := now.Add(validFor)
	subject := i.newID()

	body := domain.CredentialBody{
		Context:    []string{domain.CredentialContext},
		Type:       []string{"VerifiableCredential", domain.CredentialType},
		Issuer:     i.DID,
		ValidFrom:  now,
		ValidUntil: until,
		Subject: domain.CredentialSubject{
			ID:           req.SubjectID,
			Scope:        req.Scope,
			Provenance:   req.Evidence.Provenance,
			Summary:      summary,
			Frameworks:   req.Frameworks,
			Evidence:     req.EvidenceRefs,
			ProcessChain: req.ProcessChain,
		},
	}
	claims := credentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.DID,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(until),
		},
		Version: domain.ProtocolVersion,
		VC:      body,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["typ"] = domain.CredentialTokenType
	token.Header["kid"] = i.DID + "#" + i.Keypair.KID

	signed, err := token.SignedString(i.Keypair.Private)
	if err != nil {
		return "", nil, fmt.Errorf("sign credential: %w", err)
	}
	out := claims.toDomain()
	return signed, &out, nil
}
