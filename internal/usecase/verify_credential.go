package usecase

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"cpoe/internal/domain"
)

// KeyResolver resolves an issuer identity to the verification key a token's
// kid names.
type KeyResolver interface {
	Resolve(ctx context.Context, did, kid string) (*domain.ResolvedKey, error)
}

// Verifier checks credential tokens end to end: shape, issuer resolution,
// signature, expiry, then trust classification. Every failure carries one of
// the domain sentinel kinds so callers can tell a retryable resolver outage
// from a cryptographic rejection.
type Verifier struct {
	Resolver KeyResolver
	// CanonicalIssuer, when set, is the issuer DID awarded the primary
	// trust tier. Every other verified issuer is self-signed-valid.
	CanonicalIssuer string

	clock func() time.Time
}

func NewVerifier(resolver KeyResolver, canonicalIssuer string) *Verifier {
	return &Verifier{Resolver: resolver, CanonicalIssuer: canonicalIssuer, clock: time.Now}
}

// Verify runs the full pipeline. No payload field is trusted before the
// signature verifies; the preview decode is used only to find the issuer and
// key id.
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.VerificationResult, error) {
	preview, err := DecodeUnverified(token)
	if err != nil {
		return nil, err
	}
	header := preview.Header
	if header.Alg != "" && header.Alg != domain.SignatureAlg {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "unsupported algorithm %q", header.Alg)
	}
	if header.KID == "" {
		return nil, fmt.Errorf("%w: token header has no kid", domain.ErrMalformedInput)
	}
	issuer := preview.Claims.Issuer
	if issuer == "" {
		return nil, fmt.Errorf("%w: token has no issuer", domain.ErrMalformedInput)
	}
	if did, _, found := strings.Cut(header.KID, "#"); found && did != issuer {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "kid %q does not belong to issuer %q", header.KID, issuer)
	}

	claims := &credentialClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		resolved, err := v.Resolver.Resolve(ctx, issuer, header.KID)
		if err != nil {
			return nil, err
		}
		return ed25519.PublicKey(resolved.Public), nil
	},
		jwt.WithValidMethods([]string{domain.SignatureAlg}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		return nil, classifyVerifyError(err)
	}

	tier := domain.TrustTierSelfSigned
	if v.CanonicalIssuer != "" && issuer == v.CanonicalIssuer {
		tier = domain.TrustTierPrimary
	}
	out := claims.toDomain()
	return &domain.VerificationResult{
		Tier:      tier,
		Issuer:    out.Issuer,
		SubjectID: out.Subject,
		KID:       header.KID,
		ExpiresAt: time.Unix(out.ExpiresAt, 0).UTC(),
		CheckedAt: v.clock().UTC(),
		Claims:    out,
	}, nil
}

// classifyVerifyError maps jwt and resolver failures onto the domain
// taxonomy. Resolver outcomes pass through untouched so reachability stays
// visibly distinct from cryptographic failure.
func classifyVerifyError(err error) error {
	switch {
	case errors.Is(err, domain.ErrIdentityUnreachable),
		errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrInvalidDID),
		errors.Is(err, domain.ErrMalformedInput):
		return err
	case errors.Is(err, jwt.ErrTokenExpired):
		return domain.NewVerificationError(domain.ErrExpired, "credential validUntil has passed")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", domain.ErrMalformedInput, err)
	default:
		return domain.NewVerificationError(domain.ErrSignatureInvalid, "signature did not verify")
	}
}
