package usecase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"cpoe/internal/domain"
)

// credentialClaims is the JWS payload shape shared by issuance and
// verification.
type credentialClaims struct {
	jwt.RegisteredClaims
	Version string                `json:"cpoe_version"`
	VC      domain.CredentialBody `json:"vc"`
}

func (c credentialClaims) toDomain() domain.TokenClaims {
	out := domain.TokenClaims{
		Issuer:  c.Issuer,
		Subject: c.Subject,
		Version: c.Version,
		VC:      c.VC,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Unix()
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Unix()
	}
	return out
}

// DecodeUnverified splits and decodes a token without touching any key. It
// exists for fast-path preview only; callers must treat the result as
// untrusted until Verify succeeds.
func DecodeUnverified(token string) (*domain.UnverifiedCredential, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token has %d segments, want 3", domain.ErrMalformedInput, len(parts))
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header segment is not base64url", domain.ErrMalformedInput)
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload segment is not base64url", domain.ErrMalformedInput)
	}

	var header domain.TokenHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("%w: header is not valid JSON", domain.ErrMalformedInput)
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload is not valid JSON", domain.ErrMalformedInput)
	}
	return &domain.UnverifiedCredential{Header: header, Claims: claims}, nil
}
