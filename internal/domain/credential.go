package domain

import "time"

const (
	ProtocolVersion = "1.0"

	CredentialTokenType = "cpoe+jwt"
	SignatureAlg        = "EdDSA"

	CredentialContext = "https://www.w3.org/ns/credentials/v2"
	CredentialType    = "ComplianceAttestation"
)

type ProvenanceSource string

const (
	ProvenanceSelf    ProvenanceSource = "self"
	ProvenanceTool    ProvenanceSource = "tool"
	ProvenanceAuditor ProvenanceSource = "auditor"
)

// Provenance records where the underlying evidence came from.
type Provenance struct {
	Source         ProvenanceSource `json:"source"`
	SourceIdentity string           `json:"sourceIdentity,omitempty"`
	SourceDocument string           `json:"sourceDocument,omitempty"`
	SourceDate     string           `json:"sourceDate,omitempty"`
}

// EvidenceSummary is the normalized evidence shape consumed by the issuer.
// Upstream parsers produce it; nothing in this module re-reads raw reports.
type EvidenceSummary struct {
	ControlsTested int `json:"controlsTested"`
	ControlsPassed int `json:"controlsPassed"`
	ControlsFailed int `json:"controlsFailed"`
	OverallScore   int `json:"overallScore"`
}

// FrameworkMapping maps the attested scope onto a compliance framework.
type FrameworkMapping struct {
	Framework string   `json:"framework"`
	Controls  []string `json:"controls,omitempty"`
}

// EvidenceRef points at a supporting document by digest, never by content.
type EvidenceRef struct {
	Name      string `json:"name"`
	SHA256    string `json:"sha256"`
	MediaType string `json:"mediaType,omitempty"`
}

// ProcessStep is one link in an optional process-provenance chain.
type ProcessStep struct {
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// CredentialSubject carries the attested scope, its evidence summary and
// optional enrichment. Enrichment never overrides the summary counts.
type CredentialSubject struct {
	ID           string             `json:"id,omitempty"`
	Scope        string             `json:"scope"`
	Provenance   Provenance         `json:"provenance"`
	Summary      EvidenceSummary    `json:"summary"`
	Frameworks   []FrameworkMapping `json:"frameworks,omitempty"`
	Evidence     []EvidenceRef      `json:"evidenceChain,omitempty"`
	ProcessChain []ProcessStep      `json:"processProvenance,omitempty"`
}

// CredentialBody is the W3C-style verifiable-credential body embedded in the
// token payload under "vc".
type CredentialBody struct {
	Context    []string          `json:"@context"`
	Type       []string          `json:"type"`
	Issuer     string            `json:"issuer"`
	ValidFrom  time.Time         `json:"validFrom"`
	ValidUntil time.Time         `json:"validUntil"`
	Subject    CredentialSubject `json:"credentialSubject"`
}

// TokenHeader is the decoded first segment of a credential token.
type TokenHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
	KID string `json:"kid"`
}

// TokenClaims is the decoded second segment of a credential token.
type TokenClaims struct {
	Issuer    string         `json:"iss"`
	Subject   string         `json:"sub"`
	IssuedAt  int64          `json:"iat"`
	ExpiresAt int64          `json:"exp"`
	Version   string         `json:"cpoe_version"`
	VC        CredentialBody `json:"vc"`
}

// UnverifiedCredential is a decoded-but-unchecked token. It exists only for
// fast-path preview; nothing in it may be treated as trustworthy.
type UnverifiedCredential struct {
	Header TokenHeader
	Claims TokenClaims
}

type TrustTier string

const (
	TrustTierPrimary    TrustTier = "primary-issuer-verified"
	TrustTierSelfSigned TrustTier = "self-signed-valid"
)

// VerificationResult is returned only after every check in the verifier
// pipeline has passed.
type VerificationResult struct {
	Tier      TrustTier   `json:"trustTier"`
	Issuer    string      `json:"issuer"`
	SubjectID string      `json:"subjectId"`
	KID       string      `json:"kid"`
	ExpiresAt time.Time   `json:"expiresAt"`
	CheckedAt time.Time   `json:"checkedAt"`
	Claims    TokenClaims `json:"-"`
}
