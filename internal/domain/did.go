package domain

import "crypto/ed25519"

// JWK is the key-interchange shape carried inside DID documents. Only
// OKP/Ed25519 keys are meaningful to this system.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
}

// VerificationMethod is one entry of a DID document's verificationMethod
// array; ID is matched against a token's kid.
type VerificationMethod struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Controller   string `json:"controller,omitempty"`
	PublicKeyJwk *JWK   `json:"publicKeyJwk,omitempty"`
}

// DIDDocument is the fetched identity document. It is untrusted input until
// a key extracted from it verifies a signature.
type DIDDocument struct {
	Context            []string             `json:"@context,omitempty"`
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
}

// ResolvedKey is the outcome of a successful DID resolution: the issuer's
// public key for the requested kid.
type ResolvedKey struct {
	DID    string
	KID    string
	Public ed25519.PublicKey
}
