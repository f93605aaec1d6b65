package codec

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
)

// COSE_Sign1 over the CBOR subset: a 4-element array of protected header
// bytes, an (empty) unprotected map, the payload and the signature. The
// protected header carries exactly one entry, the EdDSA algorithm
// identifier.

const (
	sigContext = "Signature1"

	headerKeyAlg = uint64(1)
	algEdDSA     = int64(-8)
)

var (
	ErrEnvelopeShape = errors.New("cose: envelope shape invalid")
	ErrBadSignature  = errors.New("cose: signature verification failed")
)

// SignEnvelope wraps payload in a COSE_Sign1 envelope signed with key.
func SignEnvelope(payload []byte, key ed25519.PrivateKey) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, errors.New("cose: invalid ed25519 private key length")
	}
	protected, err := protectedHeaderBytes()
	if err != nil {
		return nil, err
	}
	toSign, err := sigStructure(protected, payload)
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(key, toSign)
	return Encode([]any{protected, map[any]any{}, payload, sig})
}

// VerifyEnvelope checks a COSE_Sign1 envelope against pub and returns the
// payload. The signed structure is rebuilt byte-for-byte from the envelope's
// own header and payload, so any tampering in either invalidates the
// signature.
func VerifyEnvelope(envelope []byte, pub ed25519.PublicKey) ([]byte, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, errors.New("cose: invalid ed25519 public key length")
	}
	decoded, err := Decode(envelope)
	if err != nil {
		return nil, err
	}
	arr, ok := decoded.([]any)
	if !ok || len(arr) != 4 {
		return nil, ErrEnvelopeShape
	}
	protected, ok := arr[0].([]byte)
	if !ok {
		return nil, ErrEnvelopeShape
	}
	if _, ok := arr[1].(map[any]any); !ok {
		return nil, ErrEnvelopeShape
	}
	payload, ok := arr[2].([]byte)
	if !ok {
		return nil, ErrEnvelopeShape
	}
	sig, ok := arr[3].([]byte)
	if !ok || len(sig) != ed25519.SignatureSize {
		return nil, ErrEnvelopeShape
	}

	if err := checkProtectedHeader(protected); err != nil {
		return nil, err
	}
	toSign, err := sigStructure(protected, payload)
	if err != nil {
		return nil, err
	}
	if !ed25519.Verify(pub, toSign, sig) {
		return nil, ErrBadSignature
	}
	return payload, nil
}

func protectedHeaderBytes() ([]byte, error) {
	return Encode(map[any]any{headerKeyAlg: algEdDSA})
}

func sigStructure(protected, payload []byte) ([]byte, error) {
	external := []byte{}
	return Encode([]any{sigContext, protected, external, payload})
}

func checkProtectedHeader(protected []byte) error {
	canonical, err := protectedHeaderBytes()
	if err != nil {
		return err
	}
	if !bytes.Equal(protected, canonical) {
		return fmt.Errorf("%w: unexpected protected header", ErrEnvelopeShape)
	}
	return nil
}
