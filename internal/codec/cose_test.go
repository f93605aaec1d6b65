package codec

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
)

func testKeypair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func TestSignVerifyEnvelope(t *testing.T) {
	pub, priv := testKeypair(t)
	payload := []byte(`{"entryId":"e-1","treeSize":1}`)

	envelope, err := SignEnvelope(payload, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := VerifyEnvelope(envelope, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mismatch: got %q", got)
	}
}

func TestVerifyEnvelopeEmptyPayload(t *testing.T) {
	pub, priv := testKeypair(t)
	envelope, err := SignEnvelope(nil, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := VerifyEnvelope(envelope, pub)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty payload, got %x", got)
	}
}

func TestVerifyEnvelopeTamper(t *testing.T) {
	pub, priv := testKeypair(t)
	envelope, err := SignEnvelope([]byte("statement-hash-binding"), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	// Flipping any byte of the envelope must make verification fail: either
	// the CBOR no longer parses, the header check trips, or the signature
	// breaks.
	for i := range envelope {
		tampered := append([]byte(nil), envelope...)
		tampered[i] ^= 0x01
		if _, err := VerifyEnvelope(tampered, pub); err == nil {
			t.Fatalf("tampering byte %d went undetected", i)
		}
	}
}

func TestVerifyEnvelopeWrongKey(t *testing.T) {
	_, priv := testKeypair(t)
	otherPub, _ := testKeypair(t)

	envelope, err := SignEnvelope([]byte("payload"), priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := VerifyEnvelope(envelope, otherPub); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("got %v, want ErrBadSignature", err)
	}
}

func TestVerifyEnvelopeShape(t *testing.T) {
	pub, _ := testKeypair(t)

	threeElems, err := Encode([]any{[]byte{}, map[any]any{}, []byte("p")})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := VerifyEnvelope(threeElems, pub); !errors.Is(err, ErrEnvelopeShape) {
		t.Fatalf("got %v, want ErrEnvelopeShape", err)
	}

	notArray, err := Encode("nope")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := VerifyEnvelope(notArray, pub); !errors.Is(err, ErrEnvelopeShape) {
		t.Fatalf("got %v, want ErrEnvelopeShape", err)
	}
}

func TestVerifyEnvelopeRejectsForeignAlg(t *testing.T) {
	pub, priv := testKeypair(t)

	// An envelope whose protected header declares a different algorithm must
	// be rejected before any signature math happens.
	badProtected, err := Encode(map[any]any{uint64(1): int64(-7)})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	payload := []byte("payload")
	toSign, err := sigStructure(badProtected, payload)
	if err != nil {
		t.Fatalf("sig structure: %v", err)
	}
	sig := ed25519.Sign(priv, toSign)
	envelope, err := Encode([]any{badProtected, map[any]any{}, payload, sig})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := VerifyEnvelope(envelope, pub); !errors.Is(err, ErrEnvelopeShape) {
		t.Fatalf("got %v, want ErrEnvelopeShape", err)
	}
}
