package usecase

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	"cpoe/internal/codec"
	"cpoe/internal/domain"
)

// Receipt payloads are CBOR maps signed under COSE_Sign1 with the log key.
// Field names are part of the wire format.
const (
	receiptFieldEntryID       = "entry_id"
	receiptFieldLogID         = "log_id"
	receiptFieldStatementHash = "statement_hash"
	receiptFieldTreeSize      = "tree_size"
	receiptFieldTreeHash      = "tree_hash"
)

func encodeReceiptStatement(st domain.ReceiptStatement) ([]byte, error) {
	if st.TreeSize < 1 {
		return nil, fmt.Errorf("receipt statement: tree size %d", st.TreeSize)
	}
	return codec.Encode(map[any]any{
		receiptFieldEntryID:       st.EntryID,
		receiptFieldLogID:         st.LogID,
		receiptFieldStatementHash: st.StatementHash,
		receiptFieldTreeSize:      uint64(st.TreeSize),
		receiptFieldTreeHash:      st.TreeHash,
	})
}

func decodeReceiptStatement(payload []byte) (*domain.ReceiptStatement, error) {
	decoded, err := codec.Decode(payload)
	if err != nil {
		return nil, err
	}
	m, ok := decoded.(map[any]any)
	if !ok {
		return nil, fmt.Errorf("%w: receipt payload is not a map", domain.ErrMalformedInput)
	}
	st := &domain.ReceiptStatement{}
	if st.EntryID, ok = m[receiptFieldEntryID].(string); !ok {
		return nil, fmt.Errorf("%w: receipt payload missing entry_id", domain.ErrMalformedInput)
	}
	if st.LogID, ok = m[receiptFieldLogID].(string); !ok {
		return nil, fmt.Errorf("%w: receipt payload missing log_id", domain.ErrMalformedInput)
	}
	if st.StatementHash, ok = m[receiptFieldStatementHash].([]byte); !ok {
		return nil, fmt.Errorf("%w: receipt payload missing statement_hash", domain.ErrMalformedInput)
	}
	size, ok := m[receiptFieldTreeSize].(uint64)
	if !ok || size < 1 {
		return nil, fmt.Errorf("%w: receipt payload missing tree_size", domain.ErrMalformedInput)
	}
	st.TreeSize = int64(size)
	if st.TreeHash, ok = m[receiptFieldTreeHash].([]byte); !ok {
		return nil, fmt.Errorf("%w: receipt payload missing tree_hash", domain.ErrMalformedInput)
	}
	return st, nil
}

// VerifyReceipt checks a receipt offline against the log's public key and,
// when the caller knows it, the expected statement hash. It returns the
// signed statement on success.
func VerifyReceipt(receipt domain.Receipt, expectedStatementHash []byte, logPub ed25519.PublicKey) (*domain.ReceiptStatement, error) {
	payload, err := codec.VerifyEnvelope(receipt.Proof, logPub)
	if err != nil {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "receipt proof: %v", err)
	}
	st, err := decodeReceiptStatement(payload)
	if err != nil {
		return nil, err
	}
	if st.EntryID != receipt.EntryID {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "receipt entry id does not match signed statement")
	}
	if receipt.LogID != "" && st.LogID != receipt.LogID {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "receipt log id does not match signed statement")
	}
	if expectedStatementHash != nil && !bytes.Equal(st.StatementHash, expectedStatementHash) {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "receipt statement hash mismatch")
	}
	return st, nil
}
