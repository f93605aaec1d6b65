package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cpoe/internal/codec"
	"cpoe/internal/domain"
	"cpoe/internal/infra/treehash"
)

// RegistrationPolicy gates log registration. An implementation returns
// domain.ErrPolicyDenied (possibly wrapped) to reject; a nil policy allows
// everything.
type RegistrationPolicy interface {
	EvaluateRegistration(ctx context.Context, cred domain.UnverifiedCredential, opts domain.RegisterOptions) error
}

// TransparencyLog is the append-only credential-hash ledger. Writes are
// serialized per instance; reads run lock-free against the store.
type TransparencyLog struct {
	LogID  string
	Store  domain.EntryStore
	Tree   treehash.Strategy
	Key    *domain.Keypair
	Policy RegistrationPolicy

	writeMu sync.Mutex
	clock   func() time.Time
}

// conflictRetries bounds internal retries when a concurrent writer on a
// shared store wins the tree-size race.
const conflictRetries = 3

func NewTransparencyLog(logID string, store domain.EntryStore, tree treehash.Strategy, key *domain.Keypair) *TransparencyLog {
	if tree == nil {
		tree = treehash.Linear{}
	}
	return &TransparencyLog{
		LogID: logID,
		Store: store,
		Tree:  tree,
		Key:   key,
		clock: time.Now,
	}
}

// Register hashes the token, appends a new entry extending the tree, and
// returns the entry with its signed receipt. The statement hash and tree
// digest depend only on the token bytes; ProofOnly controls nothing but
// whether the body is retained.
func (l *TransparencyLog) Register(ctx context.Context, token []byte, opts domain.RegisterOptions) (*domain.LogEntry, *domain.Receipt, error) {
	if len(bytes.TrimSpace(token)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty statement", domain.ErrMalformedInput)
	}
	cred, err := DecodeUnverified(string(token))
	if err != nil {
		return nil, nil, err
	}
	if l.Policy != nil {
		if err := l.Policy.EvaluateRegistration(ctx, *cred, opts); err != nil {
			return nil, nil, err
		}
	}

	statementHash := sha256.Sum256(token)

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		entry, receipt, err := l.tryAppend(ctx, token, statementHash[:], opts)
		if err == nil {
			return entry, receipt, nil
		}
		if !errors.Is(err, domain.ErrWriteConflict) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

// tryAppend runs one read-compute-insert cycle. Nothing is committed until
// Store.Append succeeds, so a cancelled context never leaves a tree size
// allocated without a row.
func (l *TransparencyLog) tryAppend(ctx context.Context, token, statementHash []byte, opts domain.RegisterOptions) (*domain.LogEntry, *domain.Receipt, error) {
	tail, err := l.Store.Tail(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, nil, err
	}

	var (
		treeSize   int64 = 1
		parentHash []byte
		history    [][]byte
	)
	if tail != nil {
		treeSize = tail.TreeSize + 1
		parentHash = tail.TreeHash
		history, err = l.Store.HashesThrough(ctx, tail.TreeSize)
		if err != nil {
			return nil, nil, err
		}
	}
	history = append(history, statementHash)
	treeHash, err := l.Tree.Fold(history)
	if err != nil {
		return nil, nil, err
	}

	now := l.clock().UTC()
	entry := domain.LogEntry{
		EntryID:          l.deriveEntryID(statementHash, treeSize),
		StatementHash:    statementHash,
		TreeSize:         treeSize,
		TreeHash:         treeHash,
		ParentHash:       parentHash,
		RegistrationTime: now,
	}
	if !opts.ProofOnly {
		entry.Statement = append([]byte(nil), token...)
	}

	receipt, err := l.buildReceipt(entry, now)
	if err != nil {
		return nil, nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := l.Store.Append(ctx, entry, *receipt); err != nil {
		return nil, nil, err
	}
	return &entry, receipt, nil
}

func (l *TransparencyLog) buildReceipt(entry domain.LogEntry, issuedAt time.Time) (*domain.Receipt, error) {
	if l.Key == nil || len(l.Key.Private) == 0 {
		return nil, fmt.Errorf("%w: log has no signing key", domain.ErrNotFound)
	}
	payload, err := encodeReceiptStatement(domain.ReceiptStatement{
		EntryID:       entry.EntryID,
		LogID:         l.LogID,
		StatementHash: entry.StatementHash,
		TreeSize:      entry.TreeSize,
		TreeHash:      entry.TreeHash,
	})
	if err != nil {
		return nil, err
	}
	proof, err := codec.SignEnvelope(payload, l.Key.Private)
	if err != nil {
		return nil, err
	}
	return &domain.Receipt{
		EntryID:  entry.EntryID,
		LogID:    l.LogID,
		Proof:    proof,
		IssuedAt: issuedAt,
	}, nil
}

// GetReceipt returns the stored receipt for an entry after re-verifying it
// against the entry row and the log key. A receipt that no longer verifies
// is treated as tampering, not as absence.
func (l *TransparencyLog) GetReceipt(ctx context.Context, entryID string) (*domain.Receipt, error) {
	receipt, err := l.Store.ReceiptByEntryID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	entry, err := l.Store.ByEntryID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	st, err := VerifyReceipt(*receipt, entry.StatementHash, l.Key.Public)
	if err != nil {
		return nil, err
	}
	if st.TreeSize != entry.TreeSize || !bytes.Equal(st.TreeHash, entry.TreeHash) {
		return nil, domain.NewVerificationError(domain.ErrSignatureInvalid, "receipt does not bind stored entry")
	}
	return receipt, nil
}

// ListEntries pages entries newest-first. Issuer, scope and summary are
// surfaced only for rows whose statement body was retained; filters
// therefore never match proof-only rows.
func (l *TransparencyLog) ListEntries(ctx context.Context, q domain.EntryQuery) ([]domain.EntrySummary, error) {
	if q.Limit <= 0 {
		q.Limit = domain.DefaultEntryLimit
	}
	if q.Limit > domain.MaxEntryLimit {
		q.Limit = domain.MaxEntryLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	entries, err := l.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]domain.EntrySummary, 0, len(entries))
	for _, entry := range entries {
		summary := summarizeEntry(entry)
		if !matchesQuery(summary, entry, q) {
			continue
		}
		filtered = append(filtered, summary)
	}
	if q.Offset >= len(filtered) {
		return []domain.EntrySummary{}, nil
	}
	end := q.Offset + q.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[q.Offset:end], nil
}

func summarizeEntry(entry domain.LogEntry) domain.EntrySummary {
	out := domain.EntrySummary{
		EntryID:          entry.EntryID,
		RegistrationTime: entry.RegistrationTime,
		TreeSize:         entry.TreeSize,
		ProofOnly:        entry.ProofOnly(),
	}
	if entry.ProofOnly() {
		return out
	}
	cred, err := DecodeUnverified(string(entry.Statement))
	if err != nil {
		// A stored statement that no longer decodes is surfaced bare
		// rather than dropped; the hash chain still covers it.
		return out
	}
	subject := cred.Claims.VC.Subject
	out.Issuer = cred.Claims.Issuer
	out.Scope = subject.Scope
	prov := subject.Provenance
	out.Provenance = &prov
	sum := subject.Summary
	out.Summary = &sum
	return out
}

func matchesQuery(summary domain.EntrySummary, entry domain.LogEntry, q domain.EntryQuery) bool {
	if q.Issuer == "" && q.Framework == "" && q.Source == "" {
		return true
	}
	if entry.ProofOnly() {
		return false
	}
	if q.Issuer != "" && summary.Issuer != q.Issuer {
		return false
	}
	if q.Source != "" && (summary.Provenance == nil || string(summary.Provenance.Source) != q.Source) {
		return false
	}
	if q.Framework != "" {
		cred, err := DecodeUnverified(string(entry.Statement))
		if err != nil {
			return false
		}
		found := false
		for _, fw := range cred.Claims.VC.Subject.Frameworks {
			if strings.EqualFold(fw.Framework, q.Framework) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// deriveEntryID is deterministic in (log, statement, position) so replaying
// the same sequence into a fresh log yields the same ids.
func (l *TransparencyLog) deriveEntryID(statementHash []byte, treeSize int64) string {
	h := sha256.New()
	h.Write([]byte(l.LogID))
	h.Write(statementHash)
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(treeSize))
	h.Write(size[:])
	return hex.EncodeToString(h.Sum(nil))[:32]
}
