package domain

import (
	"context"
	"time"
)

// LogEntry is one append-only row of the transparency log. Entries are never
// mutated or deleted; Statement is nil for proof-only registrations while
// StatementHash is always present.
type LogEntry struct {
	EntryID          string
	StatementHash    []byte
	Statement        []byte
	TreeSize         int64
	TreeHash         []byte
	ParentHash       []byte
	RegistrationTime time.Time
}

// ProofOnly reports whether the entry withholds the credential body.
func (e LogEntry) ProofOnly() bool {
	return len(e.Statement) == 0
}

// Receipt is the detached, signed proof that one entry exists in the log.
// Proof holds COSE_Sign1 bytes binding entry id, statement hash, tree size
// and tree hash under the log key.
type Receipt struct {
	EntryID  string    `json:"entryId"`
	LogID    string    `json:"logId"`
	Proof    []byte    `json:"proof"`
	IssuedAt time.Time `json:"issuedAt"`
}

// ReceiptStatement is the payload signed inside a Receipt's proof.
type ReceiptStatement struct {
	EntryID       string
	LogID         string
	StatementHash []byte
	TreeSize      int64
	TreeHash      []byte
}

type RegisterOptions struct {
	// ProofOnly withholds the statement body from the stored entry. The
	// statement hash and tree digest are unaffected.
	ProofOnly bool
}

// EntrySummary is the read-model row returned by entry listings. Issuer,
// scope, provenance and summary are populated only when the statement body
// was retained and decodes cleanly.
type EntrySummary struct {
	EntryID          string           `json:"entryId"`
	RegistrationTime time.Time        `json:"registrationTime"`
	TreeSize         int64            `json:"treeSize"`
	Issuer           string           `json:"issuer,omitempty"`
	Scope            string           `json:"scope,omitempty"`
	Provenance       *Provenance      `json:"provenance,omitempty"`
	Summary          *EvidenceSummary `json:"summary,omitempty"`
	ProofOnly        bool             `json:"proofOnly,omitempty"`
}

// EntryQuery pages and filters entry listings. Filters apply only to rows
// whose statement body is available; proof-only rows never match a filter.
type EntryQuery struct {
	Limit     int
	Offset    int
	Issuer    string
	Framework string
	Source    string
}

const (
	DefaultEntryLimit = 50
	MaxEntryLimit     = 500
)

// EntryStore is the replaceable backing store for the log: insert-in-order
// plus range reads. Implementations must make Append fail with
// ErrWriteConflict when two writers race on the same tree size, and must
// write the entry and its receipt atomically.
type EntryStore interface {
	Append(ctx context.Context, entry LogEntry, receipt Receipt) error
	Tail(ctx context.Context) (*LogEntry, error)
	HashesThrough(ctx context.Context, treeSize int64) ([][]byte, error)
	ByEntryID(ctx context.Context, entryID string) (*LogEntry, error)
	ReceiptByEntryID(ctx context.Context, entryID string) (*Receipt, error)
	// List returns entries newest-first; filtering and paging happen above
	// the store.
	List(ctx context.Context) ([]LogEntry, error)
}
