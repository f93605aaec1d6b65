// Package logmem is the in-memory EntryStore: the default backing store for
// tests and single-process deployments. Entries are held append-only; the
// store never mutates a row after Append.
package logmem

import (
	"context"
	"sync"

	"cpoe/internal/domain"
)

type Store struct {
	mu       sync.RWMutex
	entries  []domain.LogEntry
	byID     map[string]int
	receipts map[string]domain.Receipt
}

func New() *Store {
	return &Store{
		byID:     make(map[string]int),
		receipts: make(map[string]domain.Receipt),
	}
}

func (s *Store) Append(ctx context.Context, entry domain.LogEntry, receipt domain.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.TreeSize != int64(len(s.entries))+1 {
		return domain.ErrWriteConflict
	}
	if _, exists := s.byID[entry.EntryID]; exists {
		return domain.ErrWriteConflict
	}
	stored := cloneEntry(entry)
	s.entries = append(s.entries, stored)
	s.byID[entry.EntryID] = len(s.entries) - 1
	s.receipts[entry.EntryID] = cloneReceipt(receipt)
	return nil
}

func (s *Store) Tail(ctx context.Context) (*domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.entries) == 0 {
		return nil, domain.ErrNotFound
	}
	tail := cloneEntry(s.entries[len(s.entries)-1])
	return &tail, nil
}

func (s *Store) HashesThrough(ctx context.Context, treeSize int64) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if treeSize < 0 || treeSize > int64(len(s.entries)) {
		return nil, domain.ErrNotFound
	}
	out := make([][]byte, 0, treeSize)
	for _, entry := range s.entries[:treeSize] {
		out = append(out, cloneBytes(entry.StatementHash))
	}
	return out, nil
}

func (s *Store) ByEntryID(ctx context.Context, entryID string) (*domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry := cloneEntry(s.entries[idx])
	return &entry, nil
}

func (s *Store) ReceiptByEntryID(ctx context.Context, entryID string) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[entryID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := cloneReceipt(receipt)
	return &out, nil
}

func (s *Store) List(ctx context.Context) ([]domain.LogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LogEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		out = append(out, cloneEntry(s.entries[i]))
	}
	return out, nil
}

func cloneEntry(entry domain.LogEntry) domain.LogEntry {
	entry.StatementHash = cloneBytes(entry.StatementHash)
	entry.Statement = cloneBytes(entry.Statement)
	entry.TreeHash = cloneBytes(entry.TreeHash)
	entry.ParentHash = cloneBytes(entry.ParentHash)
	return entry
}

func cloneReceipt(receipt domain.Receipt) domain.Receipt {
	receipt.Proof = cloneBytes(receipt.Proof)
	return receipt
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
