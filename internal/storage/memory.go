package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tally/internal/core"
)

// MemoryStore is an in-memory Store used for tests and the "memory" backend.
// It mirrors the SQLite repository's semantics: ids are allocated from a
// counter that is never rewound, so a deleted id is never handed out again.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	txs    map[int64]core.Transaction
	audit  []AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		txs:    make(map[int64]core.Transaction),
	}
}

func (s *MemoryStore) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	tx.ID = s.nextID
	s.nextID++
	tx.Date = now
	tx.CreatedAt = now

	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		txs = append(txs, tx)
	}
	// Newest first; ids break ties for records created in the same instant.
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	return tx, nil
}

func (s *MemoryStore) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, core.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *MemoryStore) RecordAudit(_ context.Context, transactionID int64, action AuditAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audit = append(s.audit, AuditEntry{
		ID:            int64(len(s.audit) + 1),
		TransactionID: transactionID,
		Action:        action,
		RecordedAt:    time.Now().UTC(),
	})
	return nil
}

func (s *MemoryStore) ListAuditEntries(_ context.Context, limit int) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]AuditEntry, len(s.audit))
	copy(entries, s.audit)
	// Newest first, same as the SQLite query.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *MemoryStore) Close() error { return nil }

var (
	_ Store         = (*MemoryStore)(nil)
	_ AuditRecorder = (*MemoryStore)(nil)
)
