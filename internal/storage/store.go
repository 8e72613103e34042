package storage

import (
	"context"
	"time"

	"tally/internal/core"
)

// Store is the persistence boundary for the transaction ledger. The ledger
// service holds no state of its own; every operation is a fresh round-trip
// against the implementing store.
type Store interface {
	// CreateTransaction persists tx and returns the canonical stored record
	// with the store-assigned ID and timestamps filled in.
	CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)

	// ListTransactions returns every transaction ordered most-recent-first.
	ListTransactions(ctx context.Context) ([]core.Transaction, error)

	// GetTransaction returns the transaction with the given ID, or
	// core.ErrNotFound.
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)

	// DeleteTransaction removes the transaction permanently. Deleting an
	// absent or already-deleted ID returns core.ErrNotFound.
	DeleteTransaction(ctx context.Context, id int64) error

	Close() error
}

const (
	AuditCreated AuditAction = "created"
	AuditDeleted AuditAction = "deleted"
)

type (
	AuditAction string

	// AuditEntry records that a transaction lifecycle event was observed.
	AuditEntry struct {
		ID            int64
		TransactionID int64
		Action        AuditAction
		RecordedAt    time.Time
	}
)

// AuditRecorder is implemented by stores that keep an audit trail. The audit
// worker writes through this interface so it never touches the ledger table.
type AuditRecorder interface {
	RecordAudit(ctx context.Context, transactionID int64, action AuditAction) error
	ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error)
}
