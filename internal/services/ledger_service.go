package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"tally/internal/amqp"
	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// LedgerService enforces the ledger's business rules in front of the store and
// publishes lifecycle events for the audit worker. It holds no cached state
// between calls; the store is always the ground truth.
type LedgerService struct {
	store  storage.Store
	events *amqp.Client
}

func NewLedgerService(store storage.Store, events *amqp.Client) *LedgerService {
	return &LedgerService{
		store:  store,
		events: events,
	}
}

// List returns all transactions ordered most-recent-first.
func (s *LedgerService) List(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Create validates and persists a new transaction, returning the canonical
// stored record so callers obtain the authoritative id and timestamps.
func (s *LedgerService) Create(ctx context.Context, description string, amount decimal.Decimal, typ core.TransactionType) (core.Transaction, error) {
	tx := core.Transaction{
		Description: description,
		Amount:      amount,
		Type:        typ,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	stored, err := s.store.CreateTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	// Publish async event (non-blocking); the transaction is already saved,
	// so a publish failure must not fail the request.
	if err := s.publishEvent(ctx, stored.ID, amqp.ActionCreated); err != nil {
		slog.ErrorContext(ctx, "Failed to publish created event",
			applog.FieldOperation, applog.OpCreate,
			"id", stored.ID, "error", err)
	}

	return stored, nil
}

// Delete removes the transaction permanently. Repeating a delete of an
// already-deleted id yields core.ErrNotFound, never silent success.
func (s *LedgerService) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}

	if err := s.publishEvent(ctx, id, amqp.ActionDeleted); err != nil {
		slog.ErrorContext(ctx, "Failed to publish deleted event",
			applog.FieldOperation, applog.OpDelete,
			"id", id, "error", err)
	}

	return nil
}

// Summary re-derives the aggregate totals from the current full transaction
// list on every call.
func (s *LedgerService) Summary(ctx context.Context) (core.Summary, error) {
	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list transactions: %w", err)
	}
	return core.Summarize(txs), nil
}

func (s *LedgerService) publishEvent(ctx context.Context, id int64, action string) error {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping event", "id", id, "action", action)
		return nil
	}
	return s.events.PublishTransactionEvent(ctx, id, action)
}

// Close closes both the store and the AMQP connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
