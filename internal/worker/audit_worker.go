package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// AuditWorker consumes transaction lifecycle events and writes them to the
// audit trail. It only ever appends to the audit log; the ledger table stays
// untouched.
type AuditWorker struct {
	recorder storage.AuditRecorder
	store    storage.Store
}

func NewAuditWorker(recorder storage.AuditRecorder, store storage.Store) *AuditWorker {
	return &AuditWorker{
		recorder: recorder,
		store:    store,
	}
}

// HandleEvent processes a single lifecycle event.
func (w *AuditWorker) HandleEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		applog.FieldOperation, applog.OpAudit,
		"id", msg.ID,
		"action", msg.Action)

	var action storage.AuditAction
	switch msg.Action {
	case amqp.ActionCreated:
		action = storage.AuditCreated
	case amqp.ActionDeleted:
		action = storage.AuditDeleted
	default:
		// Unknown actions are dropped rather than requeued forever.
		slog.WarnContext(ctx, "Dropping event with unknown action",
			"id", msg.ID,
			"action", msg.Action)
		return nil
	}

	// For created events, confirm the record landed. A missing record is
	// fine: the transaction may already have been deleted by the time the
	// event is consumed.
	if action == storage.AuditCreated && w.store != nil {
		if _, err := w.store.GetTransaction(ctx, msg.ID); err != nil {
			if !errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("verify transaction %d: %w", msg.ID, err)
			}
			slog.WarnContext(ctx, "Transaction already gone, recording anyway",
				"id", msg.ID)
		}
	}

	if err := w.recorder.RecordAudit(ctx, msg.ID, action); err != nil {
		return fmt.Errorf("record audit for transaction %d: %w", msg.ID, err)
	}

	return nil
}

// Run consumes events from the client until ctx is cancelled.
func (w *AuditWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeTransactionEvents(ctx, func(msg *amqp.TransactionEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}
