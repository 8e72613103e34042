package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "Paycheck",
		Amount:      decimal.RequireFromString("1000.00"),
		Type:        core.Income,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.CreatedAt.IsZero() || created.Date.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := repo.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Description != "Paycheck" || got.Type != core.Income {
		t.Fatalf("unexpected record: %+v", got)
	}
	if core.FormatAmount(got.Amount) != "1000.00" {
		t.Fatalf("amount round-trip = %s, want 1000.00", core.FormatAmount(got.Amount))
	}
}

func TestSQLiteRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, desc := range []string{"first", "second", "third"} {
		if _, err := repo.CreateTransaction(ctx, core.Transaction{
			Description: desc,
			Amount:      decimal.RequireFromString("1.00"),
			Type:        core.Expense,
		}); err != nil {
			t.Fatalf("CreateTransaction(%s) error = %v", desc, err)
		}
	}

	txs, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	for i := 1; i < len(txs); i++ {
		if txs[i-1].ID < txs[i].ID {
			t.Fatalf("expected newest first, got ids %d before %d", txs[i-1].ID, txs[i].ID)
		}
	}
}

func TestSQLiteRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "Rent",
		Amount:      decimal.RequireFromString("750.00"),
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}

	if err := repo.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}

	if err := repo.DeleteTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetTransaction(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("GetTransaction() after delete error = %v, want ErrNotFound", err)
	}
}

func TestSQLiteRepository_IDsNotReused(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	first, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "a",
		Amount:      decimal.RequireFromString("1.00"),
		Type:        core.Income,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if err := repo.DeleteTransaction(ctx, first.ID); err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}

	second, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "b",
		Amount:      decimal.RequireFromString("1.00"),
		Type:        core.Income,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected fresh id after delete, got %d after %d", second.ID, first.ID)
	}
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Description: "Groceries",
		Amount:      decimal.RequireFromString("42.50"),
		Type:        core.Expense,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteRepository(dbPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetTransaction() after reopen error = %v", err)
	}
	if core.FormatAmount(got.Amount) != "42.50" {
		t.Fatalf("amount after reopen = %s, want 42.50", core.FormatAmount(got.Amount))
	}
}

func TestSQLiteRepository_AuditTrail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	if err := repo.RecordAudit(ctx, 1, AuditCreated); err != nil {
		t.Fatalf("RecordAudit() error = %v", err)
	}
	if err := repo.RecordAudit(ctx, 1, AuditDeleted); err != nil {
		t.Fatalf("RecordAudit() error = %v", err)
	}

	entries, err := repo.ListAuditEntries(ctx, 10)
	if err != nil {
		t.Fatalf("ListAuditEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Most recent entry first.
	if entries[0].Action != AuditDeleted || entries[1].Action != AuditCreated {
		t.Fatalf("unexpected order: %+v", entries)
	}
}
