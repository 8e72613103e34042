package core

import "github.com/shopspring/decimal"

// Summary holds the aggregate totals derived from a ledger snapshot.
type Summary struct {
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetBalance    decimal.Decimal
}

// Summarize derives totals from the full transaction list. It is a pure
// function of its input and independent of ordering: totals are always
// recomputed from the ground truth rather than kept as running counters,
// so they can never drift from the store.
func Summarize(transactions []Transaction) Summary {
	income := decimal.Zero
	expenses := decimal.Zero
	for _, tx := range transactions {
		switch tx.Type {
		case Income:
			income = income.Add(tx.Amount)
		case Expense:
			expenses = expenses.Add(tx.Amount)
		}
	}
	return Summary{
		TotalIncome:   income,
		TotalExpenses: expenses,
		NetBalance:    income.Sub(expenses),
	}
}
