package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// MaxDescriptionLength bounds free-form descriptions, matching the storage column.
const MaxDescriptionLength = 255

type (
	TransactionType string

	Transaction struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		Type        TransactionType
		Date        time.Time
		CreatedAt   time.Time
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrDescriptionTooLong = errors.New("description too long (max 255 characters)")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrNotFound           = errors.New("transaction not found")
)

// Valid reports whether t is one of the two permitted transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	}
	return false
}

func (t TransactionType) String() string {
	return string(t)
}

func (tx Transaction) Validate() error {
	if len(strings.TrimSpace(tx.Description)) == 0 {
		return ErrEmptyDescription
	}
	// Length is bounded in characters, not bytes, so multibyte input is
	// measured the same way a varchar(255) column would.
	if utf8.RuneCountInString(tx.Description) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	if !tx.Type.Valid() {
		return ErrInvalidType
	}
	// Direction is carried by Type; the amount itself must be strictly positive.
	if tx.Amount.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidAmount
	}
	return nil
}
