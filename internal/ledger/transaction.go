package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of a transaction. Amounts are unsigned.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// ParseTransactionType parses "income" or "expense".
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(s)); t {
	case TransactionTypeIncome, TransactionTypeExpense:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// SyncStatus tells whether the latest local write of a transaction reached the document store.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
)

// Schedule makes a transaction a recurring template.
type Schedule struct {
	Interval       Interval   `json:"interval"`
	NextOccurrence time.Time  `json:"nextOccurrence"`
	EndDate        *time.Time `json:"endDate,omitempty"`
}

// Transaction is a single ledger entry. A non-nil Schedule marks a recurring template.
type Transaction struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"accountId"`
	CategoryID string          `json:"categoryId"`
	Payee      string          `json:"payee"`
	Type       TransactionType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
	Schedule   *Schedule       `json:"schedule,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`

	// SyncStatus is local bookkeeping and is never written to the document store.
	SyncStatus SyncStatus `json:"-"`
}

func (t Transaction) EntityID() string { return t.ID }

// IsRecurring reports whether the transaction is a recurring template.
func (t Transaction) IsRecurring() bool { return t.Schedule != nil }

// Signed returns the amount with the sign implied by the transaction type.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeExpense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Validate rejects malformed transactions before they reach reconciliation.
func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return &ValidationError{Field: "accountId", Reason: "must not be empty"}
	}
	if typ, err := ParseTransactionType(string(t.Type)); err != nil {
		return &ValidationError{Field: "type", Reason: err.Error()}
	} else if typ != t.Type {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q", typ)}
	}
	if !t.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Reason: "must be greater than zero"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be set"}
	}
	if s := t.Schedule; s != nil {
		if interval, err := ParseInterval(string(s.Interval)); err != nil {
			return &ValidationError{Field: "schedule.interval", Reason: err.Error()}
		} else if interval != s.Interval {
			return &ValidationError{Field: "schedule.interval", Reason: fmt.Sprintf("must be %q", interval)}
		}
		if s.NextOccurrence.IsZero() {
			return &ValidationError{Field: "schedule.nextOccurrence", Reason: "must be set"}
		}
		if s.EndDate != nil && s.EndDate.Before(Day(s.NextOccurrence)) {
			return &ValidationError{Field: "schedule.endDate", Reason: "must not be before the next occurrence"}
		}
	}
	return nil
}

// NewID returns a client-generated identifier used as the document key.
func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
