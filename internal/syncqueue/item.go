package syncqueue

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/storage"
)

// Operation is the kind of command that produced a SyncItem.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationBatch  Operation = "batch"
)

// DefaultMaxRetries is the retry limit used when neither the item nor the queue sets one.
const DefaultMaxRetries = 3

// SyncItem is one queued atomic write. Writes is exactly the batch the failed command attempted,
// so replaying it is all-or-nothing just like the original attempt.
type SyncItem struct {
	// ID is the unique identifier of the queued write.
	ID string `json:"id"`

	// Operation is the command kind, for display only.
	Operation Operation `json:"operation"`

	// EntityIDs lists the accounts and transactions the writes touch.
	EntityIDs []string `json:"entityIds"`

	// Writes is the atomic batch to replay.
	Writes []storage.Op `json:"writes"`

	// RetryCount is the number of failed replays so far.
	RetryCount int `json:"retryCount"`

	// MaxRetries is the number of failed replays tolerated before the item is abandoned.
	MaxRetries int `json:"maxRetries"`

	// Timestamp is when the item was enqueued.
	Timestamp time.Time `json:"timestamp"`

	// LastError is the error text of the most recent failed replay.
	LastError string `json:"lastError,omitempty"`

	// Effects is how far the writes move each existing account.
	Effects []AccountEffect `json:"effects,omitempty"`

	// Undo restores what the writes replace: the earlier version of each transaction, a
	// delete for each transaction or account they create.
	Undo []storage.Op `json:"undo,omitempty"`
}

// AccountEffect is the movement one item applies to an account: its balance and, for
// loans, the unfloored principal outstanding.
type AccountEffect struct {
	AccountID string          `json:"accountId"`
	Balance   decimal.Decimal `json:"balance"`
	Principal decimal.Decimal `json:"principal"`
}

// Touches reports whether the item writes any entity in ids.
func (i SyncItem) Touches(ids map[string]bool) bool {
	for _, id := range i.EntityIDs {
		if ids[id] {
			return true
		}
	}
	return false
}

// Status summarizes the queue for callers that display sync state.
type Status struct {
	PendingCount int    `json:"pendingCount"`
	FailedCount  int    `json:"failedCount"`
	LastError    string `json:"lastError,omitempty"`
}
