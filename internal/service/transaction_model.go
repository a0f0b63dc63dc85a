package service

import (
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// TransactionFilter narrows a listing. The zero value matches everything.
type TransactionFilter struct {
	AccountID string
	// Status keeps only transactions with this sync status when set.
	Status ledger.SyncStatus
}

func (f TransactionFilter) matches(t ledger.Transaction) bool {
	if f.AccountID != "" && t.AccountID != f.AccountID {
		return false
	}
	return f.Status == "" || t.SyncStatus == f.Status
}

// TransactionCursor is a position in a listing. It carries the limit, the creation time
// bound and the filter of the first page so that every later page is consistent.
// A zero MaxCreationTime means no bound yet.
type TransactionCursor struct {
	Position        int
	Limit           int
	MaxCreationTime time.Time
	Filter          TransactionFilter
}
