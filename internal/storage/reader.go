package storage

import (
	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// Reader is the local view commands read before computing their writes.
type Reader interface {
	Account(id string) (ledger.Account, bool)
	Transaction(id string) (ledger.Transaction, bool)
	Transactions() []ledger.Transaction
}

// Changes is the entity-level result of a unit of work.
type Changes struct {
	Accounts            []ledger.Account
	Transactions        []ledger.Transaction
	DeletedTransactions []string
	// DeletedAccounts is only set when a discarded write is undone.
	DeletedAccounts []string
}

// EntityIDs lists every id touched by the changes.
func (c Changes) EntityIDs() []string {
	ids := make([]string, 0, len(c.Accounts)+len(c.Transactions)+len(c.DeletedTransactions)+len(c.DeletedAccounts))
	for _, a := range c.Accounts {
		ids = append(ids, a.ID)
	}
	ids = append(ids, c.DeletedAccounts...)
	for _, t := range c.Transactions {
		ids = append(ids, t.ID)
	}
	ids = append(ids, c.DeletedTransactions...)
	return ids
}

// TransactionIDs lists the upserted and deleted transaction ids.
func (c Changes) TransactionIDs() []string {
	ids := make([]string, 0, len(c.Transactions)+len(c.DeletedTransactions))
	for _, t := range c.Transactions {
		ids = append(ids, t.ID)
	}
	return append(ids, c.DeletedTransactions...)
}
