package actions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/reconcile"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// BatchCreate inserts many transactions at once, updating each touched account a single
// time with the aggregate of its entries.
type BatchCreate struct {
	Transactions []ledger.Transaction
}

func (b *BatchCreate) Validate() error {
	if len(b.Transactions) == 0 {
		return &ledger.ValidationError{Field: "transactions", Reason: "must not be empty"}
	}
	for i, tx := range b.Transactions {
		if err := tx.Validate(); err != nil {
			if v, ok := err.(*ledger.ValidationError); ok {
				return &ledger.ValidationError{Field: fmt.Sprintf("transactions[%d].%s", i, v.Field), Reason: v.Reason}
			}
			return err
		}
	}
	return nil
}

func (b *BatchCreate) Accounts(storage.Reader) []string {
	ids := make([]string, 0, len(b.Transactions))
	for _, tx := range b.Transactions {
		ids = append(ids, tx.AccountID)
	}
	return ids
}

func (b *BatchCreate) Operation() syncqueue.Operation { return syncqueue.OperationBatch }

func (b *BatchCreate) Perform(ctx context.Context, writer *storage.Writer) error {
	now := time.Now().UTC()
	accounts := make(map[string]ledger.Account)
	entries := make([]reconcile.BatchEntry, 0, len(b.Transactions))

	for i := range b.Transactions {
		tx := &b.Transactions[i]
		if tx.ID == "" {
			tx.ID = ledger.NewID()
		}
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = now
		}

		if _, ok := accounts[tx.AccountID]; !ok {
			account, err := writer.Account.FindByIDForUpdate(tx.AccountID)
			if err != nil {
				return err
			}
			accounts[tx.AccountID] = *account
		}
		if err := writer.Transaction.Insert(*tx); err != nil {
			return err
		}
		entries = append(entries, reconcile.BatchEntry{AccountID: tx.AccountID, Type: tx.Type, Amount: tx.Amount})
	}

	results, err := reconcile.ApplyBatch(accounts, entries)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		account := accounts[id]
		results[id].ApplyTo(&account)
		if err := writer.Account.UpdateBalance(account); err != nil {
			return err
		}
	}
	return nil
}
