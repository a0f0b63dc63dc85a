package actions

import (
	"context"
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/reconcile"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// CreateTransaction inserts a transaction, or a recurring template when Schedule is set,
// and applies its effect to the account balance.
type CreateTransaction struct {
	Transaction ledger.Transaction
}

func (c *CreateTransaction) Validate() error {
	return c.Transaction.Validate()
}

func (c *CreateTransaction) Accounts(storage.Reader) []string {
	return []string{c.Transaction.AccountID}
}

func (c *CreateTransaction) Operation() syncqueue.Operation { return syncqueue.OperationCreate }

func (c *CreateTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	if c.Transaction.ID == "" {
		c.Transaction.ID = ledger.NewID()
	}
	if c.Transaction.CreatedAt.IsZero() {
		c.Transaction.CreatedAt = time.Now().UTC()
	}
	return Insert(writer, c.Transaction)
}

// Insert stages a new transaction and the balance change of its account.
func Insert(writer *storage.Writer, tx ledger.Transaction) error {
	account, err := writer.Account.FindByIDForUpdate(tx.AccountID)
	if err != nil {
		return err
	}

	if err := writer.Transaction.Insert(tx); err != nil {
		return err
	}

	reconcile.ApplyEffect(*account, reconcile.Create, nil, &tx).ApplyTo(account)
	return writer.Account.UpdateBalance(*account)
}
