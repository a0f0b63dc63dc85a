package actions

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/reconcile"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

type DeleteTransaction struct {
	ID string
}

func (d *DeleteTransaction) Validate() error {
	if d.ID == "" {
		return &ledger.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return nil
}

func (d *DeleteTransaction) Accounts(reader storage.Reader) []string {
	if old, ok := reader.Transaction(d.ID); ok {
		return []string{old.AccountID}
	}
	return nil
}

func (d *DeleteTransaction) Operation() syncqueue.Operation { return syncqueue.OperationDelete }

func (d *DeleteTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	old, err := writer.Transaction.FindByID(d.ID)
	if err != nil {
		return err
	}
	account, err := writer.Account.FindByIDForUpdate(old.AccountID)
	if err != nil {
		return err
	}

	if err := writer.Transaction.Delete(d.ID); err != nil {
		return err
	}
	reconcile.ApplyEffect(*account, reconcile.Delete, old, nil).ApplyTo(account)
	return writer.Account.UpdateBalance(*account)
}
