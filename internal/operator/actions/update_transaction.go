package actions

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/reconcile"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// UpdateTransaction replaces a transaction with its new full state. A changed AccountID
// makes it a transfer between the old and the new account.
type UpdateTransaction struct {
	Transaction ledger.Transaction
}

func (u *UpdateTransaction) Validate() error {
	if u.Transaction.ID == "" {
		return &ledger.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return u.Transaction.Validate()
}

func (u *UpdateTransaction) Accounts(reader storage.Reader) []string {
	ids := []string{u.Transaction.AccountID}
	if old, ok := reader.Transaction(u.Transaction.ID); ok {
		ids = append(ids, old.AccountID)
	}
	return ids
}

func (u *UpdateTransaction) Operation() syncqueue.Operation { return syncqueue.OperationUpdate }

func (u *UpdateTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	old, err := writer.Transaction.FindByID(u.Transaction.ID)
	if err != nil {
		return err
	}
	next := u.Transaction
	next.CreatedAt = old.CreatedAt
	return Replace(writer, *old, next)
}

// Replace stages next over old. Balances are adjusted on one account, or moved between
// two when the account changed; both sides land in the same batch.
func Replace(writer *storage.Writer, old, next ledger.Transaction) error {
	if old.AccountID == next.AccountID {
		account, err := writer.Account.FindByIDForUpdate(next.AccountID)
		if err != nil {
			return err
		}
		if err := writer.Transaction.Update(next); err != nil {
			return err
		}
		reconcile.ApplyEffect(*account, reconcile.Update, &old, &next).ApplyTo(account)
		return writer.Account.UpdateBalance(*account)
	}

	from, err := writer.Account.FindByIDForUpdate(old.AccountID)
	if err != nil {
		return err
	}
	to, err := writer.Account.FindByIDForUpdate(next.AccountID)
	if err != nil {
		return err
	}
	if err := writer.Transaction.Update(next); err != nil {
		return err
	}

	fromResult, toResult := reconcile.Transfer(*from, *to, old, next)
	fromResult.ApplyTo(from)
	toResult.ApplyTo(to)
	if err := writer.Account.UpdateBalance(*from); err != nil {
		return err
	}
	return writer.Account.UpdateBalance(*to)
}
