package actions

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// TransferTransaction moves an existing transaction to another account, leaving every
// other field unchanged.
type TransferTransaction struct {
	ID          string
	ToAccountID string
}

func (t *TransferTransaction) Validate() error {
	if t.ID == "" {
		return &ledger.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if t.ToAccountID == "" {
		return &ledger.ValidationError{Field: "toAccountId", Reason: "must not be empty"}
	}
	return nil
}

func (t *TransferTransaction) Accounts(reader storage.Reader) []string {
	ids := []string{t.ToAccountID}
	if old, ok := reader.Transaction(t.ID); ok {
		ids = append(ids, old.AccountID)
	}
	return ids
}

func (t *TransferTransaction) Operation() syncqueue.Operation { return syncqueue.OperationUpdate }

func (t *TransferTransaction) Perform(ctx context.Context, writer *storage.Writer) error {
	old, err := writer.Transaction.FindByID(t.ID)
	if err != nil {
		return err
	}
	next := *old
	next.AccountID = t.ToAccountID
	return Replace(writer, *old, next)
}
