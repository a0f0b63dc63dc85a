package actions

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// IAction is a ledger command. Validate runs before the action is queued to a worker and
// must not touch state. Accounts names the accounts whose balances Perform may change,
// so the worker can lock them first. Perform stages every write on writer; the caller
// commits them as one batch.
type IAction interface {
	Validate() error
	Accounts(reader storage.Reader) []string
	Operation() syncqueue.Operation
	Perform(ctx context.Context, writer *storage.Writer) error
}
