package operator

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// Discard drops an abandoned sync item and takes its writes back out of local state.
// It holds the locks of every account the item wrote.
func (p *Pipeline) Discard(ctx context.Context, id string) (syncqueue.SyncItem, error) {
	failed, err := p.queue.Failed(ctx)
	if err != nil {
		return syncqueue.SyncItem{}, err
	}
	var accounts []string
	for _, item := range failed {
		if item.ID != id {
			continue
		}
		for _, op := range slices.Concat(item.Writes, item.Undo) {
			if collection, accountID := storage.SplitPath(op.Path); collection == storage.CollectionAccounts {
				accounts = append(accounts, accountID)
			}
		}
	}

	unlock := p.locks.Lock(accounts)
	defer unlock()
	return p.queue.Discard(ctx, id)
}

// Retry moves an abandoned sync item back into replay.
func (p *Pipeline) Retry(ctx context.Context, id string) (syncqueue.SyncItem, error) {
	return p.queue.Retry(ctx, id)
}

// effects records how far changes move each account that already exists locally.
func (p *Pipeline) effects(changes storage.Changes) []syncqueue.AccountEffect {
	var out []syncqueue.AccountEffect
	for _, after := range changes.Accounts {
		before, ok := p.state.Account(after.ID)
		if !ok {
			continue
		}
		e := syncqueue.AccountEffect{
			AccountID: after.ID,
			Balance:   after.Balance.Sub(before.Balance),
			Principal: outstanding(after).Sub(outstanding(before)),
		}
		if e.Balance.IsZero() && e.Principal.IsZero() {
			continue
		}
		out = append(out, e)
	}
	return out
}

func outstanding(a ledger.Account) decimal.Decimal {
	if a.Loan == nil {
		return decimal.Zero
	}
	return a.Loan.Outstanding()
}

// undoOps lists the writes that restore what ops replace: the current version of each
// transaction they write, and a delete for each account or transaction they create.
// Balances of existing accounts are restored from effects instead.
func (p *Pipeline) undoOps(ops []storage.Op) ([]storage.Op, error) {
	seen := make(map[string]bool, len(ops))
	var undo []storage.Op
	for _, op := range ops {
		if seen[op.Path] {
			continue
		}
		seen[op.Path] = true

		switch collection, id := storage.SplitPath(op.Path); collection {
		case storage.CollectionAccounts:
			if _, ok := p.state.Account(id); !ok {
				undo = append(undo, storage.Op{Kind: storage.OpDelete, Path: op.Path})
			}
		case storage.CollectionTransactions:
			before, ok := p.state.Transaction(id)
			if !ok {
				undo = append(undo, storage.Op{Kind: storage.OpDelete, Path: op.Path})
				continue
			}
			doc, err := storage.TransactionDocument(before)
			if err != nil {
				return nil, err
			}
			undo = append(undo, storage.Op{Kind: storage.OpSet, Path: op.Path, Data: doc})
		}
	}
	return undo, nil
}

// discarded runs once the queue has dropped item and rebased the rest. Account effects
// are always reverted. Entities no remaining item writes are restored to their version
// before item and are synced again; the others keep the version their later item wrote.
func (p *Pipeline) discarded(item syncqueue.SyncItem, remaining []syncqueue.SyncItem) {
	logger := p.logger.WithField("syncItemID", item.ID)

	queued := make(map[string]bool)
	for _, other := range remaining {
		for _, id := range other.EntityIDs {
			queued[id] = true
		}
	}

	var changes storage.Changes
	for _, e := range item.Effects {
		acc, ok := p.state.Account(e.AccountID)
		if !ok {
			continue
		}
		changes.Accounts = append(changes.Accounts, e.Revert(acc))
	}
	for _, op := range item.Undo {
		collection, id := storage.SplitPath(op.Path)
		if queued[id] {
			continue
		}
		switch {
		case collection == storage.CollectionAccounts && op.Kind == storage.OpDelete:
			changes.DeletedAccounts = append(changes.DeletedAccounts, id)
		case collection == storage.CollectionTransactions && op.Kind == storage.OpDelete:
			changes.DeletedTransactions = append(changes.DeletedTransactions, id)
		case collection == storage.CollectionTransactions:
			tx, err := storage.DecodeTransaction(op.Data)
			if err != nil {
				logger.WithError(err).WithField("path", op.Path).Error("Pipeline.discarded.undo unreadable")
				continue
			}
			changes.Transactions = append(changes.Transactions, tx)
		}
	}

	p.state.Apply(changes, ledger.SyncStatusSynced)

	var confirmed []string
	for _, acc := range changes.Accounts {
		if queued[acc.ID] {
			p.accounts.PutPending(acc)
			continue
		}
		confirmed = append(confirmed, acc.ID)
	}
	confirmed = append(confirmed, changes.TransactionIDs()...)
	confirmed = append(confirmed, changes.DeletedAccounts...)
	p.accounts.ClearPending(confirmed...)
	p.transactions.ClearPending(confirmed...)
	p.accounts.Invalidate()
	p.transactions.Invalidate()

	logger.WithFields(logrus.Fields{
		"reverted": len(item.Effects),
		"restored": len(changes.Transactions) + len(changes.DeletedTransactions) + len(changes.DeletedAccounts),
	}).Warn("Pipeline.discarded.reverted")
}
