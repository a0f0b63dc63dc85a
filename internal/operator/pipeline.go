package operator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/budget-ledger/internal/cache"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
	"github.com/carson-networks/budget-ledger/internal/state"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// Status is how a command's writes were persisted.
type Status string

const (
	// StatusAck means the document store acknowledged the writes.
	StatusAck Status = "ack"
	// StatusQueued means the writes are in the sync queue awaiting replay.
	StatusQueued Status = "queued"
)

// Result is returned for every command that was applied locally.
type Result struct {
	Status     Status
	EntityIDs  []string
	SyncItemID string
}

// lockAttempts bounds how often Execute re-reads the account set of an action whose
// accounts moved while it waited for the locks.
const lockAttempts = 5

// Pipeline runs one action: lock its accounts, stage its writes against local state,
// then commit them to the store or degrade to the sync queue.
type Pipeline struct {
	state        *state.Store
	store        storage.Store
	queue        *syncqueue.Queue
	connectivity *Connectivity
	accounts     *cache.Cache[ledger.Account]
	transactions *cache.Cache[ledger.Transaction]
	logger       logrus.FieldLogger

	locks *accountLocks
}

func NewPipeline(
	st *state.Store,
	store storage.Store,
	queue *syncqueue.Queue,
	connectivity *Connectivity,
	accounts *cache.Cache[ledger.Account],
	transactions *cache.Cache[ledger.Transaction],
	logger logrus.FieldLogger,
) *Pipeline {
	p := &Pipeline{
		state:        st,
		store:        store,
		queue:        queue,
		connectivity: connectivity,
		accounts:     accounts,
		transactions: transactions,
		logger:       logger,
		locks:        newAccountLocks(),
	}
	queue.SetOnSynced(p.synced)
	queue.SetOnDiscarded(p.discarded)
	queue.SetOnlineCheck(connectivity.Online)
	return p
}

// Execute runs action to completion. Only validation, permission, not-found and local
// queue failures are returned as errors; any other persistence failure degrades to a
// queued result.
func (p *Pipeline) Execute(ctx context.Context, action actions.IAction) (Result, error) {
	unlock, err := p.lock(action)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	writer := storage.NewWriter(p.state)
	if err := action.Perform(ctx, writer); err != nil {
		return Result{}, err
	}
	if writer.Empty() {
		return Result{Status: StatusAck}, nil
	}

	changes := writer.Changes()
	ops := writer.Ops()
	entityIDs := changes.EntityIDs()
	logger := p.logger.WithFields(logrus.Fields{
		"operation": action.Operation(),
		"entityIDs": entityIDs,
	})

	direct := p.connectivity.Online()
	if direct {
		blocked, err := p.queue.Blocks(ctx, entityIDs)
		if err != nil {
			return Result{}, fmt.Errorf("check sync queue: %w", err)
		}
		direct = !blocked
	}

	if direct {
		err := p.store.BatchWrite(ctx, ops)
		switch {
		case err == nil:
			p.apply(changes, ledger.SyncStatusSynced)
			logger.Debug("Pipeline.Execute.ack")
			return Result{Status: StatusAck, EntityIDs: entityIDs}, nil
		case storage.IsPermission(err):
			logger.WithError(err).Error("Pipeline.Execute.permission denied")
			return Result{}, fmt.Errorf("%s: %w", action.Operation(), err)
		case storage.IsTransient(err):
			logger.WithError(err).Warn("Pipeline.Execute.store unavailable")
			p.connectivity.SetOnline(false)
		default:
			logger.WithError(err).Warn("Pipeline.Execute.write failed")
		}
	}

	undo, err := p.undoOps(ops)
	if err != nil {
		return Result{}, fmt.Errorf("enqueue %s: %w", action.Operation(), err)
	}

	// The writes are applied locally either way, so the queue must get them even if the
	// caller has gone away. They are applied before the queue lock is released, so a
	// replay pass cannot confirm the item before its entities are marked pending.
	item, err := p.queue.EnqueueThen(context.WithoutCancel(ctx), syncqueue.SyncItem{
		Operation: action.Operation(),
		EntityIDs: entityIDs,
		Writes:    ops,
		Effects:   p.effects(changes),
		Undo:      undo,
	}, func(syncqueue.SyncItem) {
		p.apply(changes, ledger.SyncStatusPending)
	})
	if err != nil {
		return Result{}, fmt.Errorf("enqueue %s: %w", action.Operation(), err)
	}
	logger.WithField("syncItemID", item.ID).Info("Pipeline.Execute.queued")
	return Result{Status: StatusQueued, EntityIDs: entityIDs, SyncItemID: item.ID}, nil
}

// lock takes the account locks of action. The set is read from state before locking and
// checked again after, since a concurrent transfer may have moved the transaction.
func (p *Pipeline) lock(action actions.IAction) (func(), error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ids := normalize(action.Accounts(p.state))
		unlock := p.locks.Lock(ids)
		if sameIDs(ids, normalize(action.Accounts(p.state))) {
			return unlock, nil
		}
		unlock()
	}
	return nil, fmt.Errorf("%s: accounts kept changing while locking", action.Operation())
}

func (p *Pipeline) apply(changes storage.Changes, status ledger.SyncStatus) {
	p.state.Apply(changes, status)

	if status == ledger.SyncStatusSynced {
		ids := changes.EntityIDs()
		p.accounts.ClearPending(ids...)
		p.transactions.ClearPending(ids...)
		p.accounts.Invalidate()
		p.transactions.Invalidate()
		return
	}

	for _, acc := range changes.Accounts {
		p.accounts.PutPending(acc)
	}
	for _, tx := range changes.Transactions {
		tx.SyncStatus = status
		p.transactions.PutPending(tx)
	}
	for _, id := range changes.DeletedTransactions {
		p.transactions.DeletePending(id)
	}
	for _, id := range changes.DeletedAccounts {
		p.accounts.DeletePending(id)
	}
}

// synced runs after the queue replays an item. Entities that another queued or failed
// item also writes stay pending.
func (p *Pipeline) synced(item syncqueue.SyncItem) {
	stillPending := p.queuedEntities(context.Background())

	var confirmed []string
	for _, id := range item.EntityIDs {
		if !stillPending[id] {
			confirmed = append(confirmed, id)
		}
	}

	p.state.MarkSynced(confirmed...)
	p.accounts.ClearPending(confirmed...)
	p.transactions.ClearPending(confirmed...)
	p.accounts.Invalidate()
	p.transactions.Invalidate()
}

func (p *Pipeline) queuedEntities(ctx context.Context) map[string]bool {
	ids := make(map[string]bool)
	pending, err := p.queue.Pending(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Pipeline.queuedEntities.pending unreadable")
	}
	failed, err := p.queue.Failed(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("Pipeline.queuedEntities.failed unreadable")
	}
	for _, item := range append(pending, failed...) {
		for _, id := range item.EntityIDs {
			ids[id] = true
		}
	}
	return ids
}
