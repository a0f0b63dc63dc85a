package service

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carson-networks/budget-ledger/internal/cache"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
	"github.com/carson-networks/budget-ledger/internal/recurring"
	"github.com/carson-networks/budget-ledger/internal/state"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

const (
	accountsOrderBy     = "name"
	transactionsOrderBy = "date"
)

// Options tunes a Ledger. Zero values fall back to defaults.
type Options struct {
	Workers  int
	CacheTTL time.Duration
	// RecurringInterval is how often Start runs the scheduler. Zero disables the ticker.
	RecurringInterval time.Duration
	Clock             func() time.Time
	StartOffline      bool
}

// Ledger is one session over a document store: it owns the local state, the caches,
// the command workers and the background loops, and releases them on Close.
type Ledger struct {
	state        *state.Store
	store        storage.Store
	queue        *syncqueue.Queue
	connectivity *operator.Connectivity
	accounts     *cache.Cache[ledger.Account]
	transactions *cache.Cache[ledger.Transaction]
	pipeline     *operator.Pipeline
	delegator    *operator.OperatorDelegator
	scheduler    *recurring.Scheduler
	logger       logrus.FieldLogger

	recurringInterval time.Duration
	closeOnce         sync.Once
}

// NewLedger wires a session and starts its command workers. queue must write to store.
func NewLedger(store storage.Store, queue *syncqueue.Queue, opts Options, logger logrus.FieldLogger) *Ledger {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	l := &Ledger{
		state:             state.New(),
		store:             store,
		queue:             queue,
		connectivity:      operator.NewConnectivity(!opts.StartOffline),
		accounts:          cache.New[ledger.Account](opts.CacheTTL),
		transactions:      cache.New[ledger.Transaction](opts.CacheTTL),
		logger:            logger,
		recurringInterval: opts.RecurringInterval,
	}

	l.pipeline = operator.NewPipeline(l.state, store, queue, l.connectivity, l.accounts, l.transactions, logger)
	l.delegator = operator.NewOperatorDelegator(l.pipeline, opts.Workers)
	l.delegator.Start()
	l.scheduler = recurring.NewScheduler(l.state, l.delegator, opts.Clock, logger)
	return l
}

// Load builds local state from the store and replays the writes still in the sync queue
// on top, so queued work from an earlier session is visible before it syncs. Failed items
// stay applied until they are discarded, as they were in the session that queued them. An
// unreachable store is not an error: the session starts offline from the queue alone.
func (l *Ledger) Load(ctx context.Context) error {
	var remoteAccounts []ledger.Account
	var remoteTransactions []ledger.Transaction

	if l.connectivity.Online() {
		accounts, transactions, err := l.fetchAll(ctx)
		switch {
		case err == nil:
			remoteAccounts, remoteTransactions = accounts, transactions
			l.accounts.Refresh(accounts)
			l.transactions.Refresh(transactions)
		case storage.IsTransient(err):
			l.logger.WithError(err).Warn("Ledger.Load.store unavailable, starting offline")
			l.connectivity.SetOnline(false)
		default:
			return err
		}
	}

	pending, err := l.queuedItems(ctx)
	if err != nil {
		return err
	}
	accounts, transactions, err := overlay(remoteAccounts, remoteTransactions, pending, l.logger)
	if err != nil {
		return err
	}

	pendingIDs := make(map[string]bool)
	for _, item := range pending {
		for _, id := range item.EntityIDs {
			pendingIDs[id] = true
		}
	}

	byID := make(map[string]bool)
	for _, a := range accounts {
		byID[a.ID] = true
		if pendingIDs[a.ID] {
			l.accounts.PutPending(a)
		}
	}
	for i := range transactions {
		t := &transactions[i]
		byID[t.ID] = true
		t.SyncStatus = ledger.SyncStatusSynced
		if pendingIDs[t.ID] {
			t.SyncStatus = ledger.SyncStatusPending
			l.transactions.PutPending(*t)
		}
	}
	for id := range pendingIDs {
		if !byID[id] {
			l.transactions.DeletePending(id)
		}
	}

	l.state.Replace(accounts, transactions)
	l.logger.WithFields(logrus.Fields{
		"accounts":     len(accounts),
		"transactions": len(transactions),
		"pendingItems": len(pending),
	}).Info("Ledger.Load.complete")
	return nil
}

// queuedItems lists pending and failed items in the order they were enqueued.
func (l *Ledger) queuedItems(ctx context.Context) ([]syncqueue.SyncItem, error) {
	pending, err := l.queue.Pending(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := l.queue.Failed(ctx)
	if err != nil {
		return nil, err
	}
	items := append(failed, pending...)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.Before(items[j].Timestamp)
	})
	return items, nil
}

func (l *Ledger) fetchAll(ctx context.Context) ([]ledger.Account, []ledger.Transaction, error) {
	var accounts []ledger.Account
	var transactions []ledger.Transaction

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = l.fetchAccounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		transactions, err = l.fetchTransactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return accounts, transactions, nil
}

func (l *Ledger) fetchAccounts(ctx context.Context) ([]ledger.Account, error) {
	docs, err := storage.QueryOnce(ctx, l.store, storage.CollectionAccounts, accountsOrderBy)
	if err != nil {
		return nil, err
	}
	return storage.DecodeAccounts(docs)
}

func (l *Ledger) fetchTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	docs, err := storage.QueryOnce(ctx, l.store, storage.CollectionTransactions, transactionsOrderBy)
	if err != nil {
		return nil, err
	}
	return storage.DecodeTransactions(docs)
}

// overlay applies the writes of queued items, oldest first, to the remote snapshot.
// An item whose writes no longer apply is skipped as a whole.
func overlay(
	accounts []ledger.Account,
	transactions []ledger.Transaction,
	items []syncqueue.SyncItem,
	logger logrus.FieldLogger,
) ([]ledger.Account, []ledger.Transaction, error) {
	docs := make(map[string]storage.Document, len(accounts)+len(transactions))
	for _, a := range accounts {
		doc, err := storage.AccountDocument(a)
		if err != nil {
			return nil, nil, err
		}
		docs[storage.AccountPath(a.ID)] = doc
	}
	for _, t := range transactions {
		doc, err := storage.TransactionDocument(t)
		if err != nil {
			return nil, nil, err
		}
		docs[storage.TransactionPath(t.ID)] = doc
	}

	for _, item := range items {
		staged := maps.Clone(docs)
		if err := storage.ApplyOps(staged, item.Writes); err != nil {
			logger.WithError(err).WithField("syncItemID", item.ID).Warn("Ledger.Load.queued writes do not apply")
			continue
		}
		docs = staged
	}

	var accountDocs, transactionDocs []storage.Document
	for path, doc := range docs {
		switch collection, _ := storage.SplitPath(path); collection {
		case storage.CollectionAccounts:
			accountDocs = append(accountDocs, doc)
		case storage.CollectionTransactions:
			transactionDocs = append(transactionDocs, doc)
		}
	}

	outAccounts, err := storage.DecodeAccounts(accountDocs)
	if err != nil {
		return nil, nil, err
	}
	outTransactions, err := storage.DecodeTransactions(transactionDocs)
	if err != nil {
		return nil, nil, err
	}
	return outAccounts, outTransactions, nil
}

// Start runs the background loops until ctx is done: the remote change streams feeding
// the caches, queue replay on reconnect and backoff, and the recurring scheduler.
func (l *Ledger) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.watch(gctx, storage.CollectionAccounts, accountsOrderBy, func(docs []storage.Document) error {
			accounts, err := storage.DecodeAccounts(docs)
			if err != nil {
				return err
			}
			l.accounts.Refresh(accounts)
			return nil
		})
	})
	g.Go(func() error {
		return l.watch(gctx, storage.CollectionTransactions, transactionsOrderBy, func(docs []storage.Document) error {
			transactions, err := storage.DecodeTransactions(docs)
			if err != nil {
				return err
			}
			l.transactions.Refresh(transactions)
			return nil
		})
	})
	g.Go(func() error {
		return l.queue.Run(gctx, l.connectivity.Reconnected())
	})
	if l.recurringInterval > 0 {
		g.Go(func() error {
			return l.scheduler.Start(gctx, l.recurringInterval)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watch follows one ordered collection, resubscribing with backoff when the stream
// cannot be opened or ends early.
func (l *Ledger) watch(ctx context.Context, collection, orderBy string, apply func([]storage.Document) error) error {
	logger := l.logger.WithField("collection", collection)
	retry := backoff.NewExponentialBackOff()
	retry.MaxElapsedTime = 0

	for {
		stream, err := l.store.QueryOrdered(ctx, collection, orderBy)
		if err != nil {
			logger.WithError(err).Warn("Ledger.watch.subscribe failed")
		} else {
			retry.Reset()
			for docs := range stream {
				if err := apply(docs); err != nil {
					logger.WithError(err).Warn("Ledger.watch.decode failed")
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retry.NextBackOff()):
		}
	}
}

// Submit runs an action through the command pipeline.
func (l *Ledger) Submit(ctx context.Context, action actions.IAction) (operator.Result, error) {
	return l.delegator.Process(ctx, action)
}

func (l *Ledger) Accounts() []ledger.Account { return l.state.Accounts() }

func (l *Ledger) Transactions() []ledger.Transaction { return l.state.Transactions() }

func (l *Ledger) Balance(accountID string) (decimal.Decimal, bool) {
	return l.state.Balance(accountID)
}

// Subscribe streams local state events until the returned func is called or the
// session is closed.
func (l *Ledger) Subscribe(buffer int) (<-chan state.Event, func()) {
	return l.state.Subscribe(buffer)
}

func (l *Ledger) WatchBalance(accountID string) (<-chan decimal.Decimal, func()) {
	return l.state.WatchBalance(accountID)
}

func (l *Ledger) SyncStatus(ctx context.Context) (syncqueue.Status, error) {
	return l.queue.Status(ctx)
}

func (l *Ledger) Replay(ctx context.Context) (syncqueue.ReplayResult, error) {
	return l.queue.ReplayAll(ctx)
}

// Discard drops an abandoned sync item and reverts its writes locally.
func (l *Ledger) Discard(ctx context.Context, id string) (syncqueue.SyncItem, error) {
	return l.pipeline.Discard(ctx, id)
}

// Retry puts an abandoned sync item back in the replay queue.
func (l *Ledger) Retry(ctx context.Context, id string) (syncqueue.SyncItem, error) {
	return l.pipeline.Retry(ctx, id)
}

// SetOnline updates connectivity. Going online wakes the replay loop.
func (l *Ledger) SetOnline(online bool) {
	l.connectivity.SetOnline(online)
}

func (l *Ledger) Online() bool { return l.connectivity.Online() }

// RunRecurring checks every recurring template once.
func (l *Ledger) RunRecurring(ctx context.Context) (recurring.Report, error) {
	return l.scheduler.Run(ctx)
}

// Close stops the workers and ends every subscription. It does not close the store or
// the queue, which the caller opened.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		l.delegator.Stop()
		l.state.Close()
	})
}
