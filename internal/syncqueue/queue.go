// Package syncqueue is the durable queue of writes that could not reach the document store.
package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/uuid/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/carson-networks/budget-ledger/internal/storage"
)

// BatchWriter is the part of the document store the queue replays into.
type BatchWriter interface {
	BatchWrite(ctx context.Context, ops []storage.Op) error
}

// ReplayResult reports what one ReplayAll pass did with each pending item.
type ReplayResult struct {
	Synced    []string
	Retrying  []string
	Held      []string
	Exhausted []*ExhaustedRetryError
}

// Err joins the exhausted items into one error, or returns nil.
func (r ReplayResult) Err() error {
	errs := make([]error, len(r.Exhausted))
	for i, e := range r.Exhausted {
		errs[i] = e
	}
	return errors.Join(errs...)
}

type Option func(*Queue)

// WithMaxRetries sets the retry limit stamped on new items.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

// WithRateLimit paces replay writes to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(q *Queue) {
		if perSecond <= 0 {
			q.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithClock replaces time.Now for item timestamps.
func WithClock(clock func() time.Time) Option {
	return func(q *Queue) { q.clock = clock }
}

// WithOnSynced registers a callback invoked after each item is written successfully.
func WithOnSynced(fn func(SyncItem)) Option {
	return func(q *Queue) { q.onSynced = fn }
}

// WithReplayInterval sets the initial delay of the background retry schedule.
func WithReplayInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.replayInterval = d
		}
	}
}

// Queue replays queued writes in FIFO order, preserving per-entity order.
type Queue struct {
	store  ItemStore
	writer BatchWriter
	logger logrus.FieldLogger

	limiter        *rate.Limiter
	maxRetries     int
	replayInterval time.Duration
	clock          func() time.Time
	onSynced       func(SyncItem)
	onDiscarded    func(discarded SyncItem, remaining []SyncItem)
	online         func() bool

	// replayMu serializes replay passes and enqueues so a pass never races a new item
	// for the same entity.
	replayMu sync.Mutex

	statusMu  sync.RWMutex
	lastError string
}

// New creates a Queue over store that replays into writer.
func New(store ItemStore, writer BatchWriter, logger logrus.FieldLogger, opts ...Option) *Queue {
	q := &Queue{
		store:          store,
		writer:         writer,
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Inf, 0),
		maxRetries:     DefaultMaxRetries,
		replayInterval: 30 * time.Second,
		clock:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SetOnSynced replaces the success callback. It must be called before replay starts.
func (q *Queue) SetOnSynced(fn func(SyncItem)) {
	q.onSynced = fn
}

// SetOnDiscarded registers a callback invoked after Discard drops an item, with the items
// still queued once they have been rebased. It runs before Discard returns and must be set
// before the queue is used.
func (q *Queue) SetOnDiscarded(fn func(discarded SyncItem, remaining []SyncItem)) {
	q.onDiscarded = fn
}

// SetOnlineCheck makes Run skip its scheduled passes while fn reports the store as
// unreachable, so items are not charged retries during a known outage. Triggered passes
// always run.
func (q *Queue) SetOnlineCheck(fn func() bool) {
	q.online = fn
}

// Enqueue appends item durably and returns it with its id, timestamp and retry limit filled in.
func (q *Queue) Enqueue(ctx context.Context, item SyncItem) (SyncItem, error) {
	return q.EnqueueThen(ctx, item, nil)
}

// EnqueueThen is Enqueue with apply run on the stored item before any replay pass can
// see it, so local state marked pending by apply is in place when the item syncs.
func (q *Queue) EnqueueThen(ctx context.Context, item SyncItem, apply func(SyncItem)) (SyncItem, error) {
	if len(item.Writes) == 0 {
		return SyncItem{}, errors.New("sync item has no writes")
	}
	if item.ID == "" {
		item.ID = uuid.Must(uuid.NewV4()).String()
	}
	if item.Timestamp.IsZero() {
		item.Timestamp = q.clock()
	}
	if item.MaxRetries == 0 {
		item.MaxRetries = q.maxRetries
	}
	item.RetryCount = 0
	item.LastError = ""

	q.replayMu.Lock()
	defer q.replayMu.Unlock()
	if err := q.store.Append(ctx, item); err != nil {
		return SyncItem{}, err
	}
	if apply != nil {
		apply(item)
	}

	q.logger.WithFields(logrus.Fields{
		"syncItemID": item.ID,
		"operation":  item.Operation,
		"entityIDs":  item.EntityIDs,
	}).Info("Queue.Enqueue.queued")
	return item, nil
}

// Blocks reports whether a pending or failed item touches any of ids. A new write for such
// an entity has to queue behind it rather than go straight to the store, since its
// absolute values include the queued item's effects.
func (q *Queue) Blocks(ctx context.Context, ids []string) (bool, error) {
	pending, err := q.store.Pending(ctx)
	if err != nil {
		return false, err
	}
	failed, err := q.store.Failed(ctx)
	if err != nil {
		return false, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, item := range append(pending, failed...) {
		if item.Touches(set) {
			return true, nil
		}
	}
	return false, nil
}

// ReplayAll attempts every pending item once, oldest first.
//
// An item sharing an entity with a failed item, or with an item that failed or was held
// earlier in the pass, is held back without being charged a retry. A transient failure ends the pass, since the store is
// unreachable, and the remaining items are held. The returned error is non-nil only when
// the queue itself could not be read or updated; abandoned items are in the result.
func (q *Queue) ReplayAll(ctx context.Context) (ReplayResult, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	var res ReplayResult
	items, err := q.store.Pending(ctx)
	if err != nil {
		return res, err
	}
	failed, err := q.store.Failed(ctx)
	if err != nil {
		return res, err
	}

	blocked := make(map[string]bool)
	block := func(item SyncItem) {
		for _, id := range item.EntityIDs {
			blocked[id] = true
		}
	}
	for _, item := range failed {
		block(item)
	}

	stopped := false
	for _, item := range items {
		if stopped || item.Touches(blocked) {
			res.Held = append(res.Held, item.ID)
			block(item)
			continue
		}
		if err := q.limiter.Wait(ctx); err != nil {
			return res, err
		}

		writeErr := q.writer.BatchWrite(ctx, item.Writes)
		if writeErr == nil {
			if err := q.store.Remove(ctx, item.ID); err != nil {
				return res, err
			}
			res.Synced = append(res.Synced, item.ID)
			q.logger.WithField("syncItemID", item.ID).Info("Queue.ReplayAll.synced")
			if q.onSynced != nil {
				q.onSynced(item)
			}
			continue
		}

		block(item)

		markErr := q.markFailed(ctx, item, writeErr)
		var exhausted *ExhaustedRetryError
		switch {
		case errors.As(markErr, &exhausted):
			res.Exhausted = append(res.Exhausted, exhausted)
		case markErr != nil:
			return res, markErr
		default:
			res.Retrying = append(res.Retrying, item.ID)
		}

		if storage.IsTransient(writeErr) {
			stopped = true
		}
	}

	if len(res.Synced) > 0 && len(res.Retrying) == 0 && len(res.Exhausted) == 0 && len(res.Held) == 0 {
		q.setLastError("")
	}
	return res, nil
}

// MarkFailed charges item one retry for cause. Once RetryCount exceeds MaxRetries, or when
// cause is a permission failure, the item moves to the failed bucket and an
// *ExhaustedRetryError is returned.
func (q *Queue) MarkFailed(ctx context.Context, item SyncItem, cause error) error {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()
	return q.markFailed(ctx, item, cause)
}

func (q *Queue) markFailed(ctx context.Context, item SyncItem, cause error) error {
	item.RetryCount++
	item.LastError = cause.Error()
	q.setLastError(item.LastError)

	logger := q.logger.WithFields(logrus.Fields{
		"syncItemID": item.ID,
		"retryCount": item.RetryCount,
		"maxRetries": item.MaxRetries,
	}).WithError(cause)

	if storage.IsPermission(cause) || item.RetryCount > item.MaxRetries {
		if err := q.store.MoveToFailed(ctx, item); err != nil {
			return err
		}
		logger.Error("Queue.MarkFailed.exhausted")
		return &ExhaustedRetryError{Item: item, Cause: cause}
	}

	if err := q.store.Save(ctx, item); err != nil {
		return err
	}
	logger.Warn("Queue.MarkFailed.retrying")
	return nil
}

// Pending lists queued items, oldest first.
func (q *Queue) Pending(ctx context.Context) ([]SyncItem, error) {
	return q.store.Pending(ctx)
}

// Failed lists abandoned items awaiting manual intervention.
func (q *Queue) Failed(ctx context.Context) ([]SyncItem, error) {
	return q.store.Failed(ctx)
}

// Retry moves an abandoned item back to the pending queue with a fresh retry budget. It
// keeps its place in FIFO order.
func (q *Queue) Retry(ctx context.Context, id string) (SyncItem, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	item, err := q.findFailed(ctx, id)
	if err != nil {
		return SyncItem{}, err
	}
	item.RetryCount = 0
	item.LastError = ""
	if err := q.store.Requeue(ctx, item); err != nil {
		return SyncItem{}, fmt.Errorf("retry %s: %w", id, err)
	}
	q.logger.WithField("syncItemID", id).Info("Queue.Retry.requeued")
	return item, nil
}

// Discard drops an abandoned item. Later items on the same entities were built on top of
// its writes, so they are rebased to no longer carry its effects before the discard hook
// runs.
func (q *Queue) Discard(ctx context.Context, id string) (SyncItem, error) {
	q.replayMu.Lock()
	defer q.replayMu.Unlock()

	item, err := q.findFailed(ctx, id)
	if err != nil {
		return SyncItem{}, err
	}
	if err := q.store.Discard(ctx, id); err != nil {
		return SyncItem{}, fmt.Errorf("discard %s: %w", id, err)
	}

	remaining, err := q.rebaseAfter(ctx, item)
	if err != nil {
		return SyncItem{}, err
	}
	q.logger.WithFields(logrus.Fields{
		"syncItemID": id,
		"entityIDs":  item.EntityIDs,
	}).Warn("Queue.Discard.discarded")

	if q.onDiscarded != nil {
		q.onDiscarded(item, remaining)
	}
	return item, nil
}

func (q *Queue) findFailed(ctx context.Context, id string) (SyncItem, error) {
	failed, err := q.store.Failed(ctx)
	if err != nil {
		return SyncItem{}, err
	}
	for _, item := range failed {
		if item.ID == id {
			return item, nil
		}
	}
	return SyncItem{}, fmt.Errorf("sync item %s: %w", id, ErrItemNotFound)
}

// rebaseAfter rewrites every queued item sharing an entity with discarded and returns all
// items still queued, pending first.
func (q *Queue) rebaseAfter(ctx context.Context, discarded SyncItem) ([]SyncItem, error) {
	pending, err := q.store.Pending(ctx)
	if err != nil {
		return nil, err
	}
	failed, err := q.store.Failed(ctx)
	if err != nil {
		return nil, err
	}

	touched := make(map[string]bool, len(discarded.EntityIDs))
	for _, id := range discarded.EntityIDs {
		touched[id] = true
	}
	remaining := append(pending, failed...)
	for n, item := range remaining {
		if !item.Touches(touched) {
			continue
		}
		rebased, err := item.rebase(discarded)
		if err != nil {
			return nil, err
		}
		if err := q.store.Rewrite(ctx, rebased); err != nil {
			return nil, fmt.Errorf("rebase %s: %w", item.ID, err)
		}
		remaining[n] = rebased
	}
	return remaining, nil
}

// Status counts pending and failed items.
func (q *Queue) Status(ctx context.Context) (Status, error) {
	pending, err := q.store.Pending(ctx)
	if err != nil {
		return Status{}, err
	}
	failed, err := q.store.Failed(ctx)
	if err != nil {
		return Status{}, err
	}

	q.statusMu.RLock()
	defer q.statusMu.RUnlock()
	return Status{PendingCount: len(pending), FailedCount: len(failed), LastError: q.lastError}, nil
}

// Run replays whenever trigger fires and, while items remain after a pass, again on an
// exponential backoff schedule. It returns when ctx is done.
func (q *Queue) Run(ctx context.Context, trigger <-chan struct{}) error {
	retry := q.newBackOff()
	timer := time.NewTimer(retry.NextBackOff())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-trigger:
			retry.Reset()
		case <-timer.C:
			if q.online != nil && !q.online() {
				timer.Reset(q.replayInterval)
				continue
			}
		}

		res, err := q.ReplayAll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			q.logger.WithError(err).Error("Queue.Run.replay failed")
		} else if len(res.Synced)+len(res.Retrying)+len(res.Held)+len(res.Exhausted) > 0 {
			q.logger.WithFields(logrus.Fields{
				"synced":    len(res.Synced),
				"retrying":  len(res.Retrying),
				"held":      len(res.Held),
				"exhausted": len(res.Exhausted),
			}).Info("Queue.Run.replayed")
		}

		remaining := len(res.Retrying) + len(res.Held)
		next := q.replayInterval
		if err != nil || remaining > 0 {
			next = retry.NextBackOff()
		} else {
			retry.Reset()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

func (q *Queue) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(time.Second, q.replayInterval)
	b.MaxInterval = q.replayInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (q *Queue) setLastError(msg string) {
	q.statusMu.Lock()
	q.lastError = msg
	q.statusMu.Unlock()
}
