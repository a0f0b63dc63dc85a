package syncqueue

import "context"

// ItemStore persists queued items. Pending and Failed return items in the order they were
// appended, whichever bucket they moved through.
type ItemStore interface {
	// Append adds a new pending item.
	Append(ctx context.Context, item SyncItem) error

	// Pending lists pending items, oldest first.
	Pending(ctx context.Context) ([]SyncItem, error)

	// Save updates the retry bookkeeping of a pending item.
	Save(ctx context.Context, item SyncItem) error

	// Remove deletes a pending item after a successful replay.
	Remove(ctx context.Context, id string) error

	// MoveToFailed takes a pending item out of replay and into the failed bucket.
	MoveToFailed(ctx context.Context, item SyncItem) error

	// Failed lists abandoned items, oldest first.
	Failed(ctx context.Context) ([]SyncItem, error)

	// Discard deletes an abandoned item.
	Discard(ctx context.Context, id string) error

	// Requeue moves an abandoned item back to pending, in its original position, with the
	// retry bookkeeping of item.
	Requeue(ctx context.Context, item SyncItem) error

	// Rewrite replaces the writes, effects and undo of a pending or abandoned item.
	Rewrite(ctx context.Context, item SyncItem) error

	// Close releases resources.
	Close() error
}
