// Package cache keeps the last remote snapshot of a collection together with locally
// written entities that are not yet confirmed by the store.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

const snapshotKey = "snapshot"

// Fetcher loads the current collection from the store.
type Fetcher[T ledger.Entity] func(ctx context.Context) ([]T, error)

type pendingEntry[T ledger.Entity] struct {
	value   T
	deleted bool
}

// Cache merges a possibly stale remote snapshot with pending local writes.
//
// The snapshot outlives its TTL so offline reads still have something to show;
// the TTL only decides when an online read goes back to the store.
type Cache[T ledger.Entity] struct {
	mu          sync.RWMutex
	snapshot    []T
	hasSnapshot bool

	freshness *gocache.Cache
	pending   *gocache.Cache
}

// New creates a cache whose snapshot is considered fresh for ttl.
func New[T ledger.Entity](ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		freshness: gocache.New(ttl, ttl),
		pending:   gocache.New(gocache.NoExpiration, 0),
	}
}

// Refresh replaces the snapshot and restarts its TTL.
func (c *Cache[T]) Refresh(snapshot []T) {
	c.mu.Lock()
	c.snapshot = append([]T(nil), snapshot...)
	c.hasSnapshot = true
	c.mu.Unlock()

	c.freshness.Set(snapshotKey, time.Now(), gocache.DefaultExpiration)
}

// Invalidate forces the next online read to fetch.
func (c *Cache[T]) Invalidate() {
	c.freshness.Delete(snapshotKey)
}

// Fresh reports whether the snapshot is within its TTL.
func (c *Cache[T]) Fresh() bool {
	_, ok := c.freshness.Get(snapshotKey)
	return ok
}

// Snapshot returns the last snapshot, stale or not.
func (c *Cache[T]) Snapshot() ([]T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]T(nil), c.snapshot...), c.hasSnapshot
}

// MergedView returns online ∪ pending sorted by id. A pending entity replaces the online
// entity with the same id, and a pending delete hides it.
func (c *Cache[T]) MergedView(online []T) []T {
	pending := c.pendingEntries()

	merged := make(map[string]T, len(online)+len(pending))
	for _, item := range online {
		merged[item.EntityID()] = item
	}
	for id, entry := range pending {
		if entry.deleted {
			delete(merged, id)
			continue
		}
		merged[id] = entry.value
	}

	out := make([]T, 0, len(merged))
	for _, item := range merged {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// Read serves the merged view. Offline it uses the last snapshot whatever its age.
// Online it fetches when the snapshot is stale or missing, falling back to the stale
// snapshot if the fetch fails transiently.
func (c *Cache[T]) Read(ctx context.Context, online bool, fetch Fetcher[T]) ([]T, error) {
	snapshot, ok := c.Snapshot()
	if !online || (ok && c.Fresh()) {
		return c.MergedView(snapshot), nil
	}

	fetched, err := fetch(ctx)
	if err != nil {
		if ok && storage.IsTransient(err) {
			return c.MergedView(snapshot), nil
		}
		return nil, err
	}
	c.Refresh(fetched)
	return c.MergedView(fetched), nil
}

// PutPending records a local write that the store has not confirmed.
func (c *Cache[T]) PutPending(item T) {
	c.pending.Set(item.EntityID(), pendingEntry[T]{value: item}, gocache.NoExpiration)
}

// DeletePending records a local delete that the store has not confirmed.
func (c *Cache[T]) DeletePending(id string) {
	c.pending.Set(id, pendingEntry[T]{deleted: true}, gocache.NoExpiration)
}

// ClearPending drops pending entries once their writes are confirmed.
func (c *Cache[T]) ClearPending(ids ...string) {
	for _, id := range ids {
		c.pending.Delete(id)
	}
}

// Pending returns the pending (non-deleted) entities sorted by id.
func (c *Cache[T]) Pending() []T {
	var out []T
	for _, entry := range c.pendingEntries() {
		if !entry.deleted {
			out = append(out, entry.value)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID() < out[j].EntityID() })
	return out
}

// IsPending reports whether id has an unconfirmed local write or delete.
func (c *Cache[T]) IsPending(id string) bool {
	_, ok := c.pending.Get(id)
	return ok
}

func (c *Cache[T]) pendingEntries() map[string]pendingEntry[T] {
	items := c.pending.Items()
	out := make(map[string]pendingEntry[T], len(items))
	for id, item := range items {
		if entry, ok := item.Object.(pendingEntry[T]); ok {
			out[id] = entry
		}
	}
	return out
}
