package syncqueue

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an ItemStore that lives only as long as the process.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	pending []SyncItem
	failed  []SyncItem
	seq     map[string]uint64
	next    uint64
	closed  bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seq: make(map[string]uint64)}
}

func (s *MemoryStore) Append(_ context.Context, item SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.next++
	s.seq[item.ID] = s.next
	s.pending = append(s.pending, cloneItem(item))
	return nil
}

func (s *MemoryStore) Pending(_ context.Context) ([]SyncItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.pending), nil
}

func (s *MemoryStore) Save(_ context.Context, item SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.pending, item.ID)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.pending[idx] = cloneItem(item)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.pending, id)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) MoveToFailed(_ context.Context, item SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.pending, item.ID)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.pending = append(s.pending[:idx], s.pending[idx+1:]...)
	s.failed = s.insert(s.failed, cloneItem(item))
	return nil
}

func (s *MemoryStore) Failed(_ context.Context) ([]SyncItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.failed), nil
}

func (s *MemoryStore) Discard(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.failed, id)
	if idx < 0 {
		return ErrItemNotFound
	}
	s.failed = append(s.failed[:idx], s.failed[idx+1:]...)
	delete(s.seq, id)
	return nil
}

func (s *MemoryStore) Requeue(_ context.Context, item SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.failed, item.ID)
	if idx < 0 {
		return ErrItemNotFound
	}
	requeued := s.failed[idx]
	requeued.RetryCount = item.RetryCount
	requeued.LastError = item.LastError
	s.failed = append(s.failed[:idx], s.failed[idx+1:]...)
	s.pending = s.insert(s.pending, requeued)
	return nil
}

func (s *MemoryStore) Rewrite(_ context.Context, item SyncItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range [][]SyncItem{s.pending, s.failed} {
		if idx := indexOf(bucket, item.ID); idx >= 0 {
			rewritten := cloneItem(item)
			bucket[idx].Writes = rewritten.Writes
			bucket[idx].Effects = rewritten.Effects
			bucket[idx].Undo = rewritten.Undo
			return nil
		}
	}
	return ErrItemNotFound
}

// insert places item in bucket by append order.
func (s *MemoryStore) insert(bucket []SyncItem, item SyncItem) []SyncItem {
	at := len(bucket)
	for i, other := range bucket {
		if s.seq[other.ID] > s.seq[item.ID] {
			at = i
			break
		}
	}
	return slices.Insert(bucket, at, item)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func indexOf(items []SyncItem, id string) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func cloneItem(item SyncItem) SyncItem {
	item.EntityIDs = append([]string(nil), item.EntityIDs...)
	item.Writes = append(item.Writes[:0:0], item.Writes...)
	item.Effects = append(item.Effects[:0:0], item.Effects...)
	item.Undo = append(item.Undo[:0:0], item.Undo...)
	return item
}

func cloneItems(items []SyncItem) []SyncItem {
	out := make([]SyncItem, len(items))
	for i, item := range items {
		out[i] = cloneItem(item)
	}
	return out
}
