// Package memstore is an in-memory document store with change notifications and fault injection.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/carson-networks/budget-ledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

type subscriber struct {
	collection string
	orderBy    string
	ch         chan []storage.Document
}

// Store keeps documents in a map keyed by path.
type Store struct {
	mu     sync.Mutex
	docs   map[string]storage.Document
	subs   map[int]*subscriber
	nextID int

	offline    bool
	denyWrites bool
	dropAcks   int
	writes     int
}

func New() *Store {
	return &Store{
		docs: make(map[string]storage.Document),
		subs: make(map[int]*subscriber),
	}
}

// SetOffline makes every call fail with storage.ErrUnavailable.
func (s *Store) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// DenyWrites makes writes fail with storage.ErrPermissionDenied.
func (s *Store) DenyWrites(deny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyWrites = deny
}

// DropAcks commits the next n writes and then reports them as unavailable,
// like a write that succeeded but whose acknowledgement was lost.
func (s *Store) DropAcks(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAcks = n
}

// Writes returns the number of committed write calls.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Len returns the number of documents in a collection.
func (s *Store) Len(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for path := range s.docs {
		if c, _ := storage.SplitPath(path); c == collection {
			n++
		}
	}
	return n
}

func (s *Store) Get(ctx context.Context, path string) (storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, storage.ErrUnavailable
	}
	doc, ok := s.docs[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, storage.ErrNotFound)
	}
	return copyDoc(doc), nil
}

func (s *Store) Set(ctx context.Context, path string, doc storage.Document) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpSet, Path: path, Data: doc}})
}

func (s *Store) Update(ctx context.Context, path string, patch storage.Document) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpUpdate, Path: path, Data: patch}})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpDelete, Path: path}})
}

// BatchWrite applies ops to a copy and swaps it in, so a failing op leaves nothing behind.
func (s *Store) BatchWrite(ctx context.Context, ops []storage.Op) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return storage.ErrUnavailable
	}
	if s.denyWrites {
		return storage.ErrPermissionDenied
	}

	next := make(map[string]storage.Document, len(s.docs))
	for k, v := range s.docs {
		next[k] = v
	}
	if err := storage.ApplyOps(next, ops); err != nil {
		return err
	}
	s.docs = next
	s.writes++

	changed := make(map[string]bool)
	for _, op := range ops {
		c, _ := storage.SplitPath(op.Path)
		changed[c] = true
	}
	for _, sub := range s.subs {
		if changed[sub.collection] {
			s.push(sub)
		}
	}

	if s.dropAcks > 0 {
		s.dropAcks--
		return storage.ErrUnavailable
	}
	return nil
}

// QueryOrdered pushes the collection sorted by the orderBy field (then path) on every change.
func (s *Store) QueryOrdered(ctx context.Context, collection, orderBy string) (<-chan []storage.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offline {
		return nil, storage.ErrUnavailable
	}

	id := s.nextID
	s.nextID++
	sub := &subscriber{collection: collection, orderBy: orderBy, ch: make(chan []storage.Document, 1)}
	s.subs[id] = sub
	s.push(sub)

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(sub.ch)
		s.mu.Unlock()
	}()
	return sub.ch, nil
}

// push replaces any undelivered snapshot with the latest one. Callers hold s.mu.
func (s *Store) push(sub *subscriber) {
	snapshot := s.collect(sub.collection, sub.orderBy)
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snapshot
}

func (s *Store) collect(collection, orderBy string) []storage.Document {
	type entry struct {
		path string
		doc  storage.Document
	}
	var entries []entry
	for path, doc := range s.docs {
		if c, _ := storage.SplitPath(path); c == collection {
			entries = append(entries, entry{path, copyDoc(doc)})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := fmt.Sprint(entries[i].doc[orderBy]), fmt.Sprint(entries[j].doc[orderBy])
		if a != b {
			return a < b
		}
		return entries[i].path < entries[j].path
	})
	out := make([]storage.Document, len(entries))
	for i, e := range entries {
		out[i] = e.doc
	}
	return out
}

func copyDoc(doc storage.Document) storage.Document {
	out := make(storage.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
