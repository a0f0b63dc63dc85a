// Package state holds the local, authoritative view of one ledger: accounts with their
// balances and the transaction log. Commands read it before computing writes and apply
// their changes to it once the write is acknowledged or queued.
package state

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

var _ storage.Reader = (*Store)(nil)

// EventKind says what changed.
type EventKind string

const (
	EventChanged  EventKind = "changed"
	EventReplaced EventKind = "replaced"
	EventSynced   EventKind = "synced"
)

// Event is published to subscribers after every mutation.
type Event struct {
	Kind       EventKind
	AccountIDs []string
	EntityIDs  []string
}

type subscription struct {
	ch chan Event
}

// Store is safe for concurrent use. Getters return copies.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]ledger.Account
	transactions map[string]ledger.Transaction

	subMu  sync.Mutex
	subs   map[int]*subscription
	nextID int
	closed bool
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]ledger.Account),
		transactions: make(map[string]ledger.Transaction),
		subs:         make(map[int]*subscription),
	}
}

// Account returns the account with id.
func (s *Store) Account(id string) (ledger.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	return a, ok
}

// Accounts returns every account ordered by name, then id.
func (s *Store) Accounts() []ledger.Account {
	s.mu.RLock()
	out := make([]ledger.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Transaction returns the transaction with id.
func (s *Store) Transaction(id string) (ledger.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.transactions[id]
	return t, ok
}

// Transactions returns every transaction ordered by date, then id.
func (s *Store) Transactions() []ledger.Transaction {
	s.mu.RLock()
	out := make([]ledger.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Balance returns the cached balance of an account.
func (s *Store) Balance(accountID string) (decimal.Decimal, bool) {
	a, ok := s.Account(accountID)
	return a.Balance, ok
}

// Apply writes the final state of a unit of work. Transactions are marked pending until
// MarkSynced is called for them.
func (s *Store) Apply(changes storage.Changes, status ledger.SyncStatus) {
	s.mu.Lock()
	accountIDs := make([]string, 0, len(changes.Accounts))
	for _, a := range changes.Accounts {
		s.accounts[a.ID] = a
		accountIDs = append(accountIDs, a.ID)
	}
	for _, id := range changes.DeletedAccounts {
		delete(s.accounts, id)
		accountIDs = append(accountIDs, id)
	}
	for _, t := range changes.Transactions {
		t.SyncStatus = status
		s.transactions[t.ID] = t
	}
	for _, id := range changes.DeletedTransactions {
		delete(s.transactions, id)
	}
	s.mu.Unlock()

	s.publish(Event{Kind: EventChanged, AccountIDs: accountIDs, EntityIDs: changes.EntityIDs()})
}

// MarkSynced flags transactions as confirmed by the store.
func (s *Store) MarkSynced(ids ...string) {
	s.mu.Lock()
	for _, id := range ids {
		if t, ok := s.transactions[id]; ok {
			t.SyncStatus = ledger.SyncStatusSynced
			s.transactions[id] = t
		}
	}
	s.mu.Unlock()

	s.publish(Event{Kind: EventSynced, EntityIDs: ids})
}

// Replace swaps in a full snapshot.
func (s *Store) Replace(accounts []ledger.Account, transactions []ledger.Transaction) {
	s.mu.Lock()
	s.accounts = make(map[string]ledger.Account, len(accounts))
	accountIDs := make([]string, 0, len(accounts))
	for _, a := range accounts {
		s.accounts[a.ID] = a
		accountIDs = append(accountIDs, a.ID)
	}
	s.transactions = make(map[string]ledger.Transaction, len(transactions))
	for _, t := range transactions {
		s.transactions[t.ID] = t
	}
	s.mu.Unlock()

	s.publish(Event{Kind: EventReplaced, AccountIDs: accountIDs})
}

// Subscribe returns a channel of events and a func that cancels the subscription.
// A slow subscriber misses events rather than blocking writers; buffer sets how many
// events it may fall behind.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan Event, buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = &subscription{ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if sub, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(sub.ch)
			}
		})
	}
}

// WatchBalance delivers the balance of accountID after every event that touches it.
func (s *Store) WatchBalance(accountID string) (<-chan decimal.Decimal, func()) {
	events, cancel := s.Subscribe(16)
	out := make(chan decimal.Decimal, 1)

	go func() {
		defer close(out)
		for ev := range events {
			if ev.Kind == EventSynced || !touches(ev, accountID) {
				continue
			}
			balance, ok := s.Balance(accountID)
			if !ok {
				continue
			}
			// Keep only the latest balance for a slow reader.
			select {
			case <-out:
			default:
			}
			out <- balance
		}
	}()
	return out, cancel
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (s *Store) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
}

func (s *Store) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func touches(ev Event, accountID string) bool {
	if ev.Kind == EventReplaced {
		return true
	}
	for _, id := range ev.AccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}
