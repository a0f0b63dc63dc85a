package state

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

func account(id, name, balance string) ledger.Account {
	return ledger.Account{ID: id, Name: name, Type: ledger.AccountTypeBank, Balance: decimal.RequireFromString(balance)}
}

func transaction(id string, day int) ledger.Transaction {
	return ledger.Transaction{
		ID:        id,
		AccountID: "a",
		Type:      ledger.TransactionTypeIncome,
		Amount:    decimal.NewFromInt(1),
		Date:      time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyAndGetters(t *testing.T) {
	s := New()
	s.Apply(storage.Changes{
		Accounts:     []ledger.Account{account("b", "Savings", "10"), account("a", "Checking", "5")},
		Transactions: []ledger.Transaction{transaction("t2", 2), transaction("t1", 1)},
	}, ledger.SyncStatusPending)

	accounts := s.Accounts()
	require.Len(t, accounts, 2)
	assert.Equal(t, "Checking", accounts[0].Name)

	txs := s.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, ledger.SyncStatusPending, txs[0].SyncStatus)

	balance, ok := s.Balance("b")
	assert.True(t, ok)
	assert.True(t, balance.Equal(decimal.NewFromInt(10)))

	s.MarkSynced("t1")
	tx, _ := s.Transaction("t1")
	assert.Equal(t, ledger.SyncStatusSynced, tx.SyncStatus)

	s.Apply(storage.Changes{DeletedTransactions: []string{"t2"}}, ledger.SyncStatusPending)
	_, ok = s.Transaction("t2")
	assert.False(t, ok)
}

func TestReplace(t *testing.T) {
	s := New()
	s.Apply(storage.Changes{Accounts: []ledger.Account{account("old", "Old", "1")}}, ledger.SyncStatusSynced)

	s.Replace([]ledger.Account{account("new", "New", "2")}, nil)
	_, ok := s.Account("old")
	assert.False(t, ok)
	_, ok = s.Account("new")
	assert.True(t, ok)
}

func TestSubscribe(t *testing.T) {
	s := New()
	events, cancel := s.Subscribe(4)

	s.Apply(storage.Changes{Accounts: []ledger.Account{account("a", "A", "1")}}, ledger.SyncStatusPending)
	ev := <-events
	assert.Equal(t, EventChanged, ev.Kind)
	assert.Equal(t, []string{"a"}, ev.AccountIDs)

	cancel()
	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	s := New()
	_, cancel := s.Subscribe(1)
	defer cancel()

	for i := 0; i < 10; i++ {
		s.Apply(storage.Changes{Accounts: []ledger.Account{account("a", "A", "1")}}, ledger.SyncStatusPending)
	}
}

func TestWatchBalance(t *testing.T) {
	s := New()
	s.Apply(storage.Changes{Accounts: []ledger.Account{account("a", "A", "0"), account("b", "B", "0")}}, ledger.SyncStatusSynced)

	balances, cancel := s.WatchBalance("a")
	defer cancel()

	s.Apply(storage.Changes{Accounts: []ledger.Account{account("b", "B", "7")}}, ledger.SyncStatusPending)
	s.Apply(storage.Changes{Accounts: []ledger.Account{account("a", "A", "-100")}}, ledger.SyncStatusPending)

	select {
	case b := <-balances:
		assert.True(t, b.Equal(decimal.NewFromInt(-100)))
	case <-time.After(time.Second):
		t.Fatal("no balance update")
	}
}

func TestClose(t *testing.T) {
	s := New()
	events, _ := s.Subscribe(1)
	s.Close()

	_, open := <-events
	assert.False(t, open)

	late, _ := s.Subscribe(1)
	_, open = <-late
	assert.False(t, open)
}
