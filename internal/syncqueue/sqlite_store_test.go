package syncqueue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/storage"
)

func openTestSQLite(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	logger, _ := logrustest.NewNullLogger()
	s, err := OpenSQLiteStore(path, logger)
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	s := openTestSQLite(t, path)

	ts := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	item := SyncItem{
		ID:         "item-1",
		Operation:  OperationBatch,
		EntityIDs:  []string{"t1", "acc"},
		Writes:     []storage.Op{setTx("t1", "12.50"), {Kind: storage.OpUpdate, Path: storage.AccountPath("acc"), Data: storage.Document{"balance": "-12.50"}}},
		MaxRetries: 3,
		Timestamp:  ts,
	}
	require.NoError(t, s.Append(ctx, item))
	require.NoError(t, s.Append(ctx, SyncItem{ID: "item-2", Operation: OperationDelete, EntityIDs: []string{"t2"},
		Writes: []storage.Op{{Kind: storage.OpDelete, Path: storage.TransactionPath("t2")}}, MaxRetries: 3, Timestamp: ts}))

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "item-1", pending[0].ID)
	assert.Equal(t, []string{"t1", "acc"}, pending[0].EntityIDs)
	assert.Equal(t, storage.OpUpdate, pending[0].Writes[1].Kind)
	assert.Equal(t, "-12.50", pending[0].Writes[1].Data["balance"])
	assert.True(t, ts.Equal(pending[0].Timestamp))

	item.RetryCount = 2
	item.LastError = "unavailable"
	require.NoError(t, s.Save(ctx, item))
	require.NoError(t, s.MoveToFailed(ctx, item))
	require.NoError(t, s.Remove(ctx, "item-2"))
	require.NoError(t, s.Close())

	// Reopening runs migrations again and keeps the data.
	s = openTestSQLite(t, path)
	defer s.Close()

	pending, err = s.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	failed, err := s.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, 2, failed[0].RetryCount)
	assert.Equal(t, "unavailable", failed[0].LastError)

	require.NoError(t, s.Discard(ctx, "item-1"))
	assert.ErrorIs(t, s.Discard(ctx, "item-1"), ErrItemNotFound)
	assert.ErrorIs(t, s.Remove(ctx, "item-1"), ErrItemNotFound)
}

func TestSQLiteStore_RequeueAndRewrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	s := openTestSQLite(t, path)

	ts := time.Date(2025, 4, 2, 8, 30, 0, 0, time.UTC)
	first := SyncItem{
		ID:         "item-1",
		Operation:  OperationCreate,
		EntityIDs:  []string{"acc", "t1"},
		Writes:     []storage.Op{setTx("t1", "4"), {Kind: storage.OpUpdate, Path: storage.AccountPath("acc"), Data: storage.Document{"balance": "-4"}}},
		MaxRetries: 3,
		Timestamp:  ts,
		Effects:    []AccountEffect{{AccountID: "acc", Balance: decimal.NewFromInt(-4)}},
		Undo:       []storage.Op{{Kind: storage.OpDelete, Path: storage.TransactionPath("t1")}},
	}
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, SyncItem{ID: "item-2", Operation: OperationCreate, EntityIDs: []string{"t2"},
		Writes: []storage.Op{setTx("t2", "1")}, MaxRetries: 3, Timestamp: ts}))

	first.RetryCount = 4
	first.LastError = "rejected"
	require.NoError(t, s.MoveToFailed(ctx, first))
	assert.ErrorIs(t, s.Requeue(ctx, SyncItem{ID: "item-2"}), ErrItemNotFound, "only failed items are requeued")

	first.RetryCount = 0
	first.LastError = ""
	require.NoError(t, s.Requeue(ctx, first))

	first.Writes[1].Data = storage.Document{"balance": "0"}
	first.Effects = nil
	require.NoError(t, s.Rewrite(ctx, first))
	require.NoError(t, s.Close())

	s = openTestSQLite(t, path)
	defer s.Close()

	pending, err := s.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "item-1", pending[0].ID, "requeued item keeps its place")
	assert.Equal(t, 0, pending[0].RetryCount)
	assert.Equal(t, "0", pending[0].Writes[1].Data["balance"])
	assert.Empty(t, pending[0].Effects)
	require.Len(t, pending[0].Undo, 1)
	assert.Equal(t, storage.OpDelete, pending[0].Undo[0].Kind)
	assert.Empty(t, pending[1].Undo)

	assert.ErrorIs(t, s.Rewrite(ctx, SyncItem{ID: "missing"}), ErrItemNotFound)
}
