package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

func TestSyncService_StatusReplayAndConnectivity(t *testing.T) {
	txs, s := newTestService(t)
	svc := NewSyncService(s.Ledger)
	ctx := context.Background()

	status, err := svc.SetOnline(ctx, false)
	require.NoError(t, err)
	assert.False(t, status.Online)

	_, _, err = txs.CreateTransaction(ctx, expense("acc-checking", "3"))
	require.NoError(t, err)

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingCount)

	result, err := svc.Replay(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Synced, 1)

	status, err = svc.SetOnline(ctx, true)
	require.NoError(t, err)
	assert.True(t, status.Online)
	assert.Equal(t, 0, status.PendingCount)
}

func TestSyncService_PermissionFailureIsExhaustedAndDiscardable(t *testing.T) {
	txs, s := newTestService(t)
	svc := NewSyncService(s.Ledger)
	ctx := context.Background()

	s.SetOnline(false)
	_, _, err := txs.CreateTransaction(ctx, expense("acc-checking", "3"))
	require.NoError(t, err)

	s.store.DenyWrites(true)
	result, err := svc.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, result.Exhausted, 1)
	assert.True(t, syncqueue.IsExhausted(result.Err()))
	assert.ErrorIs(t, result.Exhausted[0], storage.ErrPermissionDenied)

	failed, err := svc.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.PendingCount)
	assert.Equal(t, 1, status.FailedCount)
	assert.NotEmpty(t, status.LastError)

	require.NoError(t, svc.Discard(ctx, failed[0].ID))
	failed, err = svc.Failed(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.True(t, balanceOf(t, s, "acc-checking").IsZero(), "discarded expense is reverted")
	assert.ErrorIs(t, svc.Discard(ctx, "missing"), syncqueue.ErrItemNotFound)
}

func TestSyncService_RetryRequeuesFailedItem(t *testing.T) {
	txs, s := newTestService(t)
	svc := NewSyncService(s.Ledger)
	ctx := context.Background()

	s.SetOnline(false)
	_, _, err := txs.CreateTransaction(ctx, expense("acc-checking", "3"))
	require.NoError(t, err)
	s.store.DenyWrites(true)
	result, err := svc.Replay(ctx)
	require.NoError(t, err)
	require.Len(t, result.Exhausted, 1)
	s.store.DenyWrites(false)

	item, err := svc.Retry(ctx, result.Exhausted[0].Item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.RetryCount)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.PendingCount)
	assert.Equal(t, 0, status.FailedCount)

	result, err = svc.Replay(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Synced, 1)
	assert.Equal(t, 1, s.store.Len(storage.CollectionTransactions))
	assert.True(t, balanceOf(t, s, "acc-checking").Equal(decimal.RequireFromString("-3")))
}
