package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/storage/memstore"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

func newAccountTestService(t *testing.T) (*AccountService, *testSession) {
	t.Helper()
	s := newTestSession(t, memstore.New(), syncqueue.NewMemoryStore(), Options{})
	require.NoError(t, s.Load(context.Background()))
	return NewAccountService(s.Ledger), s
}

// -- CreateAccount tests --

func TestCreateAccount_Success(t *testing.T) {
	svc, s := newAccountTestService(t)

	account, res, err := svc.CreateAccount(context.Background(), NewAccount{
		Name:            "Checking",
		Type:            ledger.AccountTypeBank,
		StartingBalance: decimal.RequireFromString("250.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "ack", string(res.Status))
	assert.NotEmpty(t, account.ID)
	assert.True(t, account.Balance.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, 1, s.store.Len(storage.CollectionAccounts))
}

func TestCreateAccount_Loan(t *testing.T) {
	svc, _ := newAccountTestService(t)

	account, _, err := svc.CreateAccount(context.Background(), NewAccount{
		Name:       "Car loan",
		Type:       ledger.AccountTypeLoan,
		LoanAmount: decimal.RequireFromString("25000"),
	})

	require.NoError(t, err)
	require.NotNil(t, account.Loan)
	assert.True(t, account.Loan.RemainingBalance.Equal(decimal.RequireFromString("25000")))
}

func TestCreateAccount_ValidationError(t *testing.T) {
	svc, s := newAccountTestService(t)

	_, _, err := svc.CreateAccount(context.Background(), NewAccount{Type: ledger.AccountTypeBank})

	assert.True(t, ledger.IsValidation(err))
	assert.Equal(t, 0, s.store.Len(storage.CollectionAccounts))
}

func TestCreateAccount_PermissionDenied(t *testing.T) {
	svc, s := newAccountTestService(t)
	s.store.DenyWrites(true)

	_, _, err := svc.CreateAccount(context.Background(), NewAccount{Name: "Cash", Type: ledger.AccountTypeCash})

	assert.ErrorIs(t, err, storage.ErrPermissionDenied)
	assert.Empty(t, s.Accounts())
}

// -- GetAccount tests --

func TestGetAccount_NotFound(t *testing.T) {
	svc, _ := newAccountTestService(t)

	_, err := svc.GetAccount(context.Background(), "missing")

	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// -- ListAccounts tests --

func TestListAccounts_Pagination(t *testing.T) {
	svc, _ := newAccountTestService(t)
	for i := 0; i < 5; i++ {
		_, _, err := svc.CreateAccount(context.Background(), NewAccount{
			Name: fmt.Sprintf("Account %d", i),
			Type: ledger.AccountTypeCash,
		})
		require.NoError(t, err)
	}

	page, next, err := svc.ListAccounts(context.Background(), &AccountCursor{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "Account 0", page[0].Name)
	require.NotNil(t, next)
	assert.Equal(t, AccountCursor{Position: 2, Limit: 2}, *next)

	page, next, err = svc.ListAccounts(context.Background(), &AccountCursor{Position: 4, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "Account 4", page[0].Name)
	assert.Nil(t, next)
}

func TestListAccounts_EmptyReturnsNil(t *testing.T) {
	svc, _ := newAccountTestService(t)

	page, next, err := svc.ListAccounts(context.Background(), nil)

	assert.NoError(t, err)
	assert.Nil(t, page)
	assert.Nil(t, next)
}
