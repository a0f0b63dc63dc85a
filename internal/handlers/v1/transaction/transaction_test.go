package transaction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

type mockTransactionService struct {
	mock.Mock
}

func (m *mockTransactionService) CreateTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, operator.Result, error) {
	args := m.Called(ctx, transaction)
	created, _ := args.Get(0).(ledger.Transaction)
	res, _ := args.Get(1).(operator.Result)
	return created, res, args.Error(2)
}

func (m *mockTransactionService) UpdateTransaction(ctx context.Context, transaction ledger.Transaction) (operator.Result, error) {
	args := m.Called(ctx, transaction)
	res, _ := args.Get(0).(operator.Result)
	return res, args.Error(1)
}

func (m *mockTransactionService) DeleteTransaction(ctx context.Context, id string) (operator.Result, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(operator.Result)
	return res, args.Error(1)
}

func (m *mockTransactionService) TransferTransaction(ctx context.Context, id, toAccountID string) (operator.Result, error) {
	args := m.Called(ctx, id, toAccountID)
	res, _ := args.Get(0).(operator.Result)
	return res, args.Error(1)
}

func (m *mockTransactionService) BatchCreate(ctx context.Context, transactions []ledger.Transaction) ([]ledger.Transaction, operator.Result, error) {
	args := m.Called(ctx, transactions)
	created, _ := args.Get(0).([]ledger.Transaction)
	res, _ := args.Get(1).(operator.Result)
	return created, res, args.Error(2)
}

func (m *mockTransactionService) ListTransactions(ctx context.Context, cursor *service.TransactionCursor) ([]ledger.Transaction, *service.TransactionCursor, error) {
	args := m.Called(ctx, cursor)
	txs, _ := args.Get(0).([]ledger.Transaction)
	next, _ := args.Get(1).(*service.TransactionCursor)
	return txs, next, args.Error(2)
}

func newTestAPI(t *testing.T, svc *mockTransactionService) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewCreateTransactionHandler(svc).Register(api)
	NewUpdateTransactionHandler(svc).Register(api)
	NewDeleteTransactionHandler(svc).Register(api)
	NewTransferTransactionHandler(svc).Register(api)
	NewBatchCreateHandler(svc).Register(api)
	NewListTransactionsHandler(svc).Register(api)
	return api
}

var (
	txDate    = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)
	createdAt = time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)
)

func sampleTransaction(id string) ledger.Transaction {
	return ledger.Transaction{
		ID:         id,
		AccountID:  "acc-1",
		CategoryID: "food",
		Payee:      "Market",
		Type:       ledger.TransactionTypeExpense,
		Amount:     decimal.RequireFromString("123.45"),
		Date:       txDate,
		CreatedAt:  createdAt,
		SyncStatus: ledger.SyncStatusSynced,
	}
}

// -- parseTransactionBody unit tests --

func TestParseTransactionBody_ValidInput(t *testing.T) {
	tx, err := parseTransactionBody(TransactionBody{
		AccountID:  "acc-1",
		CategoryID: "food",
		Payee:      "Market",
		Type:       "expense",
		Amount:     "123.45",
		Date:       "2025-01-15T10:30:00Z",
	}, time.Now())

	require.NoError(t, err)
	assert.Equal(t, "acc-1", tx.AccountID)
	assert.Equal(t, ledger.TransactionTypeExpense, tx.Type)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("123.45")))
	assert.True(t, tx.Date.Equal(txDate))
	assert.Nil(t, tx.Schedule)
}

func TestParseTransactionBody_DefaultsDateToNow(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tx, err := parseTransactionBody(TransactionBody{AccountID: "a", Type: "income", Amount: "1"}, now)

	require.NoError(t, err)
	assert.Equal(t, now, tx.Date)
}

func TestParseTransactionBody_Schedule(t *testing.T) {
	tx, err := parseTransactionBody(TransactionBody{
		AccountID: "a",
		Type:      "expense",
		Amount:    "15",
		Date:      "2024-01-31T00:00:00Z",
		Schedule: &Schedule{
			Interval:       "monthly",
			NextOccurrence: "2024-01-31T00:00:00Z",
			EndDate:        "2024-02-15T00:00:00Z",
		},
	}, time.Now())

	require.NoError(t, err)
	require.NotNil(t, tx.Schedule)
	assert.Equal(t, ledger.Monthly, tx.Schedule.Interval)
	require.NotNil(t, tx.Schedule.EndDate)
	assert.Equal(t, 15, tx.Schedule.EndDate.Day())
}

func TestParseTransactionBody_InvalidInput(t *testing.T) {
	tests := map[string]TransactionBody{
		"amount":         {AccountID: "a", Type: "expense", Amount: "ten"},
		"date":           {AccountID: "a", Type: "expense", Amount: "1", Date: "yesterday"},
		"nextOccurrence": {AccountID: "a", Type: "expense", Amount: "1", Schedule: &Schedule{Interval: "daily"}},
		"endDate": {AccountID: "a", Type: "expense", Amount: "1", Schedule: &Schedule{
			Interval: "daily", NextOccurrence: "2024-01-01T00:00:00Z", EndDate: "soon",
		}},
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseTransactionBody(body, time.Now())
			assert.Error(t, err)
		})
	}
}

// -- Create --

func TestCreateTransaction_Created(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(tx ledger.Transaction) bool {
		return tx.AccountID == "acc-1" && tx.Amount.Equal(decimal.RequireFromString("123.45")) && tx.Date.Equal(txDate)
	})).Return(sampleTransaction("tx-1"), operator.Result{Status: operator.StatusAck, EntityIDs: []string{"acc-1", "tx-1"}}, nil)

	resp := api.Post("/v1/transaction", map[string]any{
		"accountId":  "acc-1",
		"categoryId": "food",
		"payee":      "Market",
		"type":       "expense",
		"amount":     "123.45",
		"date":       "2025-01-15T10:30:00Z",
	})

	require.Equal(t, http.StatusCreated, resp.Code)
	var body CreateTransactionResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "ack", body.Status)
	assert.Equal(t, "tx-1", body.Transaction.ID)
	assert.Equal(t, "123.45", body.Transaction.Amount)
	assert.Equal(t, "synced", body.Transaction.SyncStatus)
	svc.AssertExpectations(t)
}

func TestCreateTransaction_ValidationError(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("CreateTransaction", mock.Anything, mock.Anything).
		Return(nil, nil, &ledger.ValidationError{Field: "amount", Reason: "must be greater than zero"})

	resp := api.Post("/v1/transaction", map[string]any{"accountId": "acc-1", "type": "expense", "amount": "0"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateTransaction_BadAmount(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	resp := api.Post("/v1/transaction", map[string]any{"accountId": "acc-1", "type": "expense", "amount": "lots"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestCreateTransaction_ServiceError(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, nil, errors.New("queue write failed"))

	resp := api.Post("/v1/transaction", map[string]any{"accountId": "acc-1", "type": "expense", "amount": "1"})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

// -- Update, delete, transfer --

func TestUpdateTransaction_UsesPathID(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("UpdateTransaction", mock.Anything, mock.MatchedBy(func(tx ledger.Transaction) bool {
		return tx.ID == "tx-9" && tx.AccountID == "acc-2"
	})).Return(operator.Result{Status: operator.StatusQueued, SyncItemID: "item"}, nil)

	resp := api.Put("/v1/transaction/tx-9", map[string]any{"accountId": "acc-2", "type": "income", "amount": "5"})

	require.Equal(t, http.StatusOK, resp.Code)
	var body handlers.WriteResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "queued", body.Status)
	assert.Equal(t, "item", body.SyncItemID)
}

func TestDeleteTransaction_NotFound(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("DeleteTransaction", mock.Anything, "gone").
		Return(nil, fmt.Errorf("transaction gone: %w", storage.ErrNotFound))

	resp := api.Delete("/v1/transaction/gone")

	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTransferTransaction_PermissionDenied(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("TransferTransaction", mock.Anything, "tx-1", "acc-2").
		Return(nil, fmt.Errorf("update: %w", storage.ErrPermissionDenied))

	resp := api.Post("/v1/transaction/tx-1/transfer", map[string]any{"toAccountId": "acc-2"})

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

// -- Batch --

func TestBatchCreate_Created(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("BatchCreate", mock.Anything, mock.MatchedBy(func(txs []ledger.Transaction) bool {
		return len(txs) == 2 && txs[1].Type == ledger.TransactionTypeIncome
	})).Return([]ledger.Transaction{sampleTransaction("a"), sampleTransaction("b")}, operator.Result{Status: operator.StatusAck}, nil)

	resp := api.Post("/v1/transaction/batch", map[string]any{
		"transactions": []map[string]any{
			{"accountId": "acc-1", "type": "expense", "amount": "1"},
			{"accountId": "acc-1", "type": "income", "amount": "2"},
		},
	})

	require.Equal(t, http.StatusCreated, resp.Code)
	var body BatchCreateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body.Transactions, 2)
}

func TestBatchCreate_BadEntry(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	resp := api.Post("/v1/transaction/batch", map[string]any{
		"transactions": []map[string]any{
			{"accountId": "acc-1", "type": "expense", "amount": "x"},
		},
	})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	svc.AssertNotCalled(t, "BatchCreate", mock.Anything, mock.Anything)
}

// -- List --

func TestParseListTransactionsInput_NoCursor(t *testing.T) {
	cursor, err := parseListTransactionsInput(&ListTransactionsInput{})

	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestParseListTransactionsInput_WithCursor(t *testing.T) {
	cursor, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{Cursor: &ListTransactionsCursor{
			Position:        40,
			Limit:           10,
			MaxCreationTime: "2025-06-15T08:00:00Z",
		}},
	})

	require.NoError(t, err)
	assert.Equal(t, 40, cursor.Position)
	assert.Equal(t, 10, cursor.Limit)
	assert.True(t, cursor.MaxCreationTime.Equal(time.Date(2025, 6, 15, 8, 0, 0, 0, time.UTC)))
}

func TestParseListTransactionsInput_InvalidMaxCreationTime(t *testing.T) {
	_, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{Cursor: &ListTransactionsCursor{Limit: 10, MaxCreationTime: "not-a-date"}},
	})

	assert.Error(t, err)
}

func TestParseListTransactionsInput_FilterWithoutCursor(t *testing.T) {
	cursor, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{AccountID: "acc-1", Status: "pending"},
	})

	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, 0, cursor.Position)
	assert.True(t, cursor.MaxCreationTime.IsZero())
	assert.Equal(t, service.TransactionFilter{AccountID: "acc-1", Status: ledger.SyncStatusPending}, cursor.Filter)
}

func TestParseListTransactionsInput_CursorCarriesFilter(t *testing.T) {
	cursor, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{
			AccountID: "ignored",
			Cursor: &ListTransactionsCursor{
				Position:        20,
				Limit:           20,
				MaxCreationTime: "2025-06-15T08:00:00Z",
				AccountID:       "acc-1",
			},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "acc-1", cursor.Filter.AccountID)
	assert.Empty(t, cursor.Filter.Status)
}

func TestParseListTransactionsInput_InvalidCursorStatus(t *testing.T) {
	_, err := parseListTransactionsInput(&ListTransactionsInput{
		Body: ListTransactionsBody{Cursor: &ListTransactionsCursor{
			Limit:           10,
			MaxCreationTime: "2025-06-15T08:00:00Z",
			Status:          "lost",
		}},
	})

	assert.Error(t, err)
}

func TestListTransactions_FilteredPageEchoesFilter(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	filter := service.TransactionFilter{AccountID: "acc-1"}
	svc.On("ListTransactions", mock.Anything, &service.TransactionCursor{Filter: filter}).Return(
		[]ledger.Transaction{sampleTransaction("tx-1")},
		&service.TransactionCursor{Position: 1, Limit: 1, MaxCreationTime: createdAt, Filter: filter},
		nil,
	)

	resp := api.Post("/v1/transaction/list", map[string]any{"accountId": "acc-1"})

	require.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.NotNil(t, body.NextCursor)
	assert.Equal(t, "acc-1", body.NextCursor.AccountID)
	assert.Empty(t, body.NextCursor.Status)
	svc.AssertExpectations(t)
}

func TestListTransactions_FirstPage(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	pending := sampleTransaction("tx-2")
	pending.SyncStatus = ledger.SyncStatusPending
	svc.On("ListTransactions", mock.Anything, (*service.TransactionCursor)(nil)).Return(
		[]ledger.Transaction{pending, sampleTransaction("tx-1")},
		&service.TransactionCursor{Position: 2, Limit: 2, MaxCreationTime: createdAt},
		nil,
	)

	resp := api.Post("/v1/transaction/list", map[string]any{})

	require.Equal(t, http.StatusOK, resp.Code)
	var body ListTransactionsResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Transactions, 2)
	assert.Equal(t, "pending", body.Transactions[0].SyncStatus)
	require.NotNil(t, body.NextCursor)
	assert.Equal(t, 2, body.NextCursor.Position)
	assert.Equal(t, "2025-01-15T11:00:00Z", body.NextCursor.MaxCreationTime)
}

func TestListTransactions_ServiceError(t *testing.T) {
	svc := &mockTransactionService{}
	api := newTestAPI(t, svc)

	svc.On("ListTransactions", mock.Anything, mock.Anything).Return(nil, nil, errors.New("db down"))

	resp := api.Post("/v1/transaction/list", map[string]any{})

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}
