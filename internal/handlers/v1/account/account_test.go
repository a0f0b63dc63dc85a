package account

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

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

type mockAccountService struct {
	mock.Mock
}

func (m *mockAccountService) CreateAccount(ctx context.Context, account service.NewAccount) (ledger.Account, operator.Result, error) {
	args := m.Called(ctx, account)
	created, _ := args.Get(0).(ledger.Account)
	res, _ := args.Get(1).(operator.Result)
	return created, res, args.Error(2)
}

func (m *mockAccountService) ListAccounts(ctx context.Context, cursor *service.AccountCursor) ([]ledger.Account, *service.AccountCursor, error) {
	args := m.Called(ctx, cursor)
	accounts, _ := args.Get(0).([]ledger.Account)
	next, _ := args.Get(1).(*service.AccountCursor)
	return accounts, next, args.Error(2)
}

func (m *mockAccountService) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	args := m.Called(ctx, id)
	account, _ := args.Get(0).(ledger.Account)
	return account, args.Error(1)
}

func newTestAPI(t *testing.T, svc *mockAccountService) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	NewCreateAccountHandler(svc).Register(api)
	NewListAccountsHandler(svc).Register(api)
	NewGetAccountHandler(svc).Register(api)
	return api
}

var createdAt = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// -- parseCreateAccountInput unit tests --

func TestParseCreateAccountInput_Defaults(t *testing.T) {
	parsed, err := parseCreateAccountInput(&CreateAccountInput{Body: CreateAccountBody{Name: "Cash", Type: "cash"}})

	require.NoError(t, err)
	assert.Equal(t, ledger.AccountTypeCash, parsed.Type)
	assert.True(t, parsed.StartingBalance.IsZero())
	assert.True(t, parsed.LoanAmount.IsZero())
}

func TestParseCreateAccountInput_InvalidDecimal(t *testing.T) {
	_, err := parseCreateAccountInput(&CreateAccountInput{Body: CreateAccountBody{
		Name: "Cash", Type: "cash", StartingBalance: "abc",
	}})

	assert.Error(t, err)
}

// -- HTTP tests --

func TestCreateAccount_Created(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("CreateAccount", mock.Anything, mock.MatchedBy(func(a service.NewAccount) bool {
		return a.Name == "Mortgage" && a.Type == ledger.AccountTypeLoan && a.LoanAmount.Equal(decimal.RequireFromString("250000"))
	})).Return(ledger.Account{
		ID:        "acc-1",
		Name:      "Mortgage",
		Type:      ledger.AccountTypeLoan,
		Balance:   decimal.Zero,
		Loan:      &ledger.LoanDetails{InitialAmount: decimal.RequireFromString("250000"), RemainingBalance: decimal.RequireFromString("250000")},
		CreatedAt: createdAt,
	}, operator.Result{Status: operator.StatusQueued, SyncItemID: "item-1"}, nil)

	resp := api.Post("/v1/account", map[string]any{
		"name":       "Mortgage",
		"type":       "loan",
		"loanAmount": "250000",
	})

	require.Equal(t, http.StatusCreated, resp.Code)
	var body CreateAccountResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "queued", body.Status)
	assert.Equal(t, "item-1", body.SyncItemID)
	assert.Equal(t, "acc-1", body.Account.ID)
	require.NotNil(t, body.Account.LoanDetails)
	assert.Equal(t, "250000", body.Account.LoanDetails.RemainingBalance)
	svc.AssertExpectations(t)
}

func TestCreateAccount_BadType(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	resp := api.Post("/v1/account", map[string]any{"name": "X", "type": "crypto"})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	svc.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything)
}

func TestCreateAccount_ValidationFromService(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("CreateAccount", mock.Anything, mock.Anything).
		Return(nil, nil, &ledger.ValidationError{Field: "loanDetails", Reason: "required for loan accounts"})

	resp := api.Post("/v1/account", map[string]any{"name": "Loan", "type": "loan"})

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateAccount_PermissionDenied(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("CreateAccount", mock.Anything, mock.Anything).
		Return(nil, nil, fmt.Errorf("create: %w", storage.ErrPermissionDenied))

	resp := api.Post("/v1/account", map[string]any{"name": "Cash", "type": "cash"})

	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestListAccounts_WithNextCursor(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("ListAccounts", mock.Anything, &service.AccountCursor{Position: 0, Limit: 2}).Return(
		[]ledger.Account{
			{ID: "a", Name: "A", Type: ledger.AccountTypeCash, Balance: decimal.RequireFromString("1.5"), CreatedAt: createdAt},
			{ID: "b", Name: "B", Type: ledger.AccountTypeBank, Balance: decimal.Zero, CreatedAt: createdAt},
		},
		&service.AccountCursor{Position: 2, Limit: 2},
		nil,
	)

	resp := api.Get("/v1/accounts?limit=2")

	require.Equal(t, http.StatusOK, resp.Code)
	var body ListAccountsResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 2)
	assert.Equal(t, "1.5", body.Accounts[0].Balance)
	assert.Equal(t, "2025-01-15T10:30:00Z", body.Accounts[0].CreatedAt)
	require.NotNil(t, body.NextCursor)
	assert.Equal(t, 2, body.NextCursor.Position)
}

func TestListAccounts_Empty(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("ListAccounts", mock.Anything, mock.Anything).Return(nil, nil, nil)

	resp := api.Get("/v1/accounts")

	require.Equal(t, http.StatusOK, resp.Code)
	var body ListAccountsResponseBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Empty(t, body.Accounts)
	assert.Nil(t, body.NextCursor)
}

func TestListAccounts_ServiceError(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("ListAccounts", mock.Anything, mock.Anything).Return(nil, nil, errors.New("boom"))

	resp := api.Get("/v1/accounts")

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestGetAccount_NotFound(t *testing.T) {
	svc := &mockAccountService{}
	api := newTestAPI(t, svc)

	svc.On("GetAccount", mock.Anything, "missing").
		Return(nil, fmt.Errorf("account missing: %w", storage.ErrNotFound))

	resp := api.Get("/v1/account/missing")

	assert.Equal(t, http.StatusNotFound, resp.Code)
}
