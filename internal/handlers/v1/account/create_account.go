package account

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/service"
)

// CreateAccountInput is the Huma input for creating an account.
type CreateAccountInput struct {
	Body CreateAccountBody
}

// CreateAccountBody is the request body fields for creating an account.
type CreateAccountBody struct {
	Name            string `json:"name" minLength:"1" doc:"Account name"`
	Type            string `json:"type" enum:"bank,cash,credit,loan,investment" doc:"Account type"`
	StartingBalance string `json:"startingBalance,omitempty" doc:"Starting balance (e.g. '0' or '1234.56'), defaults to 0"`
	LoanAmount      string `json:"loanAmount,omitempty" doc:"Initial principal, required for loan accounts"`
}

// CreateAccountResponse is the response body for creating an account.
type CreateAccountResponse struct {
	handlers.WriteResult
	Account Account `json:"account" doc:"Created account"`
}

// CreateAccountOutput is the response for creating an account.
type CreateAccountOutput struct {
	Status int
	Body   CreateAccountResponse
}

// accountCreator is the interface for creating accounts.
type accountCreator interface {
	CreateAccount(ctx context.Context, account service.NewAccount) (ledger.Account, operator.Result, error)
}

// CreateAccountHandler handles POST /v1/account.
type CreateAccountHandler struct {
	AccountService accountCreator
}

// NewCreateAccountHandler creates a new CreateAccountHandler.
func NewCreateAccountHandler(svc accountCreator) *CreateAccountHandler {
	return &CreateAccountHandler{AccountService: svc}
}

// Register registers the create account endpoint with the Huma API.
func (h *CreateAccountHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-account",
		Method:      http.MethodPost,
		Path:        "/v1/account",
		Summary:     "Create an account",
		Description: "Creates a new account with the given name, type and starting balance.",
		Tags:        []string{"Accounts"},
	}, h.handle)
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, huma.NewError(http.StatusBadRequest, "invalid "+field, err)
	}
	return d, nil
}

func parseCreateAccountInput(input *CreateAccountInput) (service.NewAccount, error) {
	accountType, err := ledger.ParseAccountType(input.Body.Type)
	if err != nil {
		return service.NewAccount{}, huma.NewError(http.StatusBadRequest, "invalid type", err)
	}
	startingBalance, err := parseDecimal("startingBalance", input.Body.StartingBalance)
	if err != nil {
		return service.NewAccount{}, err
	}
	loanAmount, err := parseDecimal("loanAmount", input.Body.LoanAmount)
	if err != nil {
		return service.NewAccount{}, err
	}

	return service.NewAccount{
		Name:            input.Body.Name,
		Type:            accountType,
		StartingBalance: startingBalance,
		LoanAmount:      loanAmount,
	}, nil
}

func (h *CreateAccountHandler) handle(ctx context.Context, input *CreateAccountInput) (*CreateAccountOutput, error) {
	logData := logging.GetLogData(ctx)

	account, err := parseCreateAccountInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("createAccountMs")
	}
	created, res, err := h.AccountService.CreateAccount(ctx, account)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, handlers.Error("failed to create account", err)
	}

	if logData != nil {
		logData.AddData("accountID", created.ID)
		logData.AddData("writeStatus", res.Status)
	}

	return &CreateAccountOutput{
		Status: http.StatusCreated,
		Body: CreateAccountResponse{
			WriteResult: handlers.NewWriteResult(res),
			Account:     toAccount(created),
		},
	}, nil
}
