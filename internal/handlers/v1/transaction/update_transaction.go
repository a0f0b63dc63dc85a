package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
)

type UpdateTransactionInput struct {
	ID   string `path:"id" doc:"Transaction UUID"`
	Body TransactionBody
}

type WriteOutput struct {
	Body handlers.WriteResult
}

type transactionUpdater interface {
	UpdateTransaction(ctx context.Context, transaction ledger.Transaction) (operator.Result, error)
}

// UpdateTransactionHandler handles PUT /v1/transaction/{id}.
type UpdateTransactionHandler struct {
	TransactionService transactionUpdater
}

func NewUpdateTransactionHandler(svc transactionUpdater) *UpdateTransactionHandler {
	return &UpdateTransactionHandler{TransactionService: svc}
}

func (h *UpdateTransactionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "update-transaction",
		Method:      http.MethodPut,
		Path:        "/v1/transaction/{id}",
		Summary:     "Update transaction",
		Description: "Replaces a transaction. Changing accountId moves its effect to the new account.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *UpdateTransactionHandler) handle(ctx context.Context, input *UpdateTransactionInput) (*WriteOutput, error) {
	tx, err := parseTransactionBody(input.Body, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	tx.ID = input.ID

	res, err := h.TransactionService.UpdateTransaction(ctx, tx)
	if err != nil {
		return nil, handlers.Error("failed to update transaction", err)
	}
	return &WriteOutput{Body: handlers.NewWriteResult(res)}, nil
}
