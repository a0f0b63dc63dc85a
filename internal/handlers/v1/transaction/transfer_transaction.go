package transaction

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/operator"
)

type TransferTransactionInput struct {
	ID   string `path:"id" doc:"Transaction UUID"`
	Body struct {
		ToAccountID string `json:"toAccountId" minLength:"1" doc:"Account UUID to move the transaction to"`
	}
}

type transactionTransferrer interface {
	TransferTransaction(ctx context.Context, id, toAccountID string) (operator.Result, error)
}

// TransferTransactionHandler handles POST /v1/transaction/{id}/transfer.
type TransferTransactionHandler struct {
	TransactionService transactionTransferrer
}

func NewTransferTransactionHandler(svc transactionTransferrer) *TransferTransactionHandler {
	return &TransferTransactionHandler{TransactionService: svc}
}

func (h *TransferTransactionHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "transfer-transaction",
		Method:      http.MethodPost,
		Path:        "/v1/transaction/{id}/transfer",
		Summary:     "Transfer transaction",
		Description: "Moves a transaction to another account, updating both balances in one write.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *TransferTransactionHandler) handle(ctx context.Context, input *TransferTransactionInput) (*WriteOutput, error) {
	res, err := h.TransactionService.TransferTransaction(ctx, input.ID, input.Body.ToAccountID)
	if err != nil {
		return nil, handlers.Error("failed to transfer transaction", err)
	}
	return &WriteOutput{Body: handlers.NewWriteResult(res)}, nil
}
