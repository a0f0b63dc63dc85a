package transaction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/operator"
)

type BatchCreateInput struct {
	Body struct {
		Transactions []TransactionBody `json:"transactions" minItems:"1" maxItems:"500" doc:"Transactions to create in one write"`
	}
}

type BatchCreateResponse struct {
	handlers.WriteResult
	Transactions []Transaction `json:"transactions" doc:"Created transactions, in request order"`
}

type BatchCreateOutput struct {
	Status int
	Body   BatchCreateResponse
}

type transactionBatchCreator interface {
	BatchCreate(ctx context.Context, transactions []ledger.Transaction) ([]ledger.Transaction, operator.Result, error)
}

// BatchCreateHandler handles POST /v1/transaction/batch.
type BatchCreateHandler struct {
	TransactionService transactionBatchCreator
}

func NewBatchCreateHandler(svc transactionBatchCreator) *BatchCreateHandler {
	return &BatchCreateHandler{TransactionService: svc}
}

func (h *BatchCreateHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "batch-create-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/transaction/batch",
		Summary:     "Create transactions in bulk",
		Description: "Creates many transactions at once. Each account balance is updated a single time with the total of its entries.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func (h *BatchCreateHandler) handle(ctx context.Context, input *BatchCreateInput) (*BatchCreateOutput, error) {
	logData := logging.GetLogData(ctx)
	now := time.Now().UTC()

	batch := make([]ledger.Transaction, len(input.Body.Transactions))
	for i, body := range input.Body.Transactions {
		tx, err := parseTransactionBody(body, now)
		if err != nil {
			return nil, huma.NewError(http.StatusBadRequest, fmt.Sprintf("transactions[%d]", i), err)
		}
		batch[i] = tx
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("batchCreateMs")
	}
	created, res, err := h.TransactionService.BatchCreate(ctx, batch)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, handlers.Error("failed to create transactions", err)
	}

	if logData != nil {
		logData.AddData("transactionCount", len(created))
		logData.AddData("writeStatus", res.Status)
	}

	resp := BatchCreateResponse{
		WriteResult:  handlers.NewWriteResult(res),
		Transactions: make([]Transaction, len(created)),
	}
	for i, tx := range created {
		resp.Transactions[i] = toTransaction(tx)
	}
	return &BatchCreateOutput{Status: http.StatusCreated, Body: resp}, nil
}
