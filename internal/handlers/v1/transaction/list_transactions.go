package transaction

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/service"
)

// ListTransactionsCursor is the paging state echoed between pages. The filter of the
// first page travels with it.
type ListTransactionsCursor struct {
	Position        int    `json:"position" minimum:"0" doc:"Numeric offset position for the next page"`
	Limit           int    `json:"limit" minimum:"1" maximum:"100" doc:"Page size used for this cursor"`
	MaxCreationTime string `json:"maxCreationTime" format:"date-time" doc:"Upper bound on createdAt locked in from the first page"`
	AccountID       string `json:"accountId,omitempty" doc:"Account filter locked in from the first page"`
	Status          string `json:"syncStatus,omitempty" doc:"Sync status filter locked in from the first page"`
}

// ListTransactionsBody is the request body for listing transactions. The filter fields
// apply to the first page only; later pages take them from the cursor.
type ListTransactionsBody struct {
	Cursor    *ListTransactionsCursor `json:"cursor,omitempty" doc:"Cursor from a previous response to fetch the next page"`
	AccountID string                  `json:"accountId,omitempty" doc:"Only transactions on this account"`
	Status    string                  `json:"syncStatus,omitempty" enum:"synced,pending" doc:"Only transactions with this sync status"`
}

// ListTransactionsInput is the Huma input for listing transactions.
type ListTransactionsInput struct {
	Body ListTransactionsBody
}

// ListTransactionsResponseBody is the response body for listing transactions.
type ListTransactionsResponseBody struct {
	Transactions []Transaction           `json:"transactions" doc:"Page of transactions"`
	NextCursor   *ListTransactionsCursor `json:"nextCursor,omitempty" doc:"Cursor to fetch the next page, absent on the last page"`
}

// ListTransactionsOutput is the Huma output for listing transactions.
type ListTransactionsOutput struct {
	Body ListTransactionsResponseBody
}

// transactionLister is the interface for listing transactions.
type transactionLister interface {
	ListTransactions(ctx context.Context, cursor *service.TransactionCursor) ([]ledger.Transaction, *service.TransactionCursor, error)
}

// ListTransactionsHandler handles POST /v1/transaction/list.
type ListTransactionsHandler struct {
	TransactionService transactionLister
}

// NewListTransactionsHandler creates a new ListTransactionsHandler.
func NewListTransactionsHandler(svc transactionLister) *ListTransactionsHandler {
	return &ListTransactionsHandler{TransactionService: svc}
}

// Register registers the list transactions endpoint with the Huma API.
func (h *ListTransactionsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-transactions",
		Method:      http.MethodPost,
		Path:        "/v1/transaction/list",
		Summary:     "List transactions",
		Description: "Returns a paginated list of transactions, newest first, including writes that have not synced yet.",
		Tags:        []string{"Transactions"},
	}, h.handle)
}

func parseSyncStatus(raw string) (ledger.SyncStatus, error) {
	switch status := ledger.SyncStatus(raw); status {
	case "", ledger.SyncStatusSynced, ledger.SyncStatusPending:
		return status, nil
	default:
		return "", huma.NewError(http.StatusBadRequest, "invalid syncStatus "+raw)
	}
}

// parseListTransactionsInput turns the body into a service cursor. With no cursor and no
// filter it returns nil and the service uses its defaults.
func parseListTransactionsInput(input *ListTransactionsInput) (cursor *service.TransactionCursor, err error) {
	if input.Body.Cursor == nil {
		if input.Body.AccountID == "" && input.Body.Status == "" {
			return nil, nil
		}
		status, err := parseSyncStatus(input.Body.Status)
		if err != nil {
			return nil, err
		}
		return &service.TransactionCursor{
			Filter: service.TransactionFilter{AccountID: input.Body.AccountID, Status: status},
		}, nil
	}

	if input.Body.Cursor.Position < 0 {
		return nil, huma.NewError(http.StatusBadRequest, "cursor position must be non-negative")
	}

	maxCreationTime, parseErr := time.Parse(time.RFC3339, input.Body.Cursor.MaxCreationTime)
	if parseErr != nil {
		return nil, huma.NewError(http.StatusBadRequest, "invalid cursor maxCreationTime", parseErr)
	}
	status, err := parseSyncStatus(input.Body.Cursor.Status)
	if err != nil {
		return nil, err
	}

	return &service.TransactionCursor{
		Position:        input.Body.Cursor.Position,
		Limit:           input.Body.Cursor.Limit,
		MaxCreationTime: maxCreationTime,
		Filter:          service.TransactionFilter{AccountID: input.Body.Cursor.AccountID, Status: status},
	}, nil
}

func (h *ListTransactionsHandler) handle(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	logData := logging.GetLogData(ctx)
	requestCursor, err := parseListTransactionsInput(input)
	if err != nil {
		return nil, err
	}

	var stopTimer func()
	if logData != nil {
		stopTimer = logData.AddTiming("listTransactionsMs")
	}
	transactions, nextCursor, err := h.TransactionService.ListTransactions(ctx, requestCursor)
	if stopTimer != nil {
		stopTimer()
	}
	if err != nil {
		return nil, handlers.Error("failed to list transactions", err)
	}

	if logData != nil {
		logData.AddData("transactionCount", len(transactions))
		if requestCursor != nil && requestCursor.Filter.AccountID != "" {
			logData.AddData("accountID", requestCursor.Filter.AccountID)
		}
	}

	resp := ListTransactionsResponseBody{
		Transactions: make([]Transaction, len(transactions)),
	}

	for i, tx := range transactions {
		resp.Transactions[i] = toTransaction(tx)
	}

	if nextCursor != nil {
		resp.NextCursor = &ListTransactionsCursor{
			Position:        nextCursor.Position,
			Limit:           nextCursor.Limit,
			MaxCreationTime: nextCursor.MaxCreationTime.Format(time.RFC3339Nano),
			AccountID:       nextCursor.Filter.AccountID,
			Status:          string(nextCursor.Filter.Status),
		}
	}

	return &ListTransactionsOutput{Body: resp}, nil
}
