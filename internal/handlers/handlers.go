// Package handlers holds what the versioned HTTP handlers share: error mapping and the
// write result every command endpoint returns.
package handlers

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// WriteResult reports how a command's writes were persisted.
type WriteResult struct {
	Status     string   `json:"status" enum:"ack,queued" doc:"ack when the store confirmed the write, queued when it waits in the sync queue"`
	EntityIDs  []string `json:"entityIds,omitempty" doc:"IDs of every entity the command wrote"`
	SyncItemID string   `json:"syncItemId,omitempty" doc:"Sync queue item holding the writes, when queued"`
}

func NewWriteResult(res operator.Result) WriteResult {
	return WriteResult{
		Status:     string(res.Status),
		EntityIDs:  res.EntityIDs,
		SyncItemID: res.SyncItemID,
	}
}

// Error maps a service error onto an HTTP status. message is used for server errors;
// client errors carry the cause's own text.
func Error(message string, err error) error {
	var validation *ledger.ValidationError
	switch {
	case errors.As(err, &validation):
		return huma.NewError(http.StatusBadRequest, validation.Error(), &huma.ErrorDetail{
			Message:  validation.Reason,
			Location: "body." + validation.Field,
		})
	case storage.IsPermission(err):
		return huma.NewError(http.StatusForbidden, "permission denied", err)
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, syncqueue.ErrItemNotFound):
		return huma.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, operator.ErrStopped):
		return huma.NewError(http.StatusServiceUnavailable, "shutting down", err)
	default:
		return huma.NewError(http.StatusInternalServerError, message, err)
	}
}
