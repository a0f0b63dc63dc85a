package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/service"
)

type syncStatusReader interface {
	Status(ctx context.Context) (service.SyncStatus, error)
}

type Handler struct {
	Sync syncStatusReader
}

type response struct {
	Online       bool `json:"online"`
	PendingCount int  `json:"pendingCount"`
	FailedCount  int  `json:"failedCount"`
}

func NewHandler(sync syncStatusReader) Handler {
	return Handler{Sync: sync}
}

func (h *Handler) Handler(w http.ResponseWriter, req *http.Request, logData *logging.LogData) error {
	if req.Method != "GET" {
		w.WriteHeader(http.StatusBadRequest)
		return errors.New("status: method not GET")
	}

	status, err := h.Sync.Status(req.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return err
	}
	logData.AddData("pendingCount", status.PendingCount)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(response{
		Online:       status.Online,
		PendingCount: status.PendingCount,
		FailedCount:  status.FailedCount,
	})
}
