// Package syncing exposes the offline sync queue over HTTP.
package syncing

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/carson-networks/budget-ledger/internal/handlers"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// Status is the API model of the sync queue state.
type Status struct {
	Online       bool   `json:"online" doc:"Whether commands write to the document store directly"`
	PendingCount int    `json:"pendingCount" doc:"Queued items awaiting replay"`
	FailedCount  int    `json:"failedCount" doc:"Abandoned items awaiting manual intervention"`
	LastError    string `json:"lastError,omitempty" doc:"Most recent replay failure"`
}

// Item is the API model of a queued or abandoned item.
type Item struct {
	ID         string   `json:"id"`
	Operation  string   `json:"operation"`
	EntityIDs  []string `json:"entityIds"`
	RetryCount int      `json:"retryCount"`
	MaxRetries int      `json:"maxRetries"`
	Timestamp  string   `json:"timestamp"`
	LastError  string   `json:"lastError,omitempty"`
}

// ReplayResult is the API model of one replay pass.
type ReplayResult struct {
	Synced    []string `json:"synced"`
	Retrying  []string `json:"retrying"`
	Held      []string `json:"held"`
	Exhausted []Item   `json:"exhausted" doc:"Items that exhausted their retries or were rejected during this pass"`
}

type syncManager interface {
	Status(ctx context.Context) (service.SyncStatus, error)
	Replay(ctx context.Context) (syncqueue.ReplayResult, error)
	SetOnline(ctx context.Context, online bool) (service.SyncStatus, error)
	Failed(ctx context.Context) ([]syncqueue.SyncItem, error)
	Discard(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) (syncqueue.SyncItem, error)
}

// Handler serves the /v1/sync endpoints.
type Handler struct {
	SyncService syncManager
}

func NewHandler(svc syncManager) *Handler {
	return &Handler{SyncService: svc}
}

type StatusOutput struct {
	Body Status
}

type ReplayOutput struct {
	Body ReplayResult
}

type ConnectivityInput struct {
	Body struct {
		Online bool `json:"online" doc:"New connectivity state; going online triggers a replay"`
	}
}

type FailedOutput struct {
	Body struct {
		Items []Item `json:"items"`
	}
}

type DiscardInput struct {
	ID string `path:"id" doc:"Sync item ID"`
}

type RetryInput struct {
	ID string `path:"id" doc:"Sync item ID"`
}

type RetryOutput struct {
	Body Item
}

func (h *Handler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-status",
		Method:      http.MethodGet,
		Path:        "/v1/sync/status",
		Summary:     "Sync status",
		Description: "Returns pending and failed item counts, the last replay error and connectivity.",
		Tags:        []string{"Sync"},
	}, h.status)

	huma.Register(api, huma.Operation{
		OperationID: "sync-replay",
		Method:      http.MethodPost,
		Path:        "/v1/sync/replay",
		Summary:     "Replay sync queue",
		Description: "Attempts every queued item once, oldest first.",
		Tags:        []string{"Sync"},
	}, h.replay)

	huma.Register(api, huma.Operation{
		OperationID: "sync-connectivity",
		Method:      http.MethodPost,
		Path:        "/v1/sync/connectivity",
		Summary:     "Set connectivity",
		Description: "Marks the document store reachable or unreachable.",
		Tags:        []string{"Sync"},
	}, h.connectivity)

	huma.Register(api, huma.Operation{
		OperationID: "sync-failed",
		Method:      http.MethodGet,
		Path:        "/v1/sync/failed",
		Summary:     "List failed items",
		Tags:        []string{"Sync"},
	}, h.failed)

	huma.Register(api, huma.Operation{
		OperationID:   "sync-discard",
		Method:        http.MethodDelete,
		Path:          "/v1/sync/failed/{id}",
		Summary:       "Discard a failed item",
		Tags:          []string{"Sync"},
		DefaultStatus: http.StatusNoContent,
	}, h.discard)

	huma.Register(api, huma.Operation{
		OperationID: "sync-retry",
		Method:      http.MethodPost,
		Path:        "/v1/sync/failed/{id}/retry",
		Summary:     "Retry a failed item",
		Description: "Moves the item back to the pending queue with a fresh retry budget.",
		Tags:        []string{"Sync"},
	}, h.retry)
}

func toStatus(s service.SyncStatus) Status {
	return Status{
		Online:       s.Online,
		PendingCount: s.PendingCount,
		FailedCount:  s.FailedCount,
		LastError:    s.LastError,
	}
}

func toItem(item syncqueue.SyncItem) Item {
	return Item{
		ID:         item.ID,
		Operation:  string(item.Operation),
		EntityIDs:  item.EntityIDs,
		RetryCount: item.RetryCount,
		MaxRetries: item.MaxRetries,
		Timestamp:  item.Timestamp.Format(time.RFC3339),
		LastError:  item.LastError,
	}
}

func (h *Handler) status(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	status, err := h.SyncService.Status(ctx)
	if err != nil {
		return nil, handlers.Error("failed to read sync status", err)
	}
	return &StatusOutput{Body: toStatus(status)}, nil
}

func (h *Handler) replay(ctx context.Context, _ *struct{}) (*ReplayOutput, error) {
	res, err := h.SyncService.Replay(ctx)
	if err != nil {
		return nil, handlers.Error("failed to replay sync queue", err)
	}

	out := ReplayResult{
		Synced:    nonNil(res.Synced),
		Retrying:  nonNil(res.Retrying),
		Held:      nonNil(res.Held),
		Exhausted: make([]Item, len(res.Exhausted)),
	}
	for i, e := range res.Exhausted {
		out.Exhausted[i] = toItem(e.Item)
	}
	return &ReplayOutput{Body: out}, nil
}

func (h *Handler) connectivity(ctx context.Context, input *ConnectivityInput) (*StatusOutput, error) {
	status, err := h.SyncService.SetOnline(ctx, input.Body.Online)
	if err != nil {
		return nil, handlers.Error("failed to read sync status", err)
	}
	return &StatusOutput{Body: toStatus(status)}, nil
}

func (h *Handler) failed(ctx context.Context, _ *struct{}) (*FailedOutput, error) {
	items, err := h.SyncService.Failed(ctx)
	if err != nil {
		return nil, handlers.Error("failed to list failed items", err)
	}
	out := &FailedOutput{}
	out.Body.Items = make([]Item, len(items))
	for i, item := range items {
		out.Body.Items[i] = toItem(item)
	}
	return out, nil
}

func (h *Handler) discard(ctx context.Context, input *DiscardInput) (*struct{}, error) {
	if err := h.SyncService.Discard(ctx, input.ID); err != nil {
		return nil, handlers.Error("failed to discard item", err)
	}
	return nil, nil
}

func (h *Handler) retry(ctx context.Context, input *RetryInput) (*RetryOutput, error) {
	item, err := h.SyncService.Retry(ctx, input.ID)
	if err != nil {
		return nil, handlers.Error("failed to retry item", err)
	}
	return &RetryOutput{Body: toItem(item)}, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
