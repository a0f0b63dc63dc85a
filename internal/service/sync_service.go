package service

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// SyncStatus is the sync queue status together with the connectivity flag.
type SyncStatus struct {
	syncqueue.Status
	Online bool `json:"online"`
}

// SyncService exposes the offline sync queue.
type SyncService struct {
	session *Ledger
}

func NewSyncService(session *Ledger) *SyncService {
	return &SyncService{session: session}
}

func (s *SyncService) Status(ctx context.Context) (SyncStatus, error) {
	status, err := s.session.SyncStatus(ctx)
	if err != nil {
		return SyncStatus{}, err
	}
	return SyncStatus{Status: status, Online: s.session.Online()}, nil
}

// Replay attempts every queued item once, in order.
func (s *SyncService) Replay(ctx context.Context) (syncqueue.ReplayResult, error) {
	return s.session.Replay(ctx)
}

func (s *SyncService) SetOnline(ctx context.Context, online bool) (SyncStatus, error) {
	s.session.SetOnline(online)
	return s.Status(ctx)
}

// Failed lists items that exhausted their retries or were rejected by the store.
func (s *SyncService) Failed(ctx context.Context) ([]syncqueue.SyncItem, error) {
	return s.session.queue.Failed(ctx)
}

// Discard drops an abandoned item and reverts its writes locally. Queued items on the
// same entities are rebased so they no longer include its effects.
func (s *SyncService) Discard(ctx context.Context, id string) error {
	_, err := s.session.Discard(ctx, id)
	return err
}

// Retry returns an abandoned item to the replay queue with a fresh retry budget.
func (s *SyncService) Retry(ctx context.Context, id string) (syncqueue.SyncItem, error) {
	return s.session.Retry(ctx, id)
}
