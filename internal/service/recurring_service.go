package service

import (
	"context"

	"github.com/carson-networks/budget-ledger/internal/recurring"
)

// RecurringService runs the recurring scheduler on demand.
type RecurringService struct {
	session *Ledger
}

func NewRecurringService(session *Ledger) *RecurringService {
	return &RecurringService{session: session}
}

func (s *RecurringService) Run(ctx context.Context) (recurring.Report, error) {
	return s.session.RunRecurring(ctx)
}
