package service

// Service holds all business logic services.
type Service struct {
	Transaction *TransactionService
	Account     *AccountService
	Sync        *SyncService
	Recurring   *RecurringService
}

// NewService creates a new Service over one ledger session.
func NewService(session *Ledger) *Service {
	return &Service{
		Transaction: NewTransactionService(session),
		Account:     NewAccountService(session),
		Sync:        NewSyncService(session),
		Recurring:   NewRecurringService(session),
	}
}
