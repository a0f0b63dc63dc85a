package service

import (
	"context"
	"fmt"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

const defaultAccountLimit = 20

// AccountService handles account business logic.
type AccountService struct {
	session *Ledger
}

// NewAccountService creates a new AccountService.
func NewAccountService(session *Ledger) *AccountService {
	return &AccountService{session: session}
}

// CreateAccount creates a new account and returns it as stored locally.
func (s *AccountService) CreateAccount(ctx context.Context, account NewAccount) (ledger.Account, operator.Result, error) {
	action := &actions.CreateAccount{
		Name:            account.Name,
		Type:            account.Type,
		StartingBalance: account.StartingBalance,
		LoanAmount:      account.LoanAmount,
	}

	res, err := s.session.Submit(ctx, action)
	if err != nil {
		return ledger.Account{}, operator.Result{}, err
	}

	created, ok := s.session.state.Account(action.ID)
	if !ok {
		return ledger.Account{}, operator.Result{}, fmt.Errorf("account %s: %w", action.ID, storage.ErrNotFound)
	}
	return created, res, nil
}

// GetAccount retrieves an account by ID.
func (s *AccountService) GetAccount(ctx context.Context, id string) (ledger.Account, error) {
	account, ok := s.session.state.Account(id)
	if !ok {
		return ledger.Account{}, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return account, nil
}

// ListAccounts returns a page of accounts, ordered by name, using cursor pagination.
func (s *AccountService) ListAccounts(ctx context.Context, cursor *AccountCursor) ([]ledger.Account, *AccountCursor, error) {
	limit := defaultAccountLimit
	offset := 0
	if cursor != nil {
		if cursor.Limit > 0 {
			limit = cursor.Limit
		}
		offset = cursor.Position
	}

	accounts := s.session.state.Accounts()
	if offset >= len(accounts) {
		return nil, nil, nil
	}
	accounts = accounts[offset:]

	var nextCursor *AccountCursor
	if len(accounts) > limit {
		accounts = accounts[:limit]
		nextCursor = &AccountCursor{
			Position: offset + limit,
			Limit:    limit,
		}
	}

	return accounts, nextCursor, nil
}
