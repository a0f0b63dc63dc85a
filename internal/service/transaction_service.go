package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/operator"
	"github.com/carson-networks/budget-ledger/internal/operator/actions"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

const defaultLimit = 20

// TransactionService handles transaction business logic.
type TransactionService struct {
	session *Ledger
}

// NewTransactionService creates a new TransactionService.
func NewTransactionService(session *Ledger) *TransactionService {
	return &TransactionService{session: session}
}

// CreateTransaction creates a transaction, or a recurring template when Schedule is set,
// and returns it with its assigned ID.
func (s *TransactionService) CreateTransaction(ctx context.Context, transaction ledger.Transaction) (ledger.Transaction, operator.Result, error) {
	transaction.ID = ""
	action := &actions.CreateTransaction{Transaction: transaction}

	res, err := s.session.Submit(ctx, action)
	if err != nil {
		return ledger.Transaction{}, operator.Result{}, err
	}
	return action.Transaction, res, nil
}

// UpdateTransaction replaces the transaction with the same ID.
func (s *TransactionService) UpdateTransaction(ctx context.Context, transaction ledger.Transaction) (operator.Result, error) {
	return s.session.Submit(ctx, &actions.UpdateTransaction{Transaction: transaction})
}

// TransferTransaction moves a transaction to another account.
func (s *TransactionService) TransferTransaction(ctx context.Context, id, toAccountID string) (operator.Result, error) {
	return s.session.Submit(ctx, &actions.TransferTransaction{ID: id, ToAccountID: toAccountID})
}

func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) (operator.Result, error) {
	return s.session.Submit(ctx, &actions.DeleteTransaction{ID: id})
}

// BatchCreate creates all transactions in one write and returns them with their IDs.
func (s *TransactionService) BatchCreate(ctx context.Context, transactions []ledger.Transaction) ([]ledger.Transaction, operator.Result, error) {
	batch := make([]ledger.Transaction, len(transactions))
	for i, t := range transactions {
		t.ID = ""
		batch[i] = t
	}
	action := &actions.BatchCreate{Transactions: batch}

	res, err := s.session.Submit(ctx, action)
	if err != nil {
		return nil, operator.Result{}, err
	}
	return action.Transactions, res, nil
}

// GetTransaction retrieves a transaction by ID.
func (s *TransactionService) GetTransaction(ctx context.Context, id string) (ledger.Transaction, error) {
	t, ok := s.session.state.Transaction(id)
	if !ok {
		return ledger.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return t, nil
}

// ListTransactions returns a page of transactions, newest first, using cursor-based
// pagination over the cached remote view merged with writes that have not synced yet.
func (s *TransactionService) ListTransactions(ctx context.Context, cursor *TransactionCursor) ([]ledger.Transaction, *TransactionCursor, error) {
	limit := defaultLimit
	offset := 0
	var maxCreationTime *time.Time
	var filter TransactionFilter
	if cursor != nil {
		if cursor.Limit > 0 {
			limit = cursor.Limit
		}
		offset = cursor.Position
		if !cursor.MaxCreationTime.IsZero() {
			maxCreationTime = &cursor.MaxCreationTime
		}
		filter = cursor.Filter
	}

	all, err := s.session.transactions.Read(ctx, s.session.Online(), s.session.fetchTransactions)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]ledger.Transaction, 0, len(all))
	for _, t := range all {
		if maxCreationTime != nil && t.CreatedAt.After(*maxCreationTime) {
			continue
		}
		if t.SyncStatus == "" {
			t.SyncStatus = ledger.SyncStatusSynced
		}
		if !filter.matches(t) {
			continue
		}
		rows = append(rows, t)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})

	if offset >= len(rows) {
		return nil, nil, nil
	}
	newest := rows[0].CreatedAt
	rows = rows[offset:]

	var nextCursor *TransactionCursor
	if len(rows) > limit {
		rows = rows[:limit]

		cursorMaxCreationTime := newest
		if maxCreationTime != nil {
			cursorMaxCreationTime = *maxCreationTime
		}

		nextCursor = &TransactionCursor{
			Position:        offset + limit,
			Limit:           limit,
			MaxCreationTime: cursorMaxCreationTime,
			Filter:          filter,
		}
	}

	return rows, nextCursor, nil
}
