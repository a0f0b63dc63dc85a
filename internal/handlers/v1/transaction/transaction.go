package transaction

import (
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// Transaction is the API response model for a transaction.
// It is used only for responses, not for request bodies.
type Transaction struct {
	ID         string    `json:"id" doc:"Transaction UUID"`
	AccountID  string    `json:"accountId" doc:"Account UUID"`
	CategoryID string    `json:"categoryId" doc:"Category identifier"`
	Payee      string    `json:"payee" doc:"Payee"`
	Type       string    `json:"type" doc:"income or expense"`
	Amount     string    `json:"amount" doc:"Decimal amount"`
	Date       string    `json:"date" doc:"RFC3339 transaction date"`
	Notes      string    `json:"notes,omitempty" doc:"Free-form notes"`
	Schedule   *Schedule `json:"schedule,omitempty" doc:"Present on recurring templates"`
	CreatedAt  string    `json:"createdAt" doc:"RFC3339 creation time"`
	SyncStatus string    `json:"syncStatus" doc:"pending until the document store confirms the write"`
}

// Schedule makes a transaction a recurring template, in requests and responses.
type Schedule struct {
	Interval       string `json:"interval" enum:"daily,weekly,monthly,yearly" doc:"Recurrence interval"`
	NextOccurrence string `json:"nextOccurrence" doc:"RFC3339 date of the next generation"`
	EndDate        string `json:"endDate,omitempty" doc:"RFC3339 date after which the template stops"`
}

// TransactionBody is the request body shared by create, update and batch.
type TransactionBody struct {
	AccountID  string    `json:"accountId" required:"true" doc:"Account UUID"`
	CategoryID string    `json:"categoryId,omitempty" doc:"Category identifier"`
	Payee      string    `json:"payee,omitempty" doc:"Payee"`
	Type       string    `json:"type" enum:"income,expense" doc:"income or expense"`
	Amount     string    `json:"amount" required:"true" doc:"Positive decimal amount"`
	Date       string    `json:"date,omitempty" doc:"RFC3339 transaction date, defaults to now"`
	Notes      string    `json:"notes,omitempty" doc:"Free-form notes"`
	Schedule   *Schedule `json:"schedule,omitempty" doc:"Makes the transaction a recurring template"`
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, huma.NewError(http.StatusBadRequest, "invalid "+field, err)
	}
	return t, nil
}

// parseTransactionBody converts the API body. Field rules such as a positive amount are
// left to ledger validation.
func parseTransactionBody(body TransactionBody, now time.Time) (ledger.Transaction, error) {
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return ledger.Transaction{}, huma.NewError(http.StatusBadRequest, "invalid amount", err)
	}

	date := now
	if body.Date != "" {
		if date, err = parseTime("date", body.Date); err != nil {
			return ledger.Transaction{}, err
		}
	}

	tx := ledger.Transaction{
		AccountID:  body.AccountID,
		CategoryID: body.CategoryID,
		Payee:      body.Payee,
		Type:       ledger.TransactionType(body.Type),
		Amount:     amount,
		Date:       date,
		Notes:      body.Notes,
	}

	if s := body.Schedule; s != nil {
		next, err := parseTime("schedule.nextOccurrence", s.NextOccurrence)
		if err != nil {
			return ledger.Transaction{}, err
		}
		schedule := &ledger.Schedule{Interval: ledger.Interval(s.Interval), NextOccurrence: next}
		if s.EndDate != "" {
			end, err := parseTime("schedule.endDate", s.EndDate)
			if err != nil {
				return ledger.Transaction{}, err
			}
			schedule.EndDate = &end
		}
		tx.Schedule = schedule
	}
	return tx, nil
}

func toTransaction(t ledger.Transaction) Transaction {
	out := Transaction{
		ID:         t.ID,
		AccountID:  t.AccountID,
		CategoryID: t.CategoryID,
		Payee:      t.Payee,
		Type:       string(t.Type),
		Amount:     t.Amount.String(),
		Date:       t.Date.Format(time.RFC3339),
		Notes:      t.Notes,
		CreatedAt:  t.CreatedAt.Format(time.RFC3339),
		SyncStatus: string(t.SyncStatus),
	}
	if s := t.Schedule; s != nil {
		out.Schedule = &Schedule{
			Interval:       string(s.Interval),
			NextOccurrence: s.NextOccurrence.Format(time.RFC3339),
		}
		if s.EndDate != nil {
			out.Schedule.EndDate = s.EndDate.Format(time.RFC3339)
		}
	}
	return out
}
