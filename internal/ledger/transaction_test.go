package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func validTransaction() Transaction {
	return Transaction{
		ID:        NewID(),
		AccountID: NewID(),
		Type:      TransactionTypeExpense,
		Amount:    decimal.RequireFromString("12.50"),
		Date:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSigned(t *testing.T) {
	tx := validTransaction()
	assert.True(t, tx.Signed().Equal(decimal.RequireFromString("-12.50")))

	tx.Type = TransactionTypeIncome
	assert.True(t, tx.Signed().Equal(decimal.RequireFromString("12.50")))
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validTransaction().Validate())
}

func TestValidate_Errors(t *testing.T) {
	end := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(*Transaction)
		field  string
	}{
		{"missing account", func(tx *Transaction) { tx.AccountID = "" }, "accountId"},
		{"zero amount", func(tx *Transaction) { tx.Amount = decimal.Zero }, "amount"},
		{"negative amount", func(tx *Transaction) { tx.Amount = decimal.RequireFromString("-1") }, "amount"},
		{"unknown type", func(tx *Transaction) { tx.Type = "transfer" }, "type"},
		{"upper-case type", func(tx *Transaction) { tx.Type = "EXPENSE" }, "type"},
		{"missing date", func(tx *Transaction) { tx.Date = time.Time{} }, "date"},
		{"bad interval", func(tx *Transaction) {
			tx.Schedule = &Schedule{Interval: "hourly", NextOccurrence: tx.Date}
		}, "schedule.interval"},
		{"short interval name", func(tx *Transaction) {
			tx.Schedule = &Schedule{Interval: "month", NextOccurrence: tx.Date}
		}, "schedule.interval"},
		{"end before next", func(tx *Transaction) {
			tx.Schedule = &Schedule{Interval: Monthly, NextOccurrence: tx.Date, EndDate: &end}
		}, "schedule.endDate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := validTransaction()
			tt.mutate(&tx)
			err := tx.Validate()
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.field, err.(*ValidationError).Field)
		})
	}
}

func TestParseInterval(t *testing.T) {
	i, err := ParseInterval("Month")
	assert.NoError(t, err)
	assert.Equal(t, Monthly, i)

	_, err = ParseInterval("fortnightly")
	assert.Error(t, err)
}

func TestAccountValidate_LoanRequiresDetails(t *testing.T) {
	acc := Account{Name: "Mortgage", Type: AccountTypeLoan}
	assert.True(t, IsValidation(acc.Validate()))

	acc.Loan = &LoanDetails{InitialAmount: decimal.NewFromInt(1000), RemainingBalance: decimal.NewFromInt(1000)}
	assert.NoError(t, acc.Validate())

	cash := Account{Name: "Wallet", Type: AccountTypeCash, Loan: acc.Loan}
	assert.True(t, IsValidation(cash.Validate()))

	shouting := Account{Name: "Wallet", Type: "CASH"}
	assert.True(t, IsValidation(shouting.Validate()))
}
