package service

import (
	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// NewAccount is the input for creating an account.
type NewAccount struct {
	Name            string
	Type            ledger.AccountType
	StartingBalance decimal.Decimal
	// LoanAmount is the initial principal, only used for loan accounts.
	LoanAmount decimal.Decimal
}

// AccountCursor identifies a position in a paginated result set.
type AccountCursor struct {
	Position int
	Limit    int
}
