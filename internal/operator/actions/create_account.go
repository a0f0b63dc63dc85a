package actions

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

type CreateAccount struct {
	ID              string
	Name            string
	Type            ledger.AccountType
	StartingBalance decimal.Decimal
	// LoanAmount is the initial principal of a loan account.
	LoanAmount decimal.Decimal
	CreatedAt  time.Time
}

func (c *CreateAccount) account() ledger.Account {
	acc := ledger.Account{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Balance:   c.StartingBalance,
		CreatedAt: c.CreatedAt,
	}
	if c.Type == ledger.AccountTypeLoan {
		acc.Loan = &ledger.LoanDetails{InitialAmount: c.LoanAmount, RemainingBalance: c.LoanAmount}
	}
	return acc
}

func (c *CreateAccount) Validate() error {
	return c.account().Validate()
}

// Accounts is empty: a new id cannot be contended.
func (c *CreateAccount) Accounts(storage.Reader) []string { return nil }

func (c *CreateAccount) Operation() syncqueue.Operation { return syncqueue.OperationCreate }

func (c *CreateAccount) Perform(ctx context.Context, writer *storage.Writer) error {
	if c.ID == "" {
		c.ID = ledger.NewID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return writer.Account.Create(c.account())
}
