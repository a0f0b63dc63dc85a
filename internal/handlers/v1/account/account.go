package account

import (
	"time"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// Account is the API response model for an account.
type Account struct {
	ID          string       `json:"id" doc:"Account UUID"`
	Name        string       `json:"name" doc:"Account name"`
	Type        string       `json:"type" doc:"Account type"`
	Balance     string       `json:"balance" doc:"Decimal balance"`
	LoanDetails *LoanDetails `json:"loanDetails,omitempty" doc:"Remaining principal, loan accounts only"`
	CreatedAt   string       `json:"createdAt" doc:"RFC3339 creation time"`
}

// LoanDetails is the API model for loan principal tracking.
type LoanDetails struct {
	InitialAmount    string `json:"initialAmount" doc:"Decimal principal at creation"`
	RemainingBalance string `json:"remainingBalance" doc:"Decimal principal still owed"`
}

func toAccount(a ledger.Account) Account {
	out := Account{
		ID:        a.ID,
		Name:      a.Name,
		Type:      string(a.Type),
		Balance:   a.Balance.String(),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
	if a.Loan != nil {
		out.LoanDetails = &LoanDetails{
			InitialAmount:    a.Loan.InitialAmount.String(),
			RemainingBalance: a.Loan.RemainingBalance.String(),
		}
	}
	return out
}
