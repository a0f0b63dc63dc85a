package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AccountType represents the kind of an account.
type AccountType string

const (
	AccountTypeBank       AccountType = "bank"
	AccountTypeCash       AccountType = "cash"
	AccountTypeCredit     AccountType = "credit"
	AccountTypeLoan       AccountType = "loan"
	AccountTypeInvestment AccountType = "investment"
)

// ParseAccountType parses the lower-case name of an account type.
func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToLower(s)); t {
	case AccountTypeBank, AccountTypeCash, AccountTypeCredit, AccountTypeLoan, AccountTypeInvestment:
		return t, nil
	default:
		return "", fmt.Errorf("unknown account type %q", s)
	}
}

// LoanDetails holds the outstanding principal of a loan account. RemainingBalance never
// goes below zero; payments past that point accumulate in Overpaid so that deleting or
// shrinking them later restores the right principal.
type LoanDetails struct {
	InitialAmount    decimal.Decimal `json:"initialAmount"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	Overpaid         decimal.Decimal `json:"overpaid"`
}

// Outstanding is the principal left before flooring: negative once overpaid.
func (l LoanDetails) Outstanding() decimal.Decimal {
	return l.RemainingBalance.Sub(l.Overpaid)
}

// WithOutstanding returns a copy holding the unfloored principal outstanding, split into
// the floored remaining balance and the overpayment.
func (l LoanDetails) WithOutstanding(outstanding decimal.Decimal) LoanDetails {
	l.RemainingBalance, l.Overpaid = outstanding, decimal.Zero
	if outstanding.IsNegative() {
		l.RemainingBalance, l.Overpaid = decimal.Zero, outstanding.Neg()
	}
	return l
}

// Entity is a record keyed by its client-generated id.
type Entity interface {
	EntityID() string
}

// Account is a ledger account with its cached balance.
type Account struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Loan      *LoanDetails    `json:"loanDetails,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (a Account) EntityID() string { return a.ID }

// IsLoan reports whether remaining principal is tracked for the account.
func (a Account) IsLoan() bool { return a.Type == AccountTypeLoan && a.Loan != nil }

// Validate checks the fields required to create an account.
func (a Account) Validate() error {
	if a.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if typ, err := ParseAccountType(string(a.Type)); err != nil {
		return &ValidationError{Field: "type", Reason: err.Error()}
	} else if typ != a.Type {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("must be %q", typ)}
	}
	if a.Type == AccountTypeLoan {
		if a.Loan == nil {
			return &ValidationError{Field: "loanDetails", Reason: "required for loan accounts"}
		}
		if a.Loan.InitialAmount.IsNegative() || a.Loan.RemainingBalance.IsNegative() || a.Loan.Overpaid.IsNegative() {
			return &ValidationError{Field: "loanDetails", Reason: "amounts must not be negative"}
		}
	} else if a.Loan != nil {
		return &ValidationError{Field: "loanDetails", Reason: "only allowed for loan accounts"}
	}
	return nil
}
