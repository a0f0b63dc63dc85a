// Package reconcile computes the effect of transaction lifecycle events on account balances.
//
// Every function here is pure arithmetic on decimals; persisting the result is the caller's job.
package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// Lifecycle is the transaction event being reconciled.
type Lifecycle int

const (
	Create Lifecycle = iota
	Update
	Delete
)

func (l Lifecycle) String() string {
	switch l {
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Result is an account's new balance and, for loan accounts, its new remaining principal
// together with the amount paid beyond it.
type Result struct {
	Balance          decimal.Decimal
	RemainingBalance *decimal.Decimal
	Overpaid         *decimal.Decimal
}

// ApplyTo writes the result into acc. LoanDetails is copied, never mutated in place,
// because account values share it with the state they were read from.
func (r Result) ApplyTo(acc *ledger.Account) {
	acc.Balance = r.Balance
	if r.RemainingBalance != nil && acc.Loan != nil {
		loan := *acc.Loan
		loan.RemainingBalance = *r.RemainingBalance
		if r.Overpaid != nil {
			loan.Overpaid = *r.Overpaid
		}
		acc.Loan = &loan
	}
}

// ApplyEffect reconciles one lifecycle event against acc. For Create only next is used,
// for Delete only old, for Update both. A transaction whose AccountID is not acc.ID
// contributes nothing, so the same call handles either side of a transfer.
func ApplyEffect(acc ledger.Account, lifecycle Lifecycle, old, next *ledger.Transaction) Result {
	switch lifecycle {
	case Create:
		old = nil
	case Delete:
		next = nil
	}

	delta := signed(acc, next).Sub(signed(acc, old))
	res := Result{Balance: acc.Balance.Add(delta)}

	if acc.IsLoan() {
		res.settleLoan(*acc.Loan, loanEffect(acc, next).Sub(loanEffect(acc, old)))
	}
	return res
}

// settleLoan moves the unfloored principal by delta and splits it back into the floored
// remaining balance and the overpayment.
func (r *Result) settleLoan(loan ledger.LoanDetails, delta decimal.Decimal) {
	settled := loan.WithOutstanding(loan.Outstanding().Add(delta))
	r.RemainingBalance = &settled.RemainingBalance
	r.Overpaid = &settled.Overpaid
}

// Transfer reconciles a transaction moving from one account to another: a delete effect on
// from and a create effect on to. The caller must persist both results in one atomic write.
func Transfer(from, to ledger.Account, old, next ledger.Transaction) (Result, Result) {
	return ApplyEffect(from, Delete, &old, nil), ApplyEffect(to, Create, nil, &next)
}

func signed(acc ledger.Account, t *ledger.Transaction) decimal.Decimal {
	if t == nil || t.AccountID != acc.ID {
		return decimal.Zero
	}
	return t.Signed()
}

// loanEffect is -amount for an expense against this loan account, otherwise zero.
func loanEffect(acc ledger.Account, t *ledger.Transaction) decimal.Decimal {
	if t == nil || t.AccountID != acc.ID || t.Type != ledger.TransactionTypeExpense {
		return decimal.Zero
	}
	return t.Amount.Neg()
}

