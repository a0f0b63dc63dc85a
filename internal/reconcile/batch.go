package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// BatchEntry is one created transaction in a batch.
type BatchEntry struct {
	AccountID string
	Type      ledger.TransactionType
	Amount    decimal.Decimal
}

// ApplyBatch sums the signed effect of entries per account and applies each aggregate once.
// The loan floor is applied to the unfloored principal after summing, so the result equals
// sequential ApplyEffect calls in any order.
func ApplyBatch(accounts map[string]ledger.Account, entries []BatchEntry) (map[string]Result, error) {
	type aggregate struct {
		balance decimal.Decimal
		loan    decimal.Decimal
	}
	sums := make(map[string]*aggregate)

	for _, e := range entries {
		if _, ok := accounts[e.AccountID]; !ok {
			return nil, fmt.Errorf("batch entry for unknown account %s", e.AccountID)
		}
		agg, ok := sums[e.AccountID]
		if !ok {
			agg = &aggregate{}
			sums[e.AccountID] = agg
		}
		t := ledger.Transaction{AccountID: e.AccountID, Type: e.Type, Amount: e.Amount}
		agg.balance = agg.balance.Add(t.Signed())
		if e.Type == ledger.TransactionTypeExpense {
			agg.loan = agg.loan.Sub(e.Amount)
		}
	}

	results := make(map[string]Result, len(sums))
	for id, agg := range sums {
		acc := accounts[id]
		res := Result{Balance: acc.Balance.Add(agg.balance)}
		if acc.IsLoan() {
			res.settleLoan(*acc.Loan, agg.loan)
		}
		results[id] = res
	}
	return results, nil
}
