package syncqueue

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/shopspring/decimal"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

// Revert takes the effect back out of acc.
func (e AccountEffect) Revert(acc ledger.Account) ledger.Account {
	acc.Balance = acc.Balance.Sub(e.Balance)
	if acc.Loan != nil {
		loan := acc.Loan.WithOutstanding(acc.Loan.Outstanding().Sub(e.Principal))
		acc.Loan = &loan
	}
	return acc
}

// rebase rewrites item as if discarded had never been queued before it. Account writes
// carry absolute balances, so each one on an account discarded moved is shifted back by
// that movement. Undo entries for entities both items touch are taken from discarded,
// whose undo holds the earlier version.
func (i SyncItem) rebase(discarded SyncItem) (SyncItem, error) {
	effects := make(map[string]AccountEffect, len(discarded.Effects))
	for _, e := range discarded.Effects {
		effects[storage.AccountPath(e.AccountID)] = e
	}

	writes := make([]storage.Op, len(i.Writes))
	for n, op := range i.Writes {
		if e, ok := effects[op.Path]; ok && op.Kind != storage.OpDelete {
			data, err := shiftAccountDocument(op.Data, e)
			if err != nil {
				return i, fmt.Errorf("rebase %s on %s: %w", i.ID, op.Path, err)
			}
			op.Data = data
		}
		writes[n] = op
	}
	i.Writes = writes

	touched := make(map[string]bool, len(i.EntityIDs))
	for _, id := range i.EntityIDs {
		touched[id] = true
	}
	undo := make(map[string]int, len(i.Undo))
	for n, op := range i.Undo {
		undo[op.Path] = n
	}
	i.Undo = append([]storage.Op(nil), i.Undo...)
	for _, op := range discarded.Undo {
		if _, id := storage.SplitPath(op.Path); !touched[id] {
			continue
		}
		if n, ok := undo[op.Path]; ok {
			i.Undo[n] = op
		} else {
			i.Undo = append(i.Undo, op)
		}
	}
	return i, nil
}

func shiftAccountDocument(doc storage.Document, e AccountEffect) (storage.Document, error) {
	out := maps.Clone(doc)
	if raw, ok := doc["balance"]; ok {
		balance, err := decimalField(raw)
		if err != nil {
			return nil, fmt.Errorf("balance: %w", err)
		}
		out["balance"] = balance.Sub(e.Balance).String()
	}

	raw, ok := doc["loanDetails"]
	if !ok {
		return out, nil
	}
	details, ok := documentField(raw)
	if !ok {
		return nil, fmt.Errorf("loanDetails: unexpected %T", raw)
	}
	var loan ledger.LoanDetails
	var err error
	if v, ok := details["remainingBalance"]; ok {
		if loan.RemainingBalance, err = decimalField(v); err != nil {
			return nil, fmt.Errorf("loanDetails.remainingBalance: %w", err)
		}
	}
	if v, ok := details["overpaid"]; ok {
		if loan.Overpaid, err = decimalField(v); err != nil {
			return nil, fmt.Errorf("loanDetails.overpaid: %w", err)
		}
	}
	loan = loan.WithOutstanding(loan.Outstanding().Sub(e.Principal))

	shifted := maps.Clone(details)
	shifted["remainingBalance"] = loan.RemainingBalance.String()
	shifted["overpaid"] = loan.Overpaid.String()
	out["loanDetails"] = shifted
	return out, nil
}

func documentField(v any) (storage.Document, bool) {
	switch d := v.(type) {
	case storage.Document:
		return d, true
	case map[string]any:
		return storage.Document(d), true
	default:
		return nil, false
	}
}

func decimalField(v any) (decimal.Decimal, error) {
	switch d := v.(type) {
	case string:
		return decimal.NewFromString(d)
	case float64:
		return decimal.NewFromFloat(d), nil
	case json.Number:
		return decimal.NewFromString(d.String())
	case decimal.Decimal:
		return d, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("unexpected %T", v)
	}
}
