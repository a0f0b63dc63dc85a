package syncqueue

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carson-networks/budget-ledger/internal/ledger"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRebase_ShiftsLoanPastTheFloor(t *testing.T) {
	// The discarded payment took the loan from 40 to an overpaid -10; the later one
	// paid another 20 on top of that.
	discarded := SyncItem{
		ID:        "first",
		EntityIDs: []string{"loan", "t1"},
		Effects:   []AccountEffect{{AccountID: "loan", Balance: dec("-50"), Principal: dec("-50")}},
	}
	later := SyncItem{
		ID:        "second",
		EntityIDs: []string{"loan", "t2"},
		Writes: []storage.Op{
			setTx("t2", "20"),
			{Kind: storage.OpUpdate, Path: storage.AccountPath("loan"), Data: storage.Document{
				"balance": "-70",
				"loanDetails": map[string]any{
					"initialAmount":    "100",
					"remainingBalance": "0",
					"overpaid":         "30",
				},
			}},
		},
	}

	rebased, err := later.rebase(discarded)
	require.NoError(t, err)

	patch := rebased.Writes[1].Data
	assert.Equal(t, "-20", patch["balance"])
	loan, ok := documentField(patch["loanDetails"])
	require.True(t, ok)
	assert.Equal(t, "100", loan["initialAmount"])
	assert.Equal(t, "20", loan["remainingBalance"])
	assert.Equal(t, "0", loan["overpaid"])

	// The original item is left alone.
	assert.Equal(t, "-70", later.Writes[1].Data["balance"])
	assert.Equal(t, setTx("t2", "20"), rebased.Writes[0])
}

func TestRebase_AcceptsDecodedNumbers(t *testing.T) {
	discarded := SyncItem{Effects: []AccountEffect{{AccountID: "acc", Balance: dec("2.5")}}}
	later := SyncItem{
		EntityIDs: []string{"acc"},
		Writes:    []storage.Op{{Kind: storage.OpUpdate, Path: storage.AccountPath("acc"), Data: storage.Document{"balance": 10.0}}},
	}

	rebased, err := later.rebase(discarded)
	require.NoError(t, err)
	assert.Equal(t, "7.5", rebased.Writes[0].Data["balance"])

	later.Writes[0].Data = storage.Document{"balance": true}
	_, err = later.rebase(discarded)
	assert.Error(t, err)
}

func TestRebase_InheritsUndoForSharedEntities(t *testing.T) {
	original := storage.Document{"id": "t1", "amount": "10"}
	discarded := SyncItem{
		EntityIDs: []string{"acc", "t1", "t9"},
		Undo: []storage.Op{
			{Kind: storage.OpSet, Path: storage.TransactionPath("t1"), Data: original},
			{Kind: storage.OpDelete, Path: storage.TransactionPath("t9")},
		},
	}
	later := SyncItem{
		EntityIDs: []string{"acc", "t1"},
		Writes:    []storage.Op{setTx("t1", "30")},
		Undo:      []storage.Op{{Kind: storage.OpSet, Path: storage.TransactionPath("t1"), Data: storage.Document{"id": "t1", "amount": "20"}}},
	}

	rebased, err := later.rebase(discarded)
	require.NoError(t, err)
	require.Len(t, rebased.Undo, 1)
	assert.Equal(t, original, rebased.Undo[0].Data)
	assert.Equal(t, "20", later.Undo[0].Data["amount"])
}

func TestAccountEffect_Revert(t *testing.T) {
	loan := ledger.LoanDetails{InitialAmount: dec("100")}.WithOutstanding(dec("-10"))
	acc := ledger.Account{ID: "loan", Balance: dec("-110"), Loan: &loan}

	reverted := AccountEffect{AccountID: "loan", Balance: dec("-50"), Principal: dec("-50")}.Revert(acc)
	assert.True(t, reverted.Balance.Equal(dec("-60")))
	assert.True(t, reverted.Loan.RemainingBalance.Equal(dec("40")))
	assert.True(t, reverted.Loan.Overpaid.IsZero())
	assert.True(t, acc.Loan.Overpaid.Equal(dec("10")))
}
