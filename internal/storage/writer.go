package storage

import (
	"fmt"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// Writer is a unit of work. Reads see earlier staged writes; nothing reaches a Store
// until the caller commits Ops with BatchWrite.
type Writer struct {
	reader Reader

	ops          []Op
	accounts     map[string]ledger.Account
	accountOrder []string
	transactions map[string]ledger.Transaction
	txOrder      []string
	deleted      map[string]bool

	Account     *AccountWriter
	Transaction *TransactionWriter
}

func NewWriter(reader Reader) *Writer {
	w := &Writer{
		reader:       reader,
		accounts:     make(map[string]ledger.Account),
		transactions: make(map[string]ledger.Transaction),
		deleted:      make(map[string]bool),
	}
	w.Account = &AccountWriter{w: w}
	w.Transaction = &TransactionWriter{w: w}
	return w
}

// Ops returns the staged writes in order.
func (w *Writer) Ops() []Op {
	return append([]Op(nil), w.ops...)
}

// Empty reports whether nothing was staged.
func (w *Writer) Empty() bool { return len(w.ops) == 0 }

// Changes returns the final state of every staged entity.
func (w *Writer) Changes() Changes {
	var c Changes
	for _, id := range w.accountOrder {
		c.Accounts = append(c.Accounts, w.accounts[id])
	}
	for _, id := range w.txOrder {
		if w.deleted[id] {
			c.DeletedTransactions = append(c.DeletedTransactions, id)
			continue
		}
		c.Transactions = append(c.Transactions, w.transactions[id])
	}
	return c
}

func (w *Writer) stageAccount(a ledger.Account, op Op) {
	if _, ok := w.accounts[a.ID]; !ok {
		w.accountOrder = append(w.accountOrder, a.ID)
	}
	w.accounts[a.ID] = a
	w.ops = append(w.ops, op)
}

func (w *Writer) stageTransaction(t ledger.Transaction, op Op) {
	if _, ok := w.transactions[t.ID]; !ok && !w.deleted[t.ID] {
		w.txOrder = append(w.txOrder, t.ID)
	}
	delete(w.deleted, t.ID)
	w.transactions[t.ID] = t
	w.ops = append(w.ops, op)
}

type AccountWriter struct {
	w *Writer
}

// FindByIDForUpdate returns the staged account or the reader's copy.
func (a *AccountWriter) FindByIDForUpdate(id string) (*ledger.Account, error) {
	if acc, ok := a.w.accounts[id]; ok {
		return &acc, nil
	}
	acc, ok := a.w.reader.Account(id)
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return &acc, nil
}

// Create stages a full account document.
func (a *AccountWriter) Create(acc ledger.Account) error {
	doc, err := AccountDocument(acc)
	if err != nil {
		return err
	}
	a.w.stageAccount(acc, Op{Kind: OpSet, Path: AccountPath(acc.ID), Data: doc})
	return nil
}

// UpdateBalance stages a partial update of the balance and, for loans, the remaining principal.
func (a *AccountWriter) UpdateBalance(acc ledger.Account) error {
	patch := Document{"balance": acc.Balance.String()}
	if acc.Loan != nil {
		patch["loanDetails"] = Document{
			"initialAmount":    acc.Loan.InitialAmount.String(),
			"remainingBalance": acc.Loan.RemainingBalance.String(),
			"overpaid":         acc.Loan.Overpaid.String(),
		}
	}
	a.w.stageAccount(acc, Op{Kind: OpUpdate, Path: AccountPath(acc.ID), Data: patch})
	return nil
}

type TransactionWriter struct {
	w *Writer
}

// FindByID returns the staged transaction or the reader's copy.
func (t *TransactionWriter) FindByID(id string) (*ledger.Transaction, error) {
	if t.w.deleted[id] {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if tx, ok := t.w.transactions[id]; ok {
		return &tx, nil
	}
	tx, ok := t.w.reader.Transaction(id)
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return &tx, nil
}

// List returns the reader's transactions with staged writes applied.
func (t *TransactionWriter) List() []ledger.Transaction {
	seen := make(map[string]bool)
	var out []ledger.Transaction
	for _, tx := range t.w.reader.Transactions() {
		seen[tx.ID] = true
		if t.w.deleted[tx.ID] {
			continue
		}
		if staged, ok := t.w.transactions[tx.ID]; ok {
			tx = staged
		}
		out = append(out, tx)
	}
	for _, id := range t.w.txOrder {
		if !seen[id] && !t.w.deleted[id] {
			out = append(out, t.w.transactions[id])
		}
	}
	return out
}

// Insert stages an upsert keyed by the client id, so a replayed insert never duplicates.
func (t *TransactionWriter) Insert(tx ledger.Transaction) error {
	doc, err := TransactionDocument(tx)
	if err != nil {
		return err
	}
	t.w.stageTransaction(tx, Op{Kind: OpSet, Path: TransactionPath(tx.ID), Data: doc})
	return nil
}

// Update stages the full new state of an existing transaction.
func (t *TransactionWriter) Update(tx ledger.Transaction) error {
	return t.Insert(tx)
}

// Delete stages a delete.
func (t *TransactionWriter) Delete(id string) error {
	if _, ok := t.w.transactions[id]; !ok && !t.w.deleted[id] {
		t.w.txOrder = append(t.w.txOrder, id)
	}
	delete(t.w.transactions, id)
	t.w.deleted[id] = true
	t.w.ops = append(t.w.ops, Op{Kind: OpDelete, Path: TransactionPath(id)})
	return nil
}
