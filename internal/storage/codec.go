package storage

import (
	"encoding/json"
	"fmt"

	"github.com/carson-networks/budget-ledger/internal/ledger"
)

// AccountDocument encodes an account. Decimals are stored as strings.
func AccountDocument(a ledger.Account) (Document, error) {
	return toDocument(a)
}

// TransactionDocument encodes a transaction.
func TransactionDocument(t ledger.Transaction) (Document, error) {
	return toDocument(t)
}

// DecodeAccount decodes an account document. The type is normalized to its canonical
// name; a document with an unknown type is an error.
func DecodeAccount(doc Document) (ledger.Account, error) {
	var a ledger.Account
	if err := fromDocument(doc, &a); err != nil {
		return a, err
	}
	typ, err := ledger.ParseAccountType(string(a.Type))
	if err != nil {
		return a, fmt.Errorf("decode account %s: %w", a.ID, err)
	}
	a.Type = typ
	return a, nil
}

// DecodeTransaction decodes a transaction document. Anything read from the store is synced.
// Type and interval are normalized the same way as account types.
func DecodeTransaction(doc Document) (ledger.Transaction, error) {
	var t ledger.Transaction
	if err := fromDocument(doc, &t); err != nil {
		return t, err
	}
	typ, err := ledger.ParseTransactionType(string(t.Type))
	if err != nil {
		return t, fmt.Errorf("decode transaction %s: %w", t.ID, err)
	}
	t.Type = typ
	if t.Schedule != nil {
		schedule := *t.Schedule
		if schedule.Interval, err = ledger.ParseInterval(string(schedule.Interval)); err != nil {
			return t, fmt.Errorf("decode transaction %s: %w", t.ID, err)
		}
		t.Schedule = &schedule
	}
	t.SyncStatus = ledger.SyncStatusSynced
	return t, nil
}

// DecodeAccounts decodes a list of account documents.
func DecodeAccounts(docs []Document) ([]ledger.Account, error) {
	out := make([]ledger.Account, 0, len(docs))
	for _, doc := range docs {
		a, err := DecodeAccount(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DecodeTransactions decodes a list of transaction documents.
func DecodeTransactions(docs []Document) ([]ledger.Transaction, error) {
	out := make([]ledger.Transaction, 0, len(docs))
	for _, doc := range docs {
		t, err := DecodeTransaction(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func toDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}
