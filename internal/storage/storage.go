package storage

import (
	"context"
	"errors"
	"strings"
)

const (
	CollectionAccounts     = "accounts"
	CollectionTransactions = "transactions"
)

var (
	// ErrUnavailable marks transient failures: network errors, an unreachable backend, a dropped acknowledgement.
	ErrUnavailable = errors.New("document store unavailable")
	// ErrPermissionDenied is never retried.
	ErrPermissionDenied = errors.New("document store permission denied")
	// ErrNotFound is returned by Get and Update for a missing document.
	ErrNotFound = errors.New("document not found")
)

// Document is a string-keyed set of named fields.
type Document map[string]any

// OpKind is the kind of a single write.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Op is a single document write. Set is an upsert, Update merges Data into an existing document.
type Op struct {
	Kind OpKind   `json:"kind"`
	Path string   `json:"path"`
	Data Document `json:"data,omitempty"`
}

// Store is the document store backend.
//
// QueryOrdered pushes the full ordered collection once immediately and again after every change,
// until ctx is done. BatchWrite commits every op or none of them.
type Store interface {
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	Update(ctx context.Context, path string, patch Document) error
	Delete(ctx context.Context, path string) error
	QueryOrdered(ctx context.Context, collection, orderBy string) (<-chan []Document, error)
	BatchWrite(ctx context.Context, ops []Op) error
}

// IsTransient reports whether a failed write may succeed when retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsPermission reports whether err is a permission failure.
func IsPermission(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

// AccountPath returns the document path of an account.
func AccountPath(id string) string { return CollectionAccounts + "/" + id }

// TransactionPath returns the document path of a transaction.
func TransactionPath(id string) string { return CollectionTransactions + "/" + id }

// SplitPath splits "collection/id".
func SplitPath(path string) (collection, id string) {
	collection, id, _ = strings.Cut(path, "/")
	return collection, id
}

// QueryOnce returns the first snapshot pushed by QueryOrdered.
func QueryOnce(ctx context.Context, store Store, collection, orderBy string) ([]Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stream, err := store.QueryOrdered(ctx, collection, orderBy)
	if err != nil {
		return nil, err
	}
	select {
	case docs, ok := <-stream:
		if !ok {
			return nil, ErrUnavailable
		}
		return docs, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ApplyOps applies ops in order to docs, keyed by path.
func ApplyOps(docs map[string]Document, ops []Op) error {
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			docs[op.Path] = cloneDocument(op.Data)
		case OpUpdate:
			existing, ok := docs[op.Path]
			if !ok {
				return ErrNotFound
			}
			merged := cloneDocument(existing)
			for k, v := range op.Data {
				merged[k] = v
			}
			docs[op.Path] = merged
		case OpDelete:
			delete(docs, op.Path)
		}
	}
	return nil
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
