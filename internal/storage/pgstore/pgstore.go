// Package pgstore stores documents as jsonb rows in PostgreSQL.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/carson-networks/budget-ledger/internal/config"
	"github.com/carson-networks/budget-ledger/internal/storage"
)

// NotifyChannel is the channel the documents trigger notifies with the changed collection.
const NotifyChannel = "documents_changed"

const documentsTable = "documents"

var _ storage.Store = (*Store)(nil)

type documentRow struct {
	Path string `db:"path"`
	Data []byte `db:"data"`
}

// Store implements storage.Store on a documents(path, collection, data, updated_at) table.
type Store struct {
	connStr string
	db      *sql.DB
	exec    bob.DB
	logger  logrus.FieldLogger
}

// ConnectionString builds the lib/pq connection string from the environment config.
func ConnectionString(env *config.Config) string {
	return "postgres://" + env.PostgresUsername + ":" +
		env.PostgresPassword + "@" + env.PostgresAddress + ":" +
		env.PostgresPort + "/" + env.PostgresDB + "?sslmode=disable"
}

func New(env *config.Config, logger logrus.FieldLogger) (*Store, error) {
	connStr := ConnectionString(env)
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Store{
		connStr: connStr,
		db:      db,
		exec:    bob.NewDB(db),
		logger:  logger,
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, path string) (storage.Document, error) {
	q := psql.Select(
		sm.Columns("path", "data"),
		sm.From(documentsTable),
		sm.Where(psql.Quote("path").EQ(psql.Arg(path))),
	)
	row, err := bob.One(ctx, s.exec, q, scan.StructMapper[documentRow]())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, classify(err))
	}
	return decodeRow(row)
}

func (s *Store) Set(ctx context.Context, path string, doc storage.Document) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpSet, Path: path, Data: doc}})
}

func (s *Store) Update(ctx context.Context, path string, patch storage.Document) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpUpdate, Path: path, Data: patch}})
}

func (s *Store) Delete(ctx context.Context, path string) error {
	return s.BatchWrite(ctx, []storage.Op{{Kind: storage.OpDelete, Path: path}})
}

// BatchWrite runs every op in one SQL transaction.
func (s *Store) BatchWrite(ctx context.Context, ops []storage.Op) error {
	tx, err := s.exec.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}

	for _, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func applyOp(ctx context.Context, exec bob.Executor, op storage.Op) error {
	collection, _ := storage.SplitPath(op.Path)
	now := time.Now().UTC()

	switch op.Kind {
	case storage.OpSet:
		data, err := json.Marshal(op.Data)
		if err != nil {
			return err
		}
		q := psql.Insert(
			im.Into(documentsTable, "path", "collection", "data", "updated_at"),
			im.Values(psql.Arg(op.Path, collection, string(data), now)),
			im.OnConflict("path").DoUpdate(
				im.SetExcluded("collection", "data", "updated_at"),
			),
		)
		_, err = bob.Exec(ctx, exec, q)
		return classify(err)

	case storage.OpUpdate:
		data, err := json.Marshal(op.Data)
		if err != nil {
			return err
		}
		q := psql.RawQuery(
			"UPDATE documents SET data = data || ?::jsonb, updated_at = ? WHERE path = ?",
			string(data), now, op.Path,
		)
		res, err := bob.Exec(ctx, exec, q)
		if err != nil {
			return classify(err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s: %w", op.Path, storage.ErrNotFound)
		}
		return nil

	case storage.OpDelete:
		q := psql.Delete(
			dm.From(documentsTable),
			dm.Where(psql.Quote("path").EQ(psql.Arg(op.Path))),
		)
		_, err := bob.Exec(ctx, exec, q)
		return classify(err)
	}
	return fmt.Errorf("unknown op kind %q", op.Kind)
}

func (s *Store) list(ctx context.Context, collection, orderBy string) ([]storage.Document, error) {
	q := psql.Select(
		sm.Columns("path", "data"),
		sm.From(documentsTable),
		sm.Where(psql.Quote("collection").EQ(psql.Arg(collection))),
		sm.OrderBy(psql.Raw("data->>?", orderBy)).Asc(),
		sm.OrderBy(psql.Quote("path")).Asc(),
	)
	rows, err := bob.All(ctx, s.exec, q, scan.StructMapper[documentRow]())
	if err != nil {
		return nil, classify(err)
	}
	docs := make([]storage.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// QueryOrdered LISTENs on NotifyChannel and re-reads the collection whenever it changes.
func (s *Store) QueryOrdered(ctx context.Context, collection, orderBy string) (<-chan []storage.Document, error) {
	first, err := s.list(ctx, collection, orderBy)
	if err != nil {
		return nil, err
	}

	listener := pq.NewListener(s.connStr, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			s.logger.WithError(err).Warn("PgStore.QueryOrdered.listenerEvent")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return nil, classify(err)
	}

	out := make(chan []storage.Document, 1)
	out <- first

	go func() {
		defer close(out)
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect: the collection may have changed while disconnected.
				if n != nil && n.Extra != collection {
					continue
				}
				docs, err := s.list(ctx, collection, orderBy)
				if err != nil {
					s.logger.WithError(err).WithField("collection", collection).Warn("PgStore.QueryOrdered.refresh")
					continue
				}
				select {
				case <-out:
				default:
				}
				out <- docs
			}
		}
	}()
	return out, nil
}

func decodeRow(row documentRow) (storage.Document, error) {
	var doc storage.Document
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", row.Path, err)
	}
	return doc, nil
}
