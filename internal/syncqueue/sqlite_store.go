package syncqueue

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	bucketPending = "pending"
	bucketFailed  = "failed"
)

// SQLiteStore is an ItemStore backed by a local SQLite file, so queued writes survive restarts.
type SQLiteStore struct {
	db     *sql.DB
	logger logrus.FieldLogger
}

// OpenSQLiteStore opens (or creates) the queue database at path and applies its migrations.
func OpenSQLiteStore(path string, logger logrus.FieldLogger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sync queue %s: %w", path, err)
	}
	// A single connection keeps SQLite from returning SQLITE_BUSY between our own writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sync queue %s: %w", path, err)
	}
	if err := migrateUp(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.WithField("path", path).Info("SQLiteStore.Open.ready")
	return &SQLiteStore{db: db, logger: logger}, nil
}

func migrateUp(db *sql.DB, logger logrus.FieldLogger) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("sync queue migrations source: %w", err)
	}
	driver, err := msqlite.WithInstance(db, &msqlite.Config{})
	if err != nil {
		return fmt.Errorf("sync queue migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sync queue migrations: %w", err)
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("SQLiteStore.Migrate.no change")
			return nil
		}
		return fmt.Errorf("sync queue migrations up: %w", err)
	}
	logger.Info("SQLiteStore.Migrate.applied")
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, item SyncItem) error {
	enc, err := encodeItem(item)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sync_items (id, bucket, operation, entity_ids, writes, effects, undo, retry_count, max_retries, created_at, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, bucketPending, string(item.Operation), enc.entityIDs, enc.writes, enc.effects, enc.undo,
		item.RetryCount, item.MaxRetries, item.Timestamp.UTC().Format(time.RFC3339Nano), item.LastError,
	)
	if err != nil {
		return fmt.Errorf("append sync item %s: %w", item.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Pending(ctx context.Context) ([]SyncItem, error) {
	return s.list(ctx, bucketPending)
}

func (s *SQLiteStore) Failed(ctx context.Context) ([]SyncItem, error) {
	return s.list(ctx, bucketFailed)
}

func (s *SQLiteStore) Save(ctx context.Context, item SyncItem) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_items SET retry_count = ?, last_error = ? WHERE id = ? AND bucket = ?`,
		item.RetryCount, item.LastError, item.ID, bucketPending,
	)
	if err != nil {
		return fmt.Errorf("save sync item %s: %w", item.ID, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_items WHERE id = ? AND bucket = ?`, id, bucketPending)
	if err != nil {
		return fmt.Errorf("remove sync item %s: %w", id, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) MoveToFailed(ctx context.Context, item SyncItem) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_items SET bucket = ?, retry_count = ?, last_error = ? WHERE id = ? AND bucket = ?`,
		bucketFailed, item.RetryCount, item.LastError, item.ID, bucketPending,
	)
	if err != nil {
		return fmt.Errorf("fail sync item %s: %w", item.ID, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Discard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sync_items WHERE id = ? AND bucket = ?`, id, bucketFailed)
	if err != nil {
		return fmt.Errorf("discard sync item %s: %w", id, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Requeue(ctx context.Context, item SyncItem) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_items SET bucket = ?, retry_count = ?, last_error = ? WHERE id = ? AND bucket = ?`,
		bucketPending, item.RetryCount, item.LastError, item.ID, bucketFailed,
	)
	if err != nil {
		return fmt.Errorf("requeue sync item %s: %w", item.ID, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Rewrite(ctx context.Context, item SyncItem) error {
	enc, err := encodeItem(item)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_items SET writes = ?, effects = ?, undo = ? WHERE id = ?`,
		enc.writes, enc.effects, enc.undo, item.ID,
	)
	if err != nil {
		return fmt.Errorf("rewrite sync item %s: %w", item.ID, err)
	}
	return requireOneRow(res)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) list(ctx context.Context, bucket string) ([]SyncItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, entity_ids, writes, effects, undo, retry_count, max_retries, created_at, last_error
		 FROM sync_items WHERE bucket = ? ORDER BY seq`,
		bucket,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s sync items: %w", bucket, err)
	}
	defer rows.Close()

	var items []SyncItem
	for rows.Next() {
		var (
			item      SyncItem
			operation string
			entityIDs string
			writes    string
			effects   string
			undo      string
			createdAt string
		)
		if err := rows.Scan(&item.ID, &operation, &entityIDs, &writes, &effects, &undo,
			&item.RetryCount, &item.MaxRetries, &createdAt, &item.LastError); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		item.Operation = Operation(operation)
		if err := json.Unmarshal([]byte(entityIDs), &item.EntityIDs); err != nil {
			return nil, fmt.Errorf("decode entity ids of %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(writes), &item.Writes); err != nil {
			return nil, fmt.Errorf("decode writes of %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(effects), &item.Effects); err != nil {
			return nil, fmt.Errorf("decode effects of %s: %w", item.ID, err)
		}
		if err := json.Unmarshal([]byte(undo), &item.Undo); err != nil {
			return nil, fmt.Errorf("decode undo of %s: %w", item.ID, err)
		}
		if item.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("decode timestamp of %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// encodedItem holds the JSON columns of a row.
type encodedItem struct {
	entityIDs, writes, effects, undo string
}

func encodeItem(item SyncItem) (encodedItem, error) {
	var enc encodedItem
	columns := []struct {
		name string
		v    any
		dst  *string
	}{
		{"entity ids", item.EntityIDs, &enc.entityIDs},
		{"writes", item.Writes, &enc.writes},
		{"effects", nonNil(item.Effects), &enc.effects},
		{"undo", nonNil(item.Undo), &enc.undo},
	}
	for _, c := range columns {
		raw, err := json.Marshal(c.v)
		if err != nil {
			return enc, fmt.Errorf("encode %s of %s: %w", c.name, item.ID, err)
		}
		*c.dst = string(raw)
	}
	return enc, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}
