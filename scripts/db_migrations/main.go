package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	ledger_config "github.com/carson-networks/budget-ledger/internal/config"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/storage/pgstore"
)

// Applies the document store schema. Run with "down" as the only argument to roll
// back one migration instead.
func main() {
	logger := logging.SetupLogging()

	env, err := ledger_config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("ProcessEnvironmentVariables")
	}
	if err := logging.SetLevel(logger, env.LogLevel); err != nil {
		logger.WithError(err).Fatal("logging.SetLevel")
	}

	down := len(os.Args) == 2 && os.Args[1] == "down"
	if err := run(context.Background(), env, down, logger); err != nil {
		logger.WithError(err).Fatal("db_migrations")
	}
}

func run(ctx context.Context, env *ledger_config.Config, down bool, logger *logrus.Logger) error {
	db, err := sql.Open("postgres", pgstore.ConnectionString(env))
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	defer db.Close()

	// The compose database can still be starting when this runs.
	wait := backoff.NewExponentialBackOff()
	wait.MaxElapsedTime = 30 * time.Second
	err = backoff.RetryNotify(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(wait, ctx), func(err error, next time.Duration) {
		logger.WithError(err).WithField("retryIn", next).Warn("db_migrations.ping")
	})
	if err != nil {
		return fmt.Errorf("postgres unreachable: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres.WithInstance: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(env.MigrationsSource, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate.NewWithDatabaseInstance: %w", err)
	}

	before, err := version(m)
	if err != nil {
		return err
	}

	if down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	after, err := version(m)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"source":               env.MigrationsSource,
		"down":                 down,
		"preMigrationVersion":  before,
		"postMigrationVersion": after,
	}).Info("Migration status")
	return nil
}

func version(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("m.Version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("schema version %d is dirty", v)
	}
	return v, nil
}
