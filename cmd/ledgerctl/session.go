package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/carson-networks/budget-ledger/internal/config"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/storage/pgstore"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

// openSession loads a ledger session against the configured store and queue file.
// The returned close func releases everything it opened.
func openSession(ctx context.Context) (*service.Service, func(), error) {
	logger := logging.SetupLogging()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	env, err := config.ProcessEnvironmentVariables()
	if err != nil {
		return nil, nil, err
	}

	store, err := pgstore.New(env, logger)
	if err != nil {
		return nil, nil, err
	}
	queueStore, err := syncqueue.OpenSQLiteStore(env.SyncQueuePath, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	queue := syncqueue.New(queueStore, store, logger,
		syncqueue.WithMaxRetries(env.SyncMaxRetries),
		syncqueue.WithRateLimit(env.SyncReplayRate, 1),
	)
	session := service.NewLedger(store, queue, service.Options{Workers: env.OperatorWorkers, CacheTTL: env.CacheTTL}, logger)

	closeAll := func() {
		session.Close()
		_ = queueStore.Close()
		_ = store.Close()
	}
	if err := session.Load(ctx); err != nil {
		closeAll()
		return nil, nil, err
	}
	return service.NewService(session), closeAll, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
