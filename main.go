package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/carson-networks/budget-ledger/api"
	"github.com/carson-networks/budget-ledger/internal/config"
	"github.com/carson-networks/budget-ledger/internal/logging"
	"github.com/carson-networks/budget-ledger/internal/service"
	"github.com/carson-networks/budget-ledger/internal/storage/pgstore"
	"github.com/carson-networks/budget-ledger/internal/syncqueue"
)

func main() {
	logger := logging.SetupLogging()
	logger.Info("budget-ledger starting")

	envConfig, err := config.ProcessEnvironmentVariables()
	if err != nil {
		logger.WithError(err).Fatal("config.ProcessEnvironmentVariables")
		return
	}
	if err := logging.SetLevel(logger, envConfig.LogLevel); err != nil {
		logger.WithError(err).Fatal("logging.SetLevel")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := pgstore.New(envConfig, logger)
	if err != nil {
		logger.WithError(err).Fatal("pgstore.New")
		return
	}
	defer store.Close()

	queueStore, err := syncqueue.OpenSQLiteStore(envConfig.SyncQueuePath, logger)
	if err != nil {
		logger.WithError(err).Fatal("syncqueue.OpenSQLiteStore")
		return
	}
	defer queueStore.Close()

	queue := syncqueue.New(queueStore, store, logger,
		syncqueue.WithMaxRetries(envConfig.SyncMaxRetries),
		syncqueue.WithRateLimit(envConfig.SyncReplayRate, 1),
		syncqueue.WithReplayInterval(envConfig.SyncReplayInterval),
	)

	session := service.NewLedger(store, queue, service.Options{
		Workers:           envConfig.OperatorWorkers,
		CacheTTL:          envConfig.CacheTTL,
		RecurringInterval: envConfig.RecurringInterval,
	}, logger)
	defer session.Close()

	if err := session.Load(ctx); err != nil {
		logger.WithError(err).Fatal("Ledger.Load")
		return
	}

	httpRest := api.Rest{
		Logger:  logger,
		Port:    envConfig.Port,
		Service: service.NewService(session),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Start(gctx) })
	g.Go(func() error { return httpRest.Serve(gctx) })

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("budget-ledger stopped")
		return
	}
	logrus.Info("budget-ledger stopped")
}
