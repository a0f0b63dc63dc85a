package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/carson-networks/budget-ledger/internal/service"
)

// run opens a session, calls fn and reports its error on stderr.
func run(ctx context.Context, fn func(context.Context, *service.Service) error) subcommands.ExitStatus {
	svc, closeSession, err := openSession(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeSession()

	if err := fn(ctx, svc); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type statusCmd struct{}

func (*statusCmd) Name() string     { return "status" }
func (*statusCmd) Synopsis() string { return "show connectivity and sync queue counts" }
func (*statusCmd) Usage() string {
	return `ledgerctl status
`
}
func (*statusCmd) SetFlags(*flag.FlagSet) {}

func (*statusCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		status, err := svc.Sync.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, status)
	})
}

type replayCmd struct{}

func (*replayCmd) Name() string     { return "replay" }
func (*replayCmd) Synopsis() string { return "write every queued item to the store, oldest first" }
func (*replayCmd) Usage() string {
	return `ledgerctl replay

  Replays the sync queue once. Items that fail with a transient error stay queued,
  items past their retry limit move to the failed list.
`
}
func (*replayCmd) SetFlags(*flag.FlagSet) {}

func (*replayCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		result, err := svc.Sync.Replay(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(os.Stdout, map[string][]string{
			"synced":   result.Synced,
			"retrying": result.Retrying,
			"held":     result.Held,
		}); err != nil {
			return err
		}
		return result.Err()
	})
}

type failedCmd struct{}

func (*failedCmd) Name() string     { return "failed" }
func (*failedCmd) Synopsis() string { return "list queued items that exhausted their retries" }
func (*failedCmd) Usage() string {
	return `ledgerctl failed
`
}
func (*failedCmd) SetFlags(*flag.FlagSet) {}

func (*failedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		items, err := svc.Sync.Failed(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, items)
	})
}

type discardCmd struct{}

func (*discardCmd) Name() string     { return "discard" }
func (*discardCmd) Synopsis() string { return "drop a failed item by id" }
func (*discardCmd) Usage() string {
	return `ledgerctl discard <id>
`
}
func (*discardCmd) SetFlags(*flag.FlagSet) {}

func (*discardCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		return svc.Sync.Discard(ctx, id)
	})
}

type retryCmd struct{}

func (*retryCmd) Name() string     { return "retry" }
func (*retryCmd) Synopsis() string { return "move a failed item back to the queue" }
func (*retryCmd) Usage() string {
	return `ledgerctl retry <id>
`
}
func (*retryCmd) SetFlags(*flag.FlagSet) {}

func (*retryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	id := f.Arg(0)
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		item, err := svc.Sync.Retry(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, item)
	})
}

type recurringCmd struct{}

func (*recurringCmd) Name() string     { return "recurring" }
func (*recurringCmd) Synopsis() string { return "generate due recurring transactions once" }
func (*recurringCmd) Usage() string {
	return `ledgerctl recurring
`
}
func (*recurringCmd) SetFlags(*flag.FlagSet) {}

func (*recurringCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, svc *service.Service) error {
		report, err := svc.Recurring.Run(ctx)
		if err != nil {
			return err
		}
		if err := printJSON(os.Stdout, report); err != nil {
			return err
		}
		return errors.Join(report.Errors...)
	})
}
