package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&statusCmd{}, "sync")
	commander.Register(&replayCmd{}, "sync")
	commander.Register(&failedCmd{}, "sync")
	commander.Register(&discardCmd{}, "sync")
	commander.Register(&retryCmd{}, "sync")
	commander.Register(&recurringCmd{}, "recurring")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
