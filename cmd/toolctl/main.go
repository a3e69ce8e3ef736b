package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mamadbah2/toolstock/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.OpenFromEnv).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
