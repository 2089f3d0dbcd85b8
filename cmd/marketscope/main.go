package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/vantagehq/marketscope/cmd"
)

func main() {
	// Interrupts cancel the run context so in-flight agents, captures,
	// and database writes stop cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}
