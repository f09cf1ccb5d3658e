// File: main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/skryptik/sift-cli/cmd"
)

func main() {
	// Ctrl-C and SIGTERM cancel the context so the browser and any open
	// database connections shut down cleanly.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
