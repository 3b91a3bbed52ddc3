package cmd

import (
	"context"
	"os/signal"
	"syscall"
)

// rootCmdContext returns a context cancelled on SIGINT/SIGTERM, matching the
// server's own signal-handling construction.
func rootCmdContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
