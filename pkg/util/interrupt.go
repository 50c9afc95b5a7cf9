package util

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// WaitForInterrupt blocks until SIGINT or SIGTERM, then runs the shutdown
// callback (if any) before returning.
func WaitForInterrupt(shutdown func()) {
	waitForInterruptContext(context.Background(), shutdown)
}

// waitForInterruptContext allows tests to inject a context that can be
// cancelled without real OS signals.
func waitForInterruptContext(parent context.Context, shutdown func()) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	slog.Info("shutdown signal received")

	if shutdown != nil {
		shutdown()
	}
}
