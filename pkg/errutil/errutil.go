package errutil

import (
	"fmt"
	"log/slog"
)

// Small helpers for the error categories the bot deals with. They run the
// provided function, log any failure with context, and keep the caller's
// error handling to one line.

// HandleDiscordError executes fn and logs any error as a Discord-related
// failure. It returns whatever error fn returns, unmodified.
func HandleDiscordError(operation string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}
	err := fn()
	if err != nil {
		slog.Error("Discord operation failed", "operation", operation, "error", err)
	}
	return err
}

// HandleStoreError executes fn and logs any error as a persistent-store
// failure. Store failures are fatal for the operation that hit them; the
// returned error is wrapped with the operation name.
func HandleStoreError(operation string, fn func() error) error {
	if fn == nil {
		return fmt.Errorf("nil function provided")
	}
	err := fn()
	if err == nil {
		return nil
	}
	slog.Error("Store operation failed", "operation", operation, "error", err)
	return fmt.Errorf("store %s: %w", operation, err)
}
