package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var setupOnce sync.Once

// Setup installs the process-wide slog default: text to stdout plus a
// rotated JSON file under logDir. Idempotent and safe to call from tests.
// debug enables Debug-level records, which the refresh pipelines use for
// store-hit/refresh tracing.
func Setup(logDir string, debug bool) error {
	var err error
	setupOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		var w io.Writer = os.Stdout
		if logDir != "" {
			if mkErr := os.MkdirAll(logDir, 0o755); mkErr != nil {
				err = mkErr
				return
			}
			rotated := &lumberjack.Logger{
				Filename:   filepath.Join(logDir, "ally.log"),
				MaxSize:    20, // megabytes
				MaxBackups: 5,
				MaxAge:     30, // days
				Compress:   true,
			}
			w = io.MultiWriter(os.Stdout, rotated)
		}

		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	})
	return err
}
