package logger

import (
	"log/slog"
	"os"
)

// NewTestLogger creates a logger for tests.
// WARN by default to keep test output quiet; set TEST_DEBUG to see everything.
func NewTestLogger() *slog.Logger {
	level := slog.LevelWarn
	if os.Getenv("TEST_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
