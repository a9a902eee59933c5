package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. JSON output so log
// aggregation can index the protocol attrs (broker_id, session_id, command).
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

// Discard returns a logger that drops everything; used in tests that don't
// assert on log output.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
