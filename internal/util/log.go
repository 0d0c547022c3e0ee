// Package util carries the small shared pieces of the simulator: logging
// setup, retries, API rate pacing, and trading-calendar arithmetic.
package util

import (
	"log/slog"
	"os"
)

// NewLogger builds a JSON slog logger at the named level ("debug", "info",
// "warn", "error", case-insensitive). Unrecognized names fall back to info.
// Logs go to stderr so command output on stdout stays machine-readable.
func NewLogger(level string) *slog.Logger {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// SetDefault installs the logger as the process-wide slog default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
