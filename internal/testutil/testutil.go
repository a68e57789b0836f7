// Package testutil provides shared test helpers.
package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that discards all output.
// Use in tests to reduce noise.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
