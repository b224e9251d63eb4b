package cmd

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// newLogger creates a structured logger writing leveled, timestamped lines to w.
//
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})

	return slog.New(handler)
}
