// Package logging builds the structured logger used by the uploader.
//
// Components accept an optional *slog.Logger; a nil logger disables logging
// for that component. New returns a logger whose every record carries the
// run id so that a single publish can be followed across concurrent uploads.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Format selects the slog handler.
type Format string

const (
	// FormatText renders human readable key=value lines.
	FormatText Format = "text"

	// FormatJSON renders one JSON object per record.
	FormatJSON Format = "json"
)

// Options configures New.
type Options struct {
	Level  string
	Format Format
	// RunID overrides the generated run id (tests).
	RunID string
}

// ParseLevel converts a textual level to slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	return slog.New(handler).With(slog.String("run_id", runID))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
