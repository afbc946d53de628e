// Package logging configures structured logging for splitledger.
//
// Usage:
//
//	logger := logging.New(os.Stderr, logging.Options{Level: "debug", Format: "text"})
//	slog.SetDefault(logger)
//
// The "text" format is colored tint output for terminals; "json" is for log shippers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the log level and output format.
type Options struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string
	// Format is text or json (default: text).
	Format string
	// NoColor disables ANSI colors in text output.
	NoColor bool
}

// New builds a logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := ParseLevel(opts.Level)
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  level == slog.LevelDebug,
		NoColor:    opts.NoColor,
	}))
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(w io.Writer, opts Options) *slog.Logger {
	logger := New(w, opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a level name to a slog.Level, falling back to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateFormat reports an error for an unknown format name.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text", "json":
		return nil
	}
	return fmt.Errorf("unknown log format %q (want text or json)", format)
}
