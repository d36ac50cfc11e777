// Package logging builds the slog logger used across the service. Records are
// written by a charmbracelet/log handler in text or JSON form.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Config controls logger output.
type Config struct {
	Level  string    `koanf:"level"`
	JSON   bool      `koanf:"json"`
	Output io.Writer `koanf:"-"`
}

// ParseLevel maps a level name to a charm level. Unknown names map to info.
func ParseLevel(level string) charmlog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return charmlog.DebugLevel
	case "warn", "warning":
		return charmlog.WarnLevel
	case "error":
		return charmlog.ErrorLevel
	default:
		return charmlog.InfoLevel
	}
}

// New returns an slog.Logger backed by charmbracelet/log. Output defaults to
// stderr so stdio MCP sessions keep stdout clean.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	handler := charmlog.NewWithOptions(out, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           ParseLevel(cfg.Level),
	})
	if cfg.JSON {
		handler.SetFormatter(charmlog.JSONFormatter)
	} else {
		handler.SetFormatter(charmlog.TextFormatter)
	}
	return slog.New(handler)
}

// Setup builds a logger from cfg and installs it as the slog default.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}
