// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the console handler and an optional rotated log file.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is "text" or "json" for the console handler.
	Format string
	// File, when set, also receives JSON records through lumberjack rotation.
	File       string
	MaxSizeMB  int
	MaxBackups int
	// Console overrides stderr, mainly for tests.
	Console io.Writer
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Setup installs the default logger described by cfg.
//
// Arguments:
//   - cfg: The logger configuration.
//
// Returns:
//   - func() error: Closes the log file, if any, and restores a stderr text logger.
//   - error: An unknown level or format.
func Setup(cfg Config) (func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
			}
			return a
		},
	}

	var consoleHandler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		consoleHandler = slog.NewTextHandler(console, opts)
	case "json":
		consoleHandler = slog.NewJSONHandler(console, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	handler := consoleHandler
	var rotator *lumberjack.Logger
	if cfg.File != "" {
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		handler = fanout{consoleHandler, slog.NewJSONHandler(rotator, opts)}
	}

	slog.SetDefault(slog.New(handler))

	cleanup := func() error {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return cleanup, nil
}

// Module returns the default logger tagged with a module attribute.
func Module(name string) *slog.Logger {
	return slog.Default().With("module", name)
}
