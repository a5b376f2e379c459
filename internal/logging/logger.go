// Package logging provides a thin, component-scoped wrapper over log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/term"
)

// Logger is the logging surface used throughout the orchestrator. Every
// method takes a printf-style format string so call sites read the same
// whether or not a component logger is wired in.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	With(component string) Logger
}

// Config controls the root handler. Format is "auto" (TTY detects text vs
// JSON), "text", or "json". Level is one of debug/info/warn/error.
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

var (
	mu   sync.RWMutex
	root *slog.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// Configure installs the process-wide root logger used by NewComponentLogger.
// cmd/orchestrate calls it once before any subcommand runs. Component
// loggers read the root logger on every call, so loggers constructed before
// Configure also log through the new handler.
func Configure(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	level := parseLevel(cfg.Level)

	useJSON := cfg.Format == "json"
	if cfg.Format == "" || cfg.Format == "auto" {
		useJSON = !isTTY(out)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	mu.Lock()
	root = slog.New(handler)
	mu.Unlock()
}

func parseLevel(s string) slog.Level {
	switch s {
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

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// componentLogger logs every record with a component=<name> attribute.
type componentLogger struct {
	component string
}

// NewComponentLogger returns a Logger scoped to component. It always reads
// the current root handler, so it picks up a Configure call made after
// construction.
func NewComponentLogger(component string) Logger {
	return componentLogger{component: component}
}

func (c componentLogger) log(level slog.Level, format string, args ...any) {
	mu.RLock()
	l := root
	mu.RUnlock()
	l.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", c.component)
}

func (c componentLogger) Debug(format string, args ...any) { c.log(slog.LevelDebug, format, args...) }
func (c componentLogger) Info(format string, args ...any)  { c.log(slog.LevelInfo, format, args...) }
func (c componentLogger) Warn(format string, args ...any)  { c.log(slog.LevelWarn, format, args...) }
func (c componentLogger) Error(format string, args ...any) { c.log(slog.LevelError, format, args...) }

func (c componentLogger) With(component string) Logger {
	if c.component == "" {
		return componentLogger{component: component}
	}
	return componentLogger{component: c.component + "." + component}
}

// nopLogger discards everything. Used by OrNop so callers never need a nil
// check before logging.
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (n nopLogger) With(string) Logger { return n }

// Nop returns a Logger whose methods are no-ops.
func Nop() Logger { return nopLogger{} }

// IsNil reports whether logger is a nil interface.
func IsNil(logger Logger) bool {
	return logger == nil
}

// OrNop returns logger unchanged unless it is nil, in which case it returns
// a no-op Logger so callers can log unconditionally.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
