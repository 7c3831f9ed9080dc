// Package logger provides process-wide logging for ctxexport.
//
// Messages go through a charmbracelet/log logger. The level and format come
// from configuration; --verbose forces debug level. Structured fields are
// attached with With.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	level             = log.WarnLevel
	format            = "text"
	base              = newLogger(os.Stderr, log.WarnLevel, "text")
)

func newLogger(w io.Writer, lvl log.Level, f string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "ctxexport",
	})
	switch f {
	case "json":
		l.SetFormatter(log.JSONFormatter)
	case "logfmt":
		l.SetFormatter(log.LogfmtFormatter)
	default:
		l.SetFormatter(log.TextFormatter)
	}
	return l
}

func rebuild() {
	lvl := level
	if verbose {
		lvl = log.DebugLevel
	}
	base = newLogger(output, lvl, format)
}

// Configure sets the level (debug, info, warn, error) and format (text, json, logfmt).
func Configure(lvl, f string) error {
	parsed, err := log.ParseLevel(strings.ToLower(lvl))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", lvl, err)
	}
	switch f {
	case "", "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log format %q", f)
	}

	mu.Lock()
	defer mu.Unlock()
	level = parsed
	if f != "" {
		format = f
	}
	rebuild()
	return nil
}

// SetLevel changes only the level.
func SetLevel(lvl string) error {
	return Configure(lvl, "")
}

// SetFormat changes only the format.
func SetFormat(f string) error {
	mu.RLock()
	lvl := level.String()
	mu.RUnlock()
	return Configure(lvl, f)
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	verbose = false
	output = os.Stderr
	level = log.WarnLevel
	format = "text"
	rebuild()
}

// With returns a logger carrying the given key/value pairs.
func With(keyvals ...any) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(keyvals...)
}

// Debug logs at debug level.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Debugf(format, args...)
}

// Section logs a phase header at debug level.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	base.Debug("=== " + name + " ===")
}

// Info logs at info level.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Infof(format, args...)
}

// Warn logs at warn level.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Warnf(format, args...)
}

// Error logs at error level.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Errorf(format, args...)
}
