// Package logging provides leveled, subsystem-tagged logging for bddhost,
// built on log/slog.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Level defines the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String satisfies fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var (
	mu     sync.RWMutex
	logger *slog.Logger
)

// Init installs the package-wide logger. Safe to call more than once;
// the most recent call wins. Never called implicitly, and nothing in
// bddhost calls it; until it is called, messages go to stderr at INFO
// level.
func Init(level Level, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return logger
}

func logInternal(level Level, subsystem string, err error, messageFmt string, args ...any) {
	l := current()
	if !l.Enabled(context.Background(), level.slogLevel()) {
		return
	}
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.LogAttrs(context.Background(), level.slogLevel(), msg, attrs...)
}

// Debug logs a debug-level message tagged with a subsystem.
func Debug(subsystem, messageFmt string, args ...any) { logInternal(LevelDebug, subsystem, nil, messageFmt, args...) }

// Info logs an info-level message tagged with a subsystem.
func Info(subsystem, messageFmt string, args ...any) { logInternal(LevelInfo, subsystem, nil, messageFmt, args...) }

// Warn logs a warning-level message tagged with a subsystem.
func Warn(subsystem, messageFmt string, args ...any) { logInternal(LevelWarn, subsystem, nil, messageFmt, args...) }

// Error logs an error-level message with an attached error value.
func Error(subsystem string, err error, messageFmt string, args ...any) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// Event is a structured, subsystem-agnostic record of a notable
// state transition — a mock restored, a config value changed, a
// coverage stats file rotated. Subsystems that want a single
// filterable line for these transitions use Audit rather than Info.
type Event struct {
	Action  string
	Outcome string // "success" or "failure"
	Target  string
	Details string
	Err     string
}

// Audit logs a structured Event at INFO level with an [EVENT] prefix
// so it can be grepped or filtered independently of ordinary logging.
func Audit(e Event) {
	parts := make([]string, 0, 5)
	parts = append(parts, "action="+e.Action)
	parts = append(parts, "outcome="+e.Outcome)
	if e.Target != "" {
		parts = append(parts, "target="+e.Target)
	}
	if e.Details != "" {
		parts = append(parts, "details="+e.Details)
	}
	if e.Err != "" {
		parts = append(parts, "error="+e.Err)
	}
	joined := parts[0]
	for _, p := range parts[1:] {
		joined += " " + p
	}
	logInternal(LevelInfo, "EVENT", nil, "[EVENT] %s", joined)
}

// Since formats a duration the way progress/report output across the
// codebase renders elapsed time, kept here so every caller formats
// durations identically.
func Since(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}
