// Package log provides the structured logging facade used across the node.
//
// The Logger interface is a thin key-value API over zap. Subsystems derive
// named child loggers with WithName and attach persistent fields with
// WithKV; output format (logfmt or json) and level are chosen once at
// construction from configuration.
//
// When a request carries an active trace span, a SpanEventRecorder can be
// attached so that log events are mirrored onto the span.
package log

import (
	"strings"

	"github.com/pkg/errors"
)

// Level is the minimum severity a logger emits.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name into a Level. Matching is
// case-insensitive.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "fatal":
		return LevelFatal, nil
	default:
		return LevelInfo, errors.Errorf("unknown log level %q", s)
	}
}

// Config selects the output format and minimum level for a new logger.
type Config struct {
	// Format is one of "logfmt", "json" or "console". Empty means "logfmt".
	Format string
	// Level is the minimum severity to emit.
	Level Level
}

// Logger is the logging interface used by every subsystem of the node.
// keysAndValues are treated as alternating key-value pairs
// (e.g., "key1", value1, "key2", value2).
type Logger interface {
	// Debug logs a message at debug level.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at info level.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at warn level.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at error level.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at fatal level and terminates the process.
	Fatal(msg string, keysAndValues ...any)

	// Name returns the dot-separated name of this logger.
	Name() string
	// WithName returns a child logger whose name is this logger's name
	// extended with the given subsystem name.
	WithName(name string) Logger
	// WithKV returns a logger that includes the given key-value pair in
	// every entry it emits.
	WithKV(key string, value any) Logger
	// WithSpanRecorder returns a logger that mirrors every entry onto the
	// given span recorder in addition to the regular output.
	WithSpanRecorder(rec SpanEventRecorder) Logger
}

// SpanEventRecorder records log events onto a tracing span.
type SpanEventRecorder interface {
	// TraceID returns the trace ID of the underlying span.
	TraceID() string
	// SpanID returns the span ID of the underlying span.
	SpanID() string
	// RecordEvent records a named event with the given attribute pairs.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError records a named error event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}

// NewNoopLogger returns a Logger that discards everything. It is the
// fallback when no logger is found in a context.
func NewNoopLogger() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (noopLogger) Name() string                                { return "" }
func (n noopLogger) WithName(string) Logger                    { return n }
func (n noopLogger) WithKV(string, any) Logger                 { return n }
func (n noopLogger) WithSpanRecorder(SpanEventRecorder) Logger { return n }
