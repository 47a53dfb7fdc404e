// Package logger provides a structured, module-aware logging system built on Go's standard log/slog.
//
// Components receive a Logger and scope it with Module:
//
//	log := central.Module("sightings")
//	log.Info("Sighting created",
//	    logger.Int("id", created.ID),
//	    logger.String("zone", created.Zone))
//
// Console output is human-readable text without timestamps; file output is JSON.
// Tests use NewSlogLogger with a buffer, or NewDiscard when output is irrelevant.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
// Keys are interned using unique.Make() so repeated keys share one allocation.
type Field struct {
	Key   string
	Value any
}

func internKey(key string) string {
	return unique.Make(key).Value()
}

var (
	errorKey   = internKey("error")
	moduleKey  = internKey("module")
	traceIDKey = internKey("trace_id")
)

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field for structured logging.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field for structured logging.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field for structured logging.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a 64-bit float field for structured logging.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field for structured logging.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field for structured logging.
// The field key is always "error". If err is nil, the value will be nil.
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field for structured logging.
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value}
}

// Time creates a time field for structured logging.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field with any value for structured logging.
// Prefer the type-specific constructors for simple types.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}

// OrDiscard returns log, or a discard logger when log is nil.
func OrDiscard(log Logger) Logger {
	if log == nil {
		return NewDiscard()
	}
	return log
}
