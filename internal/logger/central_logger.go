package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	// traceLevelValue is slog.Level for TRACE level (below Debug which is -4)
	traceLevelValue = slog.Level(-8)

	// floatPrecisionRatio rounds floats to 3 decimal places in log output
	floatPrecisionRatio = 1000.0
)

// loggerContextKey is a typed key for context values to avoid string collisions.
type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID() to set values.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// CentralLogger manages module-aware logging with console and file routing
type CentralLogger struct {
	config       *LoggingConfig
	timezone     *time.Location
	baseHandler  slog.Handler
	file         *os.File
	moduleLevels map[string]slog.Level
	mu           sync.RWMutex
}

// NewCentralLogger creates a centralized logger from configuration
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}
	applyConfigDefaults(cfg)

	var tz *time.Location
	switch cfg.Timezone {
	case "", "Local":
		tz = time.Local
	default:
		var err error
		tz, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
	}

	cl := &CentralLogger{
		config:       cfg,
		timezone:     tz,
		moduleLevels: make(map[string]slog.Level, len(cfg.ModuleLevels)),
	}
	for module, levelStr := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLogLevel(levelStr)
	}

	if err := cl.createBaseHandler(); err != nil {
		return nil, fmt.Errorf("failed to create base handler: %w", err)
	}

	return cl, nil
}

// createBaseHandler creates the default handler for console and/or file output
func (cl *CentralLogger) createBaseHandler() error {
	var handlers []slog.Handler

	if cl.config.Console.Enabled {
		handlers = append(handlers, newTextHandler(os.Stderr, parseLogLevel(cl.config.Console.Level)))
	}

	if cl.config.FileOutput.Enabled {
		if err := ensureFileDirectory(cl.config.FileOutput.Path); err != nil {
			return err
		}
		f, err := os.OpenFile(cl.config.FileOutput.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cl.file = f
		handlers = append(handlers, newJSONHandler(f, parseLogLevel(cl.config.FileOutput.Level), cl.timezone))
	}

	switch len(handlers) {
	case 0:
		cl.baseHandler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		cl.baseHandler = handlers[0]
	default:
		cl.baseHandler = &multiHandler{handlers: handlers}
	}
	return nil
}

// Module returns a logger scoped to a specific module
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return NewDiscard()
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	level, ok := cl.moduleLevels[name]
	if !ok {
		level = parseLogLevel(cl.config.DefaultLevel)
	}

	return &moduleLogger{
		module: name,
		logger: slog.New(cl.baseHandler),
		level:  level,
	}
}

// Root returns an unscoped logger. Its first Module call resolves the
// configured level for that module.
func (cl *CentralLogger) Root() Logger {
	if cl == nil {
		return NewDiscard()
	}
	return &moduleLogger{
		central: cl,
		logger:  slog.New(cl.baseHandler),
		level:   parseLogLevel(cl.config.DefaultLevel),
	}
}

// Close flushes and closes the log file if one is open
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.file == nil {
		return nil
	}
	err := errors.Join(cl.file.Sync(), cl.file.Close())
	cl.file = nil
	return err
}

// ensureFileDirectory creates the directory for a file path if it doesn't exist
func ensureFileDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == filePath {
		return nil
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// parseLogLevel converts string level to slog.Level
func parseLogLevel(level string) slog.Level {
	l, _ := ParseLevel(level)
	switch l {
	case LogLevelTrace:
		return traceLevelValue
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel validates a configured level name, case-insensitively.
func ParseLevel(level string) (LogLevel, bool) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(level))); l {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return l, true
	default:
		return "", false
	}
}

// newTextHandler builds the console handler; timestamps are left to the environment
func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	})
}

// newJSONHandler builds the file handler with timestamps in the configured zone
func newJSONHandler(w io.Writer, level slog.Level, tz *time.Location) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				return slog.String(slog.TimeKey, a.Value.Time().In(tz).Format(time.RFC3339))
			}
			return a
		},
	})
}

// NewSlogLogger creates a logger writing text records to w; intended for tests and tools
func NewSlogLogger(w io.Writer, level LogLevel) Logger {
	lvl := parseLogLevel(string(level))
	return &moduleLogger{
		logger: slog.New(newTextHandler(w, lvl)),
		level:  lvl,
	}
}

// NewDiscard returns a logger that drops everything
func NewDiscard() Logger {
	return &moduleLogger{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		level:  slog.LevelError + 1,
	}
}

// moduleLogger implements Logger interface for a specific module
type moduleLogger struct {
	central *CentralLogger // set only on the root logger
	module  string
	logger  *slog.Logger
	level   slog.Level
	fields  []Field
}

// Module creates a sub-module logger with its own copy of fields
func (m *moduleLogger) Module(name string) Logger {
	if m.central != nil && m.module == "" && len(m.fields) == 0 {
		return m.central.Module(name)
	}
	module := name
	if m.module != "" {
		module = m.module + "." + name
	}
	return &moduleLogger{
		module: module,
		logger: m.logger,
		level:  m.level,
		fields: slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.log(traceLevelValue, msg, fields...) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(slog.LevelDebug, msg, fields...) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(slog.LevelInfo, msg, fields...) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(slog.LevelWarn, msg, fields...) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(slog.LevelError, msg, fields...) }

// Log logs a message with explicit level
func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.log(parseLogLevel(string(level)), msg, fields...)
}

// With returns a new logger with accumulated fields
func (m *moduleLogger) With(fields ...Field) Logger {
	return &moduleLogger{
		module: m.module,
		logger: m.logger,
		level:  m.level,
		fields: slices.Concat(m.fields, fields),
	}
}

// WithContext returns a logger carrying the context trace ID, if any
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return m
	}
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok || traceID == "" {
		return m
	}
	return m.With(String(traceIDKey, traceID))
}

// Flush is a no-op; the central logger owns file handles
func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) log(level slog.Level, msg string, fields ...Field) {
	if level < m.level {
		return
	}

	attrs := make([]slog.Attr, 0, len(m.fields)+len(fields)+1)
	if m.module != "" {
		attrs = append(attrs, slog.String(moduleKey, m.module))
	}
	for i := range m.fields {
		attrs = append(attrs, fieldToAttr(m.fields[i]))
	}
	for i := range fields {
		attrs = append(attrs, fieldToAttr(fields[i]))
	}

	m.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// fieldToAttr converts Field to slog.Attr
func fieldToAttr(f Field) slog.Attr {
	switch v := f.Value.(type) {
	case string:
		return slog.String(f.Key, v)
	case int:
		return slog.Int(f.Key, v)
	case int64:
		return slog.Int64(f.Key, v)
	case float64:
		return slog.Float64(f.Key, math.Round(v*floatPrecisionRatio)/floatPrecisionRatio)
	case bool:
		return slog.Bool(f.Key, v)
	case time.Time:
		return slog.Time(f.Key, v)
	case time.Duration:
		return slog.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return slog.Any(f.Key, v)
	}
}

// multiHandler fans a record out to several handlers
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler interface requires record by value
func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
