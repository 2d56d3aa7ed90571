// Package observability provides structured logging, audit logging, and
// Prometheus metrics for the search core.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger provides structured logging with request and tenant correlation.
//
// Built on log/slog:
//   - configurable level (debug, info, warn, error)
//   - JSON output for production, text for development
//   - request_id / tenant_id / caller_id pulled from context automatically
type Logger struct {
	logger *slog.Logger
	config LogConfig
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string `yaml:"level"`

	// Format specifies output format: "json" or "text".
	Format string `yaml:"format"`

	// Output is the writer for log output (defaults to os.Stdout).
	Output io.Writer `yaml:"-"`
}

type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// TenantIDKey is the context key for the caller's tenant.
	TenantIDKey contextKey = "tenant_id"

	// CallerIDKey is the context key for the caller's user ID.
	CallerIDKey contextKey = "caller_id"
)

// NewLogger creates a structured logger. Level defaults to "info" and
// format to "json".
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Level == "" {
		config.Level = "info"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	opts := &slog.HandlerOptions{Level: LevelFromString(config.Level)}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{logger: slog.New(handler), config: config}
}

// NewNopLogger returns a logger that discards all output. Useful in tests.
func NewNopLogger() *Logger {
	return NewLogger(LogConfig{Output: io.Discard})
}

// LevelFromString converts a string to a slog.Level, defaulting to info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
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

// WithFields returns a logger with the given fields added to all records.
//
// Example:
//
//	searchLog := logger.WithFields("component", "search")
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), config: l.config}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	attrs := make([]any, 0, len(args)+6)

	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if id, ok := ctx.Value(TenantIDKey).(string); ok && id != "" {
		attrs = append(attrs, "tenant_id", id)
	}
	if id, ok := ctx.Value(CallerIDKey).(string); ok && id != "" {
		attrs = append(attrs, "caller_id", id)
	}

	attrs = append(attrs, args...)
	l.logger.Log(ctx, level, msg, attrs...)
}

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithTenantID attaches a tenant ID to the context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, TenantIDKey, tenantID)
}

// WithCallerID attaches a caller ID to the context.
func WithCallerID(ctx context.Context, callerID string) context.Context {
	return context.WithValue(ctx, CallerIDKey, callerID)
}
