// file: internal/logging/slog.go
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level is the minimum severity a logger emits.
type Level = slog.Level

// Supported levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// levelVar is shared by every logger created through InitLogging so that
// SetLevel takes effect without rebuilding handlers.
var levelVar = new(slog.LevelVar)

// contextKey is used for request-scoped fields carried in a context.
type contextKey struct{}

// ContextWithFields returns a context carrying extra key/value pairs that
// WithContext will attach to log records.
func ContextWithFields(ctx context.Context, args ...any) context.Context {
	existing, _ := ctx.Value(contextKey{}).([]any)
	merged := make([]any, 0, len(existing)+len(args))
	merged = append(merged, existing...)
	merged = append(merged, args...)
	return context.WithValue(ctx, contextKey{}, merged)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps an existing slog logger.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		return GetNoopLogger()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return s
	}
	fields, _ := ctx.Value(contextKey{}).([]any)
	if len(fields) == 0 {
		return s
	}
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) WithField(key string, value any) Logger {
	return &slogLogger{l: s.l.With(key, value)}
}

// InitLogging installs a JSON logger writing to w as the default logger.
func InitLogging(level Level, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	levelVar.Set(level)
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelVar})
	SetDefaultLogger(NewSlogLogger(slog.New(handler)))
}

// SetupDefaultLogger configures the default logger from a level name.
// Output goes to stderr; stdout is reserved for protocol traffic.
func SetupDefaultLogger(level string) {
	InitLogging(ParseLevel(level), os.Stderr)
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLevel changes the minimum level of loggers created by InitLogging.
func SetLevel(level Level) {
	levelVar.Set(level)
}

// IsDebugEnabled reports whether debug records are currently emitted.
func IsDebugEnabled() bool {
	return levelVar.Level() <= LevelDebug
}
