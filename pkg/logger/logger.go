package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	ServiceKey   contextKey = "service"
)

var defaultLogger = newLogger(os.Stdout, os.Getenv("LOG_LEVEL"))

func newLogger(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if level == "debug" {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// SetOutput redirects the default logger, mostly for tests.
func SetOutput(w io.Writer) {
	defaultLogger = newLogger(w, os.Getenv("LOG_LEVEL"))
}

func Default() *slog.Logger {
	return defaultLogger
}

func WithContext(ctx context.Context) *slog.Logger {
	l := defaultLogger

	for _, key := range []contextKey{RequestIDKey, UserIDKey, ServiceKey} {
		if v := ctx.Value(key); v != nil {
			l = l.With(string(key), v)
		}
	}
	return l
}

// Detach copies the logging attributes of ctx onto a fresh background context,
// for work that outlives the request that started it.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	for _, key := range []contextKey{RequestIDKey, UserIDKey, ServiceKey} {
		if v := ctx.Value(key); v != nil {
			out = context.WithValue(out, key, v)
		}
	}
	return out
}

func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}
