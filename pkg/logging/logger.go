package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// LevelTrace sits below debug and is used for per-event hover traffic.
const LevelTrace = slog.LevelDebug - 4

type contextKey string

const requestIDKey contextKey = "requestID"

var current atomic.Pointer[slog.Logger]

func init() {
	Configure(os.Stdout, slog.LevelInfo, false)
}

// Configure replaces the process-wide logger. JSON output is meant for
// machine consumption; the compact handler is the console default.
func Configure(w io.Writer, level slog.Level, jsonOutput bool) {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if jsonOutput {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = NewCompactHandler(w, opts)
	}
	current.Store(slog.New(h))
}

// SetLevel keeps the console format and changes the minimum level.
func SetLevel(level slog.Level) {
	Configure(os.Stdout, level, false)
}

// ParseLevel maps a verbosity name to a slog level. Unknown names yield info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "trace":
		return LevelTrace
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

// Logger exposes the underlying slog logger for callers that need With().
func Logger() *slog.Logger {
	return current.Load()
}

// WithRequestID stores a request ID on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID carried by ctx, if any.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey).(string); ok {
		return requestID
	}
	return ""
}

func withRequestID(ctx context.Context, args []any) []any {
	if requestID := GetRequestID(ctx); requestID != "" {
		return append([]any{"requestID", requestID}, args...)
	}
	return args
}

func Trace(msg string, args ...any) {
	current.Load().Log(context.Background(), LevelTrace, msg, args...)
}

func Debug(msg string, args ...any) {
	current.Load().Debug(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	current.Load().DebugContext(ctx, msg, withRequestID(ctx, args)...)
}

func Info(msg string, args ...any) {
	current.Load().Info(msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	current.Load().InfoContext(ctx, msg, withRequestID(ctx, args)...)
}

// Warn is for data problems that were skipped but should be looked at.
func Warn(msg string, args ...any) {
	current.Load().Warn(msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	current.Load().WarnContext(ctx, msg, withRequestID(ctx, args)...)
}

func Error(msg string, args ...any) {
	current.Load().Error(msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	current.Load().ErrorContext(ctx, msg, withRequestID(ctx, args)...)
}
