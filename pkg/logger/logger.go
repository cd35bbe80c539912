package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// New returns the service's JSON logger.
// level overrides the env-derived default when set (debug, info, warn, error).
func New(appEnv, level string) *slog.Logger {
	return NewWithWriter(os.Stdout, appEnv, level)
}

func NewWithWriter(w io.Writer, appEnv, level string) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(appEnv, level)})
	return slog.New(h).With("service", "calls")
}

func parseLevel(appEnv, level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if appEnv == "local" || appEnv == "dev" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Detach returns a context that keeps ctx's logger but none of its cancellation or deadline.
// Used for work that outlives the request, like notification fan-out.
func Detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// ShutdownFlush is a hook for buffered handlers. The JSON handler writes synchronously.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }
