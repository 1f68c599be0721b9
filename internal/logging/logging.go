// Package logging provides structured logging for Rewind using log/slog.
//
// Context carries a handful of well-known keys (session, component, agent)
// so a single call to FromContext(ctx) produces a logger pre-populated with
// the fields relevant to whatever operation is running:
//
//	logger := logging.FromContext(ctx)
//	logger.Info("checkpoint created", slog.String("name", name))
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Context keys for logging values. Using private types avoids key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	agentKey
)

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name (e.g. "store", "controller", "hookpolicy").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithAgent adds the agent kind producing the current event (e.g. "claude-code").
func WithAgent(ctx context.Context, agentKind string) context.Context {
	return context.WithValue(ctx, agentKey, agentKind)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

var (
	defaultMu     sync.RWMutex
	defaultLogger *slog.Logger
)

// Configure installs the process-wide base logger. Call once at startup;
// safe to call again in tests.
func Configure(w io.Writer, level slog.Level) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func base() *slog.Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultLogger != nil {
		return defaultLogger
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// FromContext returns a logger with session/component/agent fields attached
// from ctx, falling back to the process-wide base logger for anything unset.
func FromContext(ctx context.Context) *slog.Logger {
	logger := base()
	if s := stringFromContext(ctx, sessionIDKey); s != "" {
		logger = logger.With(slog.String("session_id", s))
	}
	if c := stringFromContext(ctx, componentKey); c != "" {
		logger = logger.With(slog.String("component", c))
	}
	if a := stringFromContext(ctx, agentKey); a != "" {
		logger = logger.With(slog.String("agent", a))
	}
	return logger
}

// LevelFromString parses a log level name, defaulting to Info for unknown input.
func LevelFromString(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
