// Package logging provides structured logging built on logrus with request
// scoped fields (trace ID, user ID) carried through context.Context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	// TraceIDKey is the context key for the request trace ID.
	TraceIDKey contextKey = "trace_id"
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// RoleKey is the context key for the authenticated user role.
	RoleKey contextKey = "role"
)

// Logger wraps logrus.Logger with the service name attached to every entry.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a logger for a service. level is a logrus level name and
// format is either "json" or "text".
func New(service, level, format string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return &Logger{Logger: l, service: service}
}

// NewFromLogrus wraps an existing logrus logger. Used by tests with the
// logrus test hook.
func NewFromLogrus(service string, l *logrus.Logger) *Logger {
	return &Logger{Logger: l, service: service}
}

// Default returns an info level JSON logger.
func Default() *Logger {
	return New("mvc", "info", "json")
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l, service: "discard"}
}

// Service returns the service name.
func (l *Logger) Service() string {
	return l.service
}

// WithContext returns an entry carrying the service name and any request
// fields found in ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	fields := logrus.Fields{"service": l.service}
	if ctx != nil {
		if traceID := GetTraceID(ctx); traceID != "" {
			fields["trace_id"] = traceID
		}
		if userID := GetUserID(ctx); userID != "" {
			fields["user_id"] = userID
		}
	}
	return l.Logger.WithFields(fields).WithContext(ctx)
}

// LogRequest logs a completed HTTP request.
func (l *Logger) LogRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"method":      method,
		"path":        path,
		"status":      status,
		"duration_ms": duration.Milliseconds(),
	})

	switch {
	case status >= 500:
		entry.Error("HTTP request")
	case status >= 400:
		entry.Warn("HTTP request")
	default:
		entry.Info("HTTP request")
	}
}

// LogSecurityEvent logs an event relevant to access control.
func (l *Logger) LogSecurityEvent(ctx context.Context, event string, details map[string]interface{}) {
	l.WithContext(ctx).WithFields(details).WithField("security_event", event).Warn("Security event")
}

// =============================================================================
// Context helpers
// =============================================================================

// NewTraceID generates a new trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// WithTraceID stores a trace ID in ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID returns the trace ID stored in ctx, if any.
func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(TraceIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID stores a user ID in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID returns the user ID stored in ctx, if any.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// GetRole returns the role stored in ctx, if any.
func GetRole(ctx context.Context) string {
	if v, ok := ctx.Value(RoleKey).(string); ok {
		return v
	}
	return ""
}
