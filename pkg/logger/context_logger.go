package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	ParticipantKey contextKey = "participant"
)

var contextKeys = []contextKey{TraceIDKey, ParticipantKey}

// ContextLogger enriches log lines with request-scoped values.
type ContextLogger struct {
	logger *zap.SugaredLogger
}

func NewContextLogger(logger *zap.SugaredLogger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithParticipant records the authenticated UI participant ("user@client").
func WithParticipant(ctx context.Context, participant string) context.Context {
	return context.WithValue(ctx, ParticipantKey, participant)
}

// For returns the logger carrying every value found in ctx.
func (cl *ContextLogger) For(ctx context.Context) *zap.SugaredLogger {
	var kv []interface{}
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			kv = append(kv, string(key), v)
		}
	}
	if len(kv) == 0 {
		return cl.logger
	}
	return cl.logger.With(kv...)
}

// LogRequest writes the access log line of one UI request.
func (cl *ContextLogger) LogRequest(ctx context.Context, method, route string, status int, took time.Duration) {
	log := cl.For(ctx).Infow
	if status >= 500 {
		log = cl.For(ctx).Warnw
	}
	log("HTTP request",
		"method", method,
		"route", route,
		"status", status,
		"duration_ms", took.Milliseconds(),
	)
}
