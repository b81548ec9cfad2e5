package logger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	assert.True(t, New("debug").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("info").Core().Enabled(zapcore.DebugLevel))
	assert.False(t, New("warn").Core().Enabled(zapcore.InfoLevel))
	// unknown levels fall back to info
	assert.True(t, New("loud").Core().Enabled(zapcore.InfoLevel))
	assert.False(t, New("loud").Core().Enabled(zapcore.DebugLevel))
}

func TestContextLogger_For(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cl := NewContextLogger(zap.New(core).Sugar())

	ctx := WithParticipant(WithTraceID(context.Background(), "trace-1"), "alice@web-1")
	cl.For(ctx).Infow("Call placed")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "alice@web-1", fields["participant"])
}

func TestContextLogger_LogRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core).Sugar()
	cl := NewContextLogger(base)

	assert.Same(t, base, cl.For(context.Background()))

	cl.LogRequest(context.Background(), "POST", "/api/v1/calls", 200, 12*time.Millisecond)
	cl.LogRequest(context.Background(), "GET", "/ready", 503, time.Millisecond)

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(12), entries[0].ContextMap()["duration_ms"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
