package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"rillcall/internal/core/domain"
	"rillcall/internal/infrastructure/presence"
)

func TestPrometheusCollector_RecordsCallMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheusCollector(reg)

	p.RecordTransition(domain.StateIdle, domain.StateCalling)
	p.RecordTransition(domain.StateCalling, domain.StateWaitingForAnswer)
	p.RecordRingAttempt()
	p.RecordRingAttempt()
	p.RecordMessageSent(domain.MessageCall)
	p.RecordMessageDropped("own_echo")
	p.RecordCallStarted(true)
	p.RecordCallEnded(domain.EndHangup, 3*time.Second)
	p.RecordRTPPacket("video", 1200)
	p.RecordRTPPacket("video", 800)
	p.RecordReceiverReport(128, 40)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.stateTransitions.WithLabelValues("idle", "calling")))
	assert.Equal(t, 0.0, testutil.ToFloat64(p.currentState.WithLabelValues("calling")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.currentState.WithLabelValues("waiting_for_answer")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.ringAttempts))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.messagesSent.WithLabelValues("call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.messagesDropped.WithLabelValues("own_echo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.callsStarted.WithLabelValues("caller")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.callsEnded.WithLabelValues("hangup")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.rtpPackets.WithLabelValues("video")))
	assert.Equal(t, 2000.0, testutil.ToFloat64(p.rtpBytes.WithLabelValues("video")))

	count, err := testutil.GatherAndCount(reg, "rillcall_call_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHealthChecker(t *testing.T) {
	ctx := context.Background()
	h := NewHealthChecker()
	h.AddPresenceCheck(presence.NewMemoryDirectory(time.Minute), time.Second)

	done := make(chan struct{})
	h.AddEngineCheck(done, time.Second)

	status := h.CheckAll(ctx)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Checks["presence"])
	assert.True(t, h.IsReady(ctx))

	close(done)
	status = h.CheckAll(ctx)
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "call engine stopped", status.Checks["call_engine"])

	h.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)
	status = h.CheckAll(ctx)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"])
	assert.False(t, h.IsReady(ctx))
}
