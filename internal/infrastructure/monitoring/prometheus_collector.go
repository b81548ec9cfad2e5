package monitoring

import (
	"time"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector records call engine and media metrics.
type PrometheusCollector struct {
	// Engine
	stateTransitions *prometheus.CounterVec
	currentState     *prometheus.GaugeVec
	messagesReceived *prometheus.CounterVec
	messagesSent     *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	ringAttempts     prometheus.Counter
	callsStarted     *prometheus.CounterVec
	callsEnded       *prometheus.CounterVec
	publishErrors    prometheus.Counter

	callDuration prometheus.Histogram

	// Media
	rtpPackets       *prometheus.CounterVec
	rtpBytes         *prometheus.CounterVec
	fractionLost     prometheus.Histogram
	jitter           prometheus.Histogram
	keyframeRequests prometheus.Counter
}

var _ ports.CallMetrics = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers the collectors with reg; a nil reg uses
// the default registerer.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		stateTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_state_transitions_total",
			Help: "Call state transitions",
		}, []string{"from", "to"}),

		currentState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rillcall_call_state",
			Help: "1 for the current call state, 0 otherwise",
		}, []string{"state"}),

		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_signal_messages_received_total",
			Help: "Decoded inbound signal messages by type",
		}, []string{"type"}),

		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_signal_messages_sent_total",
			Help: "Published signal messages by type",
		}, []string{"type"}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_signal_messages_dropped_total",
			Help: "Signal messages dropped by reason",
		}, []string{"reason"}),

		ringAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "rillcall_ring_attempts_total",
			Help: "Call messages sent while ringing",
		}),

		callsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_calls_started_total",
			Help: "Calls that reached the active state",
		}, []string{"role"}),

		callsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_calls_ended_total",
			Help: "Call contexts torn down by reason",
		}, []string{"reason"}),

		publishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "rillcall_publish_errors_total",
			Help: "Failed transport publishes",
		}),

		callDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rillcall_call_duration_seconds",
			Help:    "Lifetime of call contexts",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),

		rtpPackets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_rtp_packets_received_total",
			Help: "RTP packets received from remote tracks",
		}, []string{"kind"}),

		rtpBytes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rillcall_rtp_bytes_received_total",
			Help: "RTP bytes received from remote tracks",
		}, []string{"kind"}),

		fractionLost: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rillcall_rtcp_fraction_lost",
			Help:    "Fraction lost reported in RTCP receiver reports (0-1)",
			Buckets: []float64{0, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1},
		}),

		jitter: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rillcall_rtcp_jitter",
			Help:    "Interarrival jitter reported in RTCP receiver reports, in timestamp units",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		}),

		keyframeRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "rillcall_keyframe_requests_total",
			Help: "Picture loss indications sent to remote video tracks",
		}),
	}
}

func (p *PrometheusCollector) RecordTransition(from, to domain.CallState) {
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
	p.currentState.WithLabelValues(from.String()).Set(0)
	p.currentState.WithLabelValues(to.String()).Set(1)
}

func (p *PrometheusCollector) RecordMessageReceived(t domain.MessageType) {
	p.messagesReceived.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) RecordMessageSent(t domain.MessageType) {
	p.messagesSent.WithLabelValues(string(t)).Inc()
}

func (p *PrometheusCollector) RecordMessageDropped(reason string) {
	p.messagesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordRingAttempt() {
	p.ringAttempts.Inc()
}

func (p *PrometheusCollector) RecordCallStarted(initiator bool) {
	role := "callee"
	if initiator {
		role = "caller"
	}
	p.callsStarted.WithLabelValues(role).Inc()
}

func (p *PrometheusCollector) RecordCallEnded(reason domain.EndReason, duration time.Duration) {
	p.callsEnded.WithLabelValues(string(reason)).Inc()
	p.callDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordPublishError() {
	p.publishErrors.Inc()
}

func (p *PrometheusCollector) RecordRTPPacket(kind string, bytes int) {
	p.rtpPackets.WithLabelValues(kind).Inc()
	p.rtpBytes.WithLabelValues(kind).Add(float64(bytes))
}

// RecordReceiverReport takes the raw RTCP fields; fractionLost is in 1/256ths.
func (p *PrometheusCollector) RecordReceiverReport(fractionLost uint8, jitter uint32) {
	p.fractionLost.Observe(float64(fractionLost) / 256.0)
	p.jitter.Observe(float64(jitter))
}

func (p *PrometheusCollector) RecordKeyframeRequest() {
	p.keyframeRequests.Inc()
}
