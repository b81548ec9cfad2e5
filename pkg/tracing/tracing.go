package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "rillcall"

// TracerProvider owns the exporter pipeline. The zero value is a disabled
// provider whose Shutdown is a no-op.
type TracerProvider struct {
	tp *tracesdk.TracerProvider
}

type Config struct {
	Enabled     bool
	ServiceName string
	// Participant identifies the agent instance ("user@client").
	Participant string
	JaegerURL   string
	Environment string
	SampleRate  float64
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "rillcall",
		JaegerURL:   "http://localhost:14268/api/traces",
		Environment: "development",
		SampleRate:  1.0,
	}
}

// Init installs a global Jaeger-backed provider when tracing is enabled.
// Spans started through this package are no-ops otherwise.
func Init(cfg Config) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{}, nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerURL)))
	if err != nil {
		return nil, fmt.Errorf("failed to create Jaeger exporter: %w", err)
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceNameKey.String(cfg.ServiceName),
		attribute.String("environment", cfg.Environment),
	}
	if cfg.Participant != "" {
		attrs = append(attrs, semconv.ServiceInstanceIDKey.String(cfg.Participant))
	}
	res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.TraceIDRatioBased(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{tp: tp}, nil
}

// Shutdown flushes pending spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError marks the span in ctx as failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

var (
	CallIDKey      = attribute.Key("call.id")
	ParticipantKey = attribute.Key("call.participant")
	RemoteKey      = attribute.Key("call.remote")
	MessageTypeKey = attribute.Key("signal.type")
	FromStateKey   = attribute.Key("call.state.from")
	ToStateKey     = attribute.Key("call.state.to")
)

// TraceHTTPRequest starts the span of one UI request.
func TraceHTTPRequest(ctx context.Context, method, route string) (context.Context, trace.Span) {
	return StartSpan(ctx, "http."+method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String(method),
			semconv.HTTPRouteKey.String(route),
		),
	)
}

// TraceCallEvent starts the span of one event processed by the call engine,
// named call.<event>.
func TraceCallEvent(ctx context.Context, event, participant, fromState string) (context.Context, trace.Span) {
	return StartSpan(ctx, "call."+event,
		trace.WithAttributes(
			ParticipantKey.String(participant),
			FromStateKey.String(fromState),
		),
	)
}

// TraceSignal starts the span of one outbound signal message.
func TraceSignal(ctx context.Context, messageType, remote string) (context.Context, trace.Span) {
	return StartSpan(ctx, "signal."+messageType,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			MessageTypeKey.String(messageType),
			RemoteKey.String(remote),
		),
	)
}

// TraceMedia starts the span of a media session operation.
func TraceMedia(ctx context.Context, operation, callID string) (context.Context, trace.Span) {
	return StartSpan(ctx, "media."+operation,
		trace.WithAttributes(
			attribute.String("media.operation", operation),
			CallIDKey.String(callID),
		),
	)
}
