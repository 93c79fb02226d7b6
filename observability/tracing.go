// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for beacon.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/beacon"

// Tracer provides OpenTelemetry tracing for beacon. A nil Tracer starts
// non-recording spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerFrom(otel.GetTracerProvider())
}

// NewTracerFrom creates a tracer from tp.
func NewTracerFrom(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartDispatchSpan starts a span covering one dispatch.
func (t *Tracer) StartDispatchSpan(ctx context.Context, workspaceID, trigger string) (context.Context, trace.Span) {
	return t.start(ctx, "beacon.dispatch",
		attribute.String("beacon.workspace_id", workspaceID),
		attribute.String("beacon.trigger", trigger),
	)
}

// StartEnqueueSpan starts a span for one per-webhook branch of a fan-out.
func (t *Tracer) StartEnqueueSpan(ctx context.Context, webhookID, eventID, receiver string) (context.Context, trace.Span) {
	return t.start(ctx, "beacon.enqueue",
		attribute.String("beacon.webhook_id", webhookID),
		attribute.String("beacon.event_id", eventID),
		attribute.String("beacon.receiver", receiver),
	)
}

// StartDeliverySpan starts a span for a local queue delivery attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, url string) (context.Context, trace.Span) {
	return t.start(ctx, "beacon.delivery",
		attribute.String("beacon.delivery_id", deliveryID),
		attribute.String("url.full", url),
	)
}

// StartCallbackSpan starts a span for an inbound outcome callback.
func (t *Tracer) StartCallbackSpan(ctx context.Context, trigger, webhookID, eventID string) (context.Context, trace.Span) {
	return t.start(ctx, "beacon.callback",
		attribute.String("beacon.trigger", trigger),
		attribute.String("beacon.webhook_id", webhookID),
		attribute.String("beacon.event_id", eventID),
	)
}

// EndDeliverySpan ends a delivery span with result attributes.
func EndDeliverySpan(span trace.Span, statusCode, latencyMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.response.status_code", statusCode),
		attribute.Int("beacon.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}

// EndSpan ends span, marking it failed when err is non-nil.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
