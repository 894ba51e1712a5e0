package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/logger"
)

// Tracer wraps cycles and feed steps in spans.
type Tracer interface {
	// StartCycleSpan starts a span for one ingestion cycle. The returned func ends it.
	StartCycleSpan(ctx context.Context, cycleID string) (context.Context, func())
	// StartFeedSpan starts a child span for one feed step.
	StartFeedSpan(ctx context.Context, f feed.Feed) (context.Context, func())
	// RecordError marks the current span as failed.
	RecordError(ctx context.Context, module string, err error)
	// RecordEvent adds an event to the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}

// NoOpTracer does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a NoOpTracer.
func NewNoOpTracer() *NoOpTracer { return &NoOpTracer{} }

func (NoOpTracer) StartCycleSpan(ctx context.Context, _ string) (context.Context, func()) {
	return ctx, func() {}
}

func (NoOpTracer) StartFeedSpan(ctx context.Context, _ feed.Feed) (context.Context, func()) {
	return ctx, func() {}
}

func (NoOpTracer) RecordError(context.Context, string, error)                  {}
func (NoOpTracer) RecordEvent(context.Context, string, map[string]interface{}) {}

const instrumentationName = "github.com/tigerroll/spaceweather"

// OpenTelemetryTracer is a Tracer backed by an OpenTelemetry TracerProvider.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer from provider.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

func (t *OpenTelemetryTracer) StartCycleSpan(ctx context.Context, cycleID string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "cycle",
		trace.WithAttributes(attribute.String("cycle.id", cycleID)))
	logger.Debugf("Tracer: started cycle span '%s'.", cycleID)
	return ctx, func() { span.End() }
}

func (t *OpenTelemetryTracer) StartFeedSpan(ctx context.Context, f feed.Feed) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "feed."+string(f),
		trace.WithAttributes(attribute.String("feed", string(f))))
	return ctx, func() { span.End() }
}

func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(
		attribute.String("module", module),
		attribute.String("error.kind", errorKind(err)),
	))
	span.SetStatus(codes.Error, err.Error())
}

func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

func toAttributes(m map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprint(val)))
		}
	}
	return attrs
}

var (
	_ Tracer = (*NoOpTracer)(nil)
	_ Tracer = (*OpenTelemetryTracer)(nil)
)
