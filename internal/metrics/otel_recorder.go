package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelRecorder is a Recorder that reports through an OpenTelemetry MeterProvider.
type OTelRecorder struct {
	cycleDuration metric.Float64Histogram
	cycles        metric.Int64Counter
	skipped       metric.Int64Counter
	feedDuration  metric.Float64Histogram
	feeds         metric.Int64Counter
	records       metric.Int64Counter
}

// NewOTelRecorder creates the instruments on a meter from provider.
func NewOTelRecorder(provider metric.MeterProvider) (*OTelRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelRecorder{}
	var err error
	if r.cycleDuration, err = meter.Float64Histogram("spaceweather.cycle.duration",
		metric.WithUnit("s"), metric.WithDescription("Duration of ingestion cycles.")); err != nil {
		return nil, err
	}
	if r.cycles, err = meter.Int64Counter("spaceweather.cycles",
		metric.WithDescription("Ingestion cycles by status.")); err != nil {
		return nil, err
	}
	if r.skipped, err = meter.Int64Counter("spaceweather.cycles.skipped",
		metric.WithDescription("Ticks skipped because a cycle was still running.")); err != nil {
		return nil, err
	}
	if r.feedDuration, err = meter.Float64Histogram("spaceweather.feed.duration",
		metric.WithUnit("s"), metric.WithDescription("Duration of feed steps.")); err != nil {
		return nil, err
	}
	if r.feeds, err = meter.Int64Counter("spaceweather.feeds",
		metric.WithDescription("Feed steps by status and error kind.")); err != nil {
		return nil, err
	}
	if r.records, err = meter.Int64Counter("spaceweather.feed.records",
		metric.WithDescription("Records handled by feed steps, by outcome.")); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *OTelRecorder) RecordFeed(ctx context.Context, o FeedOutcome) {
	name := attribute.String("feed", string(o.Feed))
	st := attribute.String("status", status(o.Err != nil))
	r.feedDuration.Record(ctx, o.Duration.Seconds(), metric.WithAttributes(name, st))
	r.feeds.Add(ctx, 1, metric.WithAttributes(name, st, attribute.String("error_kind", errorKind(o.Err))))
	for outcome, n := range map[string]int{
		"fetched":   o.Fetched,
		"inserted":  o.Inserted,
		"updated":   o.Updated,
		"malformed": o.Malformed,
	} {
		r.records.Add(ctx, int64(n), metric.WithAttributes(name, attribute.String("outcome", outcome)))
	}
}

func (r *OTelRecorder) RecordCycle(ctx context.Context, duration time.Duration, failedFeeds int) {
	st := metric.WithAttributes(attribute.String("status", status(failedFeeds > 0)))
	r.cycleDuration.Record(ctx, duration.Seconds(), st)
	r.cycles.Add(ctx, 1, st)
}

func (r *OTelRecorder) RecordSkippedCycle(ctx context.Context) {
	r.skipped.Add(ctx, 1)
}

var _ Recorder = (*OTelRecorder)(nil)
