package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tigerroll/spaceweather/internal/logger"
)

// PrometheusRecorder is a Recorder exposing Prometheus metrics from its own registry.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	cycleDurationSeconds *prometheus.HistogramVec
	cycleStatusCounter   *prometheus.CounterVec
	cycleSkippedCounter  prometheus.Counter

	feedDurationSeconds *prometheus.HistogramVec
	feedStatusCounter   *prometheus.CounterVec
	feedRecordsCounter  *prometheus.CounterVec
}

// NewPrometheusRecorder creates a PrometheusRecorder with the Go and process collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spaceweather_cycle_duration_seconds",
			Help:    "Duration of ingestion cycles.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		cycleStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spaceweather_cycle_total",
			Help: "Total number of ingestion cycles by status.",
		}, []string{"status"}),
		cycleSkippedCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spaceweather_cycle_skipped_total",
			Help: "Ticks skipped because the previous cycle was still running.",
		}),
		feedDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spaceweather_feed_duration_seconds",
			Help:    "Duration of feed steps.",
			Buckets: prometheus.DefBuckets,
		}, []string{"feed", "status"}),
		feedStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spaceweather_feed_total",
			Help: "Total number of feed steps by status and error kind.",
		}, []string{"feed", "status", "error_kind"}),
		feedRecordsCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spaceweather_feed_records_total",
			Help: "Records handled by feed steps, by outcome (fetched, inserted, updated, malformed).",
		}, []string{"feed", "outcome"}),
	}

	registry.MustRegister(r.cycleDurationSeconds)
	registry.MustRegister(r.cycleStatusCounter)
	registry.MustRegister(r.cycleSkippedCounter)
	registry.MustRegister(r.feedDurationSeconds)
	registry.MustRegister(r.feedStatusCounter)
	registry.MustRegister(r.feedRecordsCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

func (r *PrometheusRecorder) RecordFeed(ctx context.Context, o FeedOutcome) {
	name := string(o.Feed)
	st := status(o.Err != nil)
	r.feedDurationSeconds.WithLabelValues(name, st).Observe(o.Duration.Seconds())
	r.feedStatusCounter.WithLabelValues(name, st, errorKind(o.Err)).Inc()
	r.feedRecordsCounter.WithLabelValues(name, "fetched").Add(float64(o.Fetched))
	r.feedRecordsCounter.WithLabelValues(name, "inserted").Add(float64(o.Inserted))
	r.feedRecordsCounter.WithLabelValues(name, "updated").Add(float64(o.Updated))
	r.feedRecordsCounter.WithLabelValues(name, "malformed").Add(float64(o.Malformed))
	logger.Debugf("Metrics: feed '%s' %s in %.3fs.", name, st, o.Duration.Seconds())
}

func (r *PrometheusRecorder) RecordCycle(ctx context.Context, duration time.Duration, failedFeeds int) {
	st := status(failedFeeds > 0)
	r.cycleDurationSeconds.WithLabelValues(st).Observe(duration.Seconds())
	r.cycleStatusCounter.WithLabelValues(st).Inc()
}

func (r *PrometheusRecorder) RecordSkippedCycle(ctx context.Context) {
	r.cycleSkippedCounter.Inc()
}

var _ Recorder = (*PrometheusRecorder)(nil)
