// Package metrics records ingestion metrics and traces.
package metrics

import (
	"context"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/exception"
)

// FeedOutcome is what one feed step reports to a Recorder.
type FeedOutcome struct {
	Feed      feed.Feed
	Fetched   int
	Inserted  int
	Updated   int
	Malformed int
	Err       error
	Duration  time.Duration
}

// Recorder receives cycle and feed measurements.
type Recorder interface {
	// RecordFeed records the outcome of one feed step.
	RecordFeed(ctx context.Context, outcome FeedOutcome)
	// RecordCycle records a finished cycle and how many of its feeds failed.
	RecordCycle(ctx context.Context, duration time.Duration, failedFeeds int)
	// RecordSkippedCycle records a tick dropped because a cycle was still running.
	RecordSkippedCycle(ctx context.Context)
}

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

func status(failed bool) string {
	if failed {
		return statusFailed
	}
	return statusSuccess
}

// errorKind labels err by its exception kind.
func errorKind(err error) string {
	if err == nil {
		return "none"
	}
	if kind, ok := exception.KindOf(err); ok {
		return string(kind)
	}
	return "unknown"
}

// NoOpRecorder discards every measurement.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a NoOpRecorder.
func NewNoOpRecorder() *NoOpRecorder { return &NoOpRecorder{} }

func (NoOpRecorder) RecordFeed(context.Context, FeedOutcome)         {}
func (NoOpRecorder) RecordCycle(context.Context, time.Duration, int) {}
func (NoOpRecorder) RecordSkippedCycle(context.Context)              {}

// MultiRecorder fans measurements out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordFeed(ctx context.Context, outcome FeedOutcome) {
	for _, r := range m {
		r.RecordFeed(ctx, outcome)
	}
}

func (m MultiRecorder) RecordCycle(ctx context.Context, duration time.Duration, failedFeeds int) {
	for _, r := range m {
		r.RecordCycle(ctx, duration, failedFeeds)
	}
}

func (m MultiRecorder) RecordSkippedCycle(ctx context.Context) {
	for _, r := range m {
		r.RecordSkippedCycle(ctx)
	}
}

var (
	_ Recorder = (*NoOpRecorder)(nil)
	_ Recorder = MultiRecorder(nil)
)
