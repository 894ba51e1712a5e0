package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
)

// FeedReport is the outcome of one feed step.
type FeedReport struct {
	Feed          feed.Feed
	SchemaCreated bool
	Fetched       int
	Inserted      int
	// Updated counts the updates that matched a stored row.
	Updated int
	// Unmatched counts the updates the store applied to no row.
	Unmatched int
	// Superseded counts in-batch duplicates replaced by a later record.
	Superseded int
	// Historical and Forecast are the partition sizes after the writes; zero for the device feed.
	Historical int
	Forecast   int
	// Malformed lists the records excluded from reconciliation.
	Malformed []error
	// Err is the error that aborted the step, if any.
	Err error
	// ExportErr is set when the partition snapshot could not be written.
	ExportErr error
	Duration  time.Duration
}

// Failed reports whether the step was aborted.
func (r FeedReport) Failed() bool { return r.Err != nil }

// CycleReport aggregates the feed reports of one cycle in execution order.
type CycleReport struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Feeds      []FeedReport
}

// Feed returns the report of f.
func (c CycleReport) Feed(f feed.Feed) (FeedReport, bool) {
	for _, r := range c.Feeds {
		if r.Feed == f {
			return r, true
		}
	}
	return FeedReport{}, false
}

// FailedFeeds counts the aborted steps.
func (c CycleReport) FailedFeeds() int {
	n := 0
	for _, r := range c.Feeds {
		if r.Failed() {
			n++
		}
	}
	return n
}

// Err combines every step, malformed record and export error of the cycle, or nil.
func (c CycleReport) Err() error {
	var result *multierror.Error
	for _, r := range c.Feeds {
		if r.Err != nil {
			result = multierror.Append(result, r.Err)
		}
		for _, m := range r.Malformed {
			result = multierror.Append(result, m)
		}
		if r.ExportErr != nil {
			result = multierror.Append(result, r.ExportErr)
		}
	}
	return result.ErrorOrNil()
}

// Duration returns the wall time of the cycle.
func (c CycleReport) Duration() time.Duration {
	return c.FinishedAt.Sub(c.StartedAt)
}
