package app

import (
	"context"
	"time"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/orchestrator"
	"github.com/tigerroll/spaceweather/internal/store"
	"github.com/tigerroll/spaceweather/internal/view"
)

// CycleReporter logs the outcome of a cycle and the read models of the stored feeds.
type CycleReporter struct {
	store    store.KeyedStore
	location *time.Location
	clock    func() time.Time
}

// NewCycleReporter creates a CycleReporter printing the cycle start in the configured zone.
func NewCycleReporter(st store.KeyedStore, cfg *config.Config) *CycleReporter {
	return &CycleReporter{store: st, location: cfg.Location(), clock: time.Now}
}

// Report logs one line per feed, then the dashboards of the feeds that completed.
func (r *CycleReporter) Report(ctx context.Context, report orchestrator.CycleReport) {
	logger.Infof("Cycle %s started at %s finished in %v (%d feeds, %d failed).",
		report.ID, report.StartedAt.In(r.location).Format(time.RFC3339), report.Duration(),
		len(report.Feeds), report.FailedFeeds())

	for _, fr := range report.Feeds {
		switch {
		case fr.Err != nil:
			logger.Errorf("Feed '%s' failed after %v: %v", fr.Feed, fr.Duration, fr.Err)
		default:
			logger.Infof("Feed '%s': fetched %d, inserted %d, updated %d, malformed %d, historical %d, forecast %d.",
				fr.Feed, fr.Fetched, fr.Inserted, fr.Updated, len(fr.Malformed), fr.Historical, fr.Forecast)
		}
		for _, m := range fr.Malformed {
			logger.Warnf("Feed '%s': %v", fr.Feed, m)
		}
		if fr.Unmatched > 0 {
			logger.Warnf("Feed '%s': %d update(s) matched no stored row.", fr.Feed, fr.Unmatched)
		}
		if fr.ExportErr != nil {
			logger.Warnf("Feed '%s' export failed: %v", fr.Feed, fr.ExportErr)
		}
	}

	ref := r.clock()
	if fr, ok := report.Feed(feed.KpIndex); ok && !fr.Failed() {
		if rows, ok := r.read(ctx, feed.KpIndex); ok {
			d := view.BuildKpDashboard(decodeAll(rows, entity.DecodeKpIndex), ref)
			logger.Infof("Geomagnetic activity: %s", d.Summary())
		}
	}
	if fr, ok := report.Feed(feed.Weather); ok && !fr.Failed() {
		if rows, ok := r.read(ctx, feed.Weather); ok {
			d := view.BuildWeatherDashboard(decodeAll(rows, entity.DecodeWeather), ref)
			logger.Infof("Weather: %s", d.Summary())
		}
	}
	if fr, ok := report.Feed(feed.Device); ok && !fr.Failed() {
		if rows, ok := r.read(ctx, feed.Device); ok && len(rows) > 0 {
			if d, err := entity.DecodeDevice(rows[0]); err == nil {
				logger.Debugf("Device: %v", view.DeviceProperties(d))
			}
		}
	}
}

func (r *CycleReporter) read(ctx context.Context, f feed.Feed) ([]record.Row, bool) {
	rows, err := r.store.ReadAll(ctx, f.TableName(), nil)
	if err != nil {
		logger.Warnf("Could not read '%s' for the cycle summary: %v", f.TableName(), err)
		return nil, false
	}
	return rows, true
}

func decodeAll[R any](rows []record.Row, decode func(record.Row) (R, error)) []R {
	out := make([]R, 0, len(rows))
	for _, row := range rows {
		rec, err := decode(row)
		if err != nil {
			logger.Debugf("Skipping undecodable row: %v", err)
			continue
		}
		out = append(out, rec)
	}
	return out
}
