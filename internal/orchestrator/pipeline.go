package orchestrator

import (
	"context"
	"time"

	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/export"
	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/partition"
	"github.com/tigerroll/spaceweather/internal/reconcile"
	"github.com/tigerroll/spaceweather/internal/store"
)

// pipeline describes how one feed is fetched and read back.
type pipeline[R record.TimedRecord] struct {
	feed feed.Feed
	// fetch bounds each external call it makes with the call timeout.
	fetch  func(ctx context.Context) ([]R, error)
	decode func(record.Row) (R, error)
	// after runs once the writes succeeded.
	after func(ctx context.Context, rep *FeedReport)
}

// runPipeline ensures the schema, fetches, reconciles against a fresh read of
// the table and applies the result: one update call per stored key, then one
// batch insert.
func runPipeline[R record.TimedRecord](ctx context.Context, o *Orchestrator, p pipeline[R]) FeedReport {
	rep := FeedReport{Feed: p.feed}
	table := p.feed.TableName()

	created, err := call(ctx, o.callTimeout, func(ctx context.Context) (bool, error) {
		return store.EnsureSchema(ctx, o.store, p.feed)
	})
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.SchemaCreated = created

	batch, err := p.fetch(ctx)
	if err != nil {
		if _, ok := exception.KindOf(err); !ok {
			err = exception.NewFetchError(string(p.feed), "fetch failed", err, true)
		}
		rep.Err = err
		return rep
	}

	stored, err := readStored(ctx, o, p.feed, p.decode)
	if err != nil {
		rep.Err = err
		return rep
	}

	res := reconcile.Reconcile(p.feed, batch, stored)
	rep.Fetched = res.Fetched
	rep.Superseded = res.Superseded
	rep.Malformed = res.Malformed
	for _, m := range res.Malformed {
		logger.Warnf("Feed '%s': skipped record: %v", p.feed, m)
	}
	if res.Superseded > 0 {
		logger.Debugf("Feed '%s': %d in-batch duplicate(s) superseded by later records.", p.feed, res.Superseded)
	}

	for _, r := range res.ToUpdate {
		filter := r.KeyFilter().Map()
		matched, err := call(ctx, o.callTimeout, func(ctx context.Context) (int64, error) {
			return o.store.UpdateByFilter(ctx, table, filter, r.Values().Map())
		})
		if err != nil {
			rep.Err = asStoreError(err, "update "+table)
			return rep
		}
		if matched == 0 {
			rep.Unmatched++
			logger.Warnf("Feed '%s': update of %v in '%s' matched no row.", p.feed, filter, table)
			continue
		}
		rep.Updated++
	}

	if len(res.ToInsert) > 0 {
		rows := make([]record.Row, len(res.ToInsert))
		for i, r := range res.ToInsert {
			rows[i] = record.InsertRow(r)
		}
		_, err := call(ctx, o.callTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, o.store.InsertBatch(ctx, table, rows)
		})
		if err != nil {
			rep.Err = asStoreError(err, "insert into "+table)
			return rep
		}
		rep.Inserted = len(rows)
	}

	logger.Infof("Feed '%s': %d updated, %d inserted, %d total.", p.feed, rep.Updated, rep.Inserted, rep.Fetched)

	if p.after != nil {
		p.after(ctx, &rep)
	}
	return rep
}

// readStored reads the whole table of f and indexes it by key. Stored rows that
// cannot be decoded are logged and left out.
func readStored[R record.TimedRecord](ctx context.Context, o *Orchestrator, f feed.Feed, decode func(record.Row) (R, error)) (record.StoredSet[R], error) {
	rows, err := call(ctx, o.callTimeout, func(ctx context.Context) ([]record.Row, error) {
		return o.store.ReadAll(ctx, f.TableName(), nil)
	})
	if err != nil {
		return record.StoredSet[R]{}, asStoreError(err, "read "+f.TableName())
	}
	set, errs := record.IndexRows(rows, decode)
	for _, e := range errs {
		logger.Warnf("Feed '%s': ignoring stored row: %v", f, e)
	}
	return set, nil
}

// partitionStored re-reads a series table after the writes, splits it at a
// single reference instant and hands the partitions to the exporter.
func partitionStored[R partition.Stored](o *Orchestrator, decode func(record.Row) (R, error)) func(context.Context, *FeedReport) {
	return func(ctx context.Context, rep *FeedReport) {
		set, err := readStored(ctx, o, rep.Feed, decode)
		if err != nil {
			rep.Err = err
			return
		}
		res := partition.PartitionStored(set, o.clock())
		rep.Historical = len(res.Historical)
		rep.Forecast = len(res.Forecast)
		logger.Debugf("Feed '%s': %d historical, %d forecast at %s.", rep.Feed, rep.Historical, rep.Forecast, res.Reference.Format(time.RFC3339))

		if o.exporter == nil {
			return
		}
		historical := export.Records(partition.SortAscending(res.Historical))
		forecast := export.Records(partition.SortAscending(res.Forecast))
		if err := o.exporter.Export(ctx, rep.Feed, res.Reference, historical, forecast); err != nil {
			rep.ExportErr = err
		}
	}
}
