// Package orchestrator runs one ingestion cycle: for every enabled feed it
// ensures the table exists, fetches a batch, reconciles it against the stored
// rows, writes the result and partitions the series feeds.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/spaceweather/internal/domain/entity"
	"github.com/tigerroll/spaceweather/internal/domain/feed"
	"github.com/tigerroll/spaceweather/internal/domain/record"
	"github.com/tigerroll/spaceweather/internal/exception"
	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/metrics"
	"github.com/tigerroll/spaceweather/internal/source"
	"github.com/tigerroll/spaceweather/internal/store"
)

const module = "orchestrator"

const defaultCallTimeout = 30 * time.Second

// PartitionExporter writes the partitions of a series feed.
type PartitionExporter interface {
	Export(ctx context.Context, f feed.Feed, ref time.Time, historical, forecast []record.TimedRecord) error
}

// Sources are the Record Sources of the cycle. A nil source disables its feed.
type Sources struct {
	Kp      source.KpSource
	Weather source.WeatherSource
	Device  source.DeviceSource
}

// Orchestrator runs ingestion cycles. It keeps no state between cycles.
type Orchestrator struct {
	store       store.KeyedStore
	steps       []Step
	clock       func() time.Time
	callTimeout time.Duration
	recorder    metrics.Recorder
	tracer      metrics.Tracer
	exporter    PartitionExporter
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the source of the partition reference instant.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithCallTimeout bounds every fetch and store call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithRecorder reports feed and cycle outcomes to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithTracer opens a span per cycle and per feed.
func WithTracer(t metrics.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithExporter writes the partitions of the series feeds after every successful step.
func WithExporter(e PartitionExporter) Option {
	return func(o *Orchestrator) { o.exporter = e }
}

// New builds the step plan for the enabled sources. The weather step depends on
// the device step when both are enabled.
func New(st store.KeyedStore, src Sources, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		store:       st,
		clock:       time.Now,
		callTimeout: defaultCallTimeout,
		recorder:    metrics.NewNoOpRecorder(),
		tracer:      metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(o)
	}

	var steps []Step
	if src.Kp != nil {
		steps = append(steps, Step{Feed: feed.KpIndex, Run: o.kpStep(src.Kp)})
	}
	if src.Device != nil {
		steps = append(steps, Step{Feed: feed.Device, Run: o.deviceStep(src.Device)})
	}
	if src.Weather != nil {
		s := Step{Feed: feed.Weather, Run: o.weatherStep(src.Weather)}
		if src.Device != nil {
			s.DependsOn = []feed.Feed{feed.Device}
		} else {
			logger.Warnf("Device feed is disabled; weather will use the stored device snapshot.")
		}
		steps = append(steps, s)
	}

	ordered, err := Plan(steps)
	if err != nil {
		return nil, exception.NewConfigError(module, "invalid step plan", err)
	}
	o.steps = ordered
	return o, nil
}

// Feeds returns the planned feeds in execution order.
func (o *Orchestrator) Feeds() []feed.Feed {
	out := make([]feed.Feed, len(o.steps))
	for i, s := range o.steps {
		out[i] = s.Feed
	}
	return out
}

// RunCycle runs every planned step once, in order. A failing step is recorded
// in its report and does not stop the others.
func (o *Orchestrator) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{ID: uuid.New(), StartedAt: o.clock()}
	began := time.Now()

	ctx, endCycle := o.tracer.StartCycleSpan(ctx, report.ID.String())
	defer endCycle()
	logger.Infof("Cycle %s started (%d feeds).", report.ID, len(o.steps))

	for _, s := range o.steps {
		if err := ctx.Err(); err != nil {
			report.Feeds = append(report.Feeds, FeedReport{
				Feed: s.Feed,
				Err:  fmt.Errorf("cycle cancelled before feed %s: %w", s.Feed, err),
			})
			continue
		}
		report.Feeds = append(report.Feeds, o.runStep(ctx, s))
	}

	report.FinishedAt = o.clock()
	failed := report.FailedFeeds()
	o.recorder.RecordCycle(ctx, time.Since(began), failed)
	if failed > 0 {
		logger.Warnf("Cycle %s finished with %d failed feed(s).", report.ID, failed)
	} else {
		logger.Infof("Cycle %s finished.", report.ID)
	}
	return report
}

func (o *Orchestrator) runStep(ctx context.Context, s Step) FeedReport {
	ctx, endFeed := o.tracer.StartFeedSpan(ctx, s.Feed)
	defer endFeed()

	began := time.Now()
	rep := s.Run(ctx)
	rep.Feed = s.Feed
	rep.Duration = time.Since(began)

	if rep.Err != nil {
		o.tracer.RecordError(ctx, module, rep.Err)
		logger.Errorf("Feed '%s' failed: %v", s.Feed, rep.Err)
	}
	if rep.ExportErr != nil {
		logger.Warnf("Feed '%s' export failed: %v", s.Feed, rep.ExportErr)
	}
	o.tracer.RecordEvent(ctx, "feed.completed", map[string]interface{}{
		"fetched":  rep.Fetched,
		"inserted": rep.Inserted,
		"updated":  rep.Updated,
	})
	o.recorder.RecordFeed(ctx, metrics.FeedOutcome{
		Feed:      s.Feed,
		Fetched:   rep.Fetched,
		Inserted:  rep.Inserted,
		Updated:   rep.Updated,
		Malformed: len(rep.Malformed),
		Err:       rep.Err,
		Duration:  rep.Duration,
	})
	return rep
}

func (o *Orchestrator) kpStep(src source.KpSource) func(context.Context) FeedReport {
	return func(ctx context.Context) FeedReport {
		return runPipeline(ctx, o, pipeline[entity.KpIndex]{
			feed: feed.KpIndex,
			fetch: func(ctx context.Context) ([]entity.KpIndex, error) {
				return call(ctx, o.callTimeout, src.FetchKp)
			},
			decode: entity.DecodeKpIndex,
			after:  partitionStored(o, entity.DecodeKpIndex),
		})
	}
}

func (o *Orchestrator) deviceStep(src source.DeviceSource) func(context.Context) FeedReport {
	return func(ctx context.Context) FeedReport {
		return runPipeline(ctx, o, pipeline[entity.Device]{
			feed: feed.Device,
			fetch: func(ctx context.Context) ([]entity.Device, error) {
				d, err := call(ctx, o.callTimeout, src.FetchDevice)
				if err != nil {
					return nil, err
				}
				return []entity.Device{d}, nil
			},
			decode: entity.DecodeDevice,
		})
	}
}

func (o *Orchestrator) weatherStep(src source.WeatherSource) func(context.Context) FeedReport {
	return func(ctx context.Context) FeedReport {
		return runPipeline(ctx, o, pipeline[entity.Weather]{
			feed: feed.Weather,
			fetch: func(ctx context.Context) ([]entity.Weather, error) {
				lat, lon, err := o.deviceCoordinates(ctx)
				if err != nil {
					return nil, err
				}
				return call(ctx, o.callTimeout, func(ctx context.Context) ([]entity.Weather, error) {
					return src.FetchWeather(ctx, lat, lon)
				})
			},
			decode: entity.DecodeWeather,
			after:  partitionStored(o, entity.DecodeWeather),
		})
	}
}

// deviceCoordinates reads the stored device snapshot. The weather step fails
// fast when there is none or it has no usable location.
func (o *Orchestrator) deviceCoordinates(ctx context.Context) (float64, float64, error) {
	exists, err := call(ctx, o.callTimeout, func(ctx context.Context) (bool, error) {
		return o.store.TableExists(ctx, feed.Device.TableName())
	})
	if err != nil {
		return 0, 0, asStoreError(err, "check device table")
	}
	if !exists {
		return 0, 0, exception.NewFetchError(string(feed.Weather), "device table does not exist",
			exception.ErrDeviceSnapshotMissing, false)
	}
	rows, err := call(ctx, o.callTimeout, func(ctx context.Context) ([]record.Row, error) {
		return o.store.ReadAll(ctx, feed.Device.TableName(), store.Filter{"id": entity.DeviceID})
	})
	if err != nil {
		return 0, 0, asStoreError(err, "read device snapshot")
	}
	if len(rows) == 0 {
		return 0, 0, exception.NewFetchError(string(feed.Weather), "no device snapshot to take coordinates from",
			exception.ErrDeviceSnapshotMissing, false)
	}
	device, err := entity.DecodeDevice(rows[0])
	if err != nil {
		return 0, 0, err
	}
	lat, lon, err := device.Coordinates()
	if err != nil {
		return 0, 0, exception.NewFetchError(string(feed.Weather), "device snapshot has no usable location",
			fmt.Errorf("%w: %v", exception.ErrDeviceSnapshotMissing, err), false)
	}
	return lat, lon, nil
}

// call runs fn under a per-call timeout.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func asStoreError(err error, message string) error {
	if _, ok := exception.KindOf(err); ok {
		return err
	}
	return exception.NewStoreError(module, message, err)
}
