package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/export"
	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/metrics"
	"github.com/tigerroll/spaceweather/internal/orchestrator"
	"github.com/tigerroll/spaceweather/internal/source"
	"github.com/tigerroll/spaceweather/internal/store"
	gormstore "github.com/tigerroll/spaceweather/internal/store/gorm"
	"github.com/tigerroll/spaceweather/internal/store/migration"
)

// Module provides the ingestion graph: store, sources, exporter, orchestrator and reporter.
var Module = fx.Options(
	fx.Provide(NewKeyedStore),
	fx.Provide(NewSources),
	fx.Provide(NewPartitionExporter),
	fx.Provide(NewOrchestrator),
	fx.Provide(NewCycleReporter),
)

// NewKeyedStore opens the configured store connection, applying the embedded
// migrations first when store.migrate_on_start is set.
func NewKeyedStore(lc fx.Lifecycle, cfg *config.Config) (store.KeyedStore, error) {
	if cfg.App.Store.MigrateOnStart {
		dbConfig, err := cfg.DatabaseConfig(cfg.App.Store.Ref)
		if err != nil {
			return nil, err
		}
		if err := migration.Up(context.Background(), dbConfig); err != nil {
			return nil, err
		}
	}

	st, err := gormstore.NewStoreFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing store '%s'.", st.Name())
			return st.Close()
		},
	})
	return st, nil
}

// NewSources builds the HTTP Record Sources of the enabled feeds.
func NewSources(cfg *config.Config) orchestrator.Sources {
	client := source.NewHTTPClient(cfg.App.Schedule.CallTimeout())
	feeds := cfg.App.Feeds

	var src orchestrator.Sources
	if feeds.Kp.Enabled {
		src.Kp = source.NewNOAAKpSource(feeds.Kp.Endpoint, client)
	}
	if feeds.Weather.Enabled {
		src.Weather = source.NewOpenMeteoSource(feeds.Weather.Endpoint, client)
	}
	if feeds.Device.Enabled {
		src.Device = source.NewIPInfoSource(feeds.Device.Endpoint, client)
	}
	return src
}

// NewPartitionExporter returns the Parquet exporter, or nil when export is disabled.
func NewPartitionExporter(lc fx.Lifecycle, cfg *config.Config) (orchestrator.PartitionExporter, error) {
	if !cfg.App.Export.Enabled {
		return nil, nil
	}
	uploader, err := export.NewUploader(context.Background(), cfg.App.Export.Storage)
	if err != nil {
		return nil, err
	}
	exporter, err := export.NewExporter(cfg.App.Export, uploader)
	if err != nil {
		_ = uploader.Close()
		return nil, err
	}
	logger.Infof("Partition export enabled (%s storage, %s compression).", uploader.Type(), cfg.App.Export.Compression)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return exporter.Close()
		},
	})
	return exporter, nil
}

// OrchestratorParams defines the dependencies for NewOrchestrator.
type OrchestratorParams struct {
	fx.In
	Config   *config.Config
	Store    store.KeyedStore
	Sources  orchestrator.Sources
	Exporter orchestrator.PartitionExporter
	Recorder metrics.Recorder
	Tracer   metrics.Tracer
}

// NewOrchestrator wires the cycle runner.
func NewOrchestrator(p OrchestratorParams) (*orchestrator.Orchestrator, error) {
	opts := []orchestrator.Option{
		orchestrator.WithCallTimeout(p.Config.App.Schedule.CallTimeout()),
		orchestrator.WithRecorder(p.Recorder),
		orchestrator.WithTracer(p.Tracer),
	}
	if p.Exporter != nil {
		opts = append(opts, orchestrator.WithExporter(p.Exporter))
	}
	o, err := orchestrator.New(p.Store, p.Sources, opts...)
	if err != nil {
		return nil, err
	}
	logger.Infof("Ingestion plan: %v", o.Feeds())
	return o, nil
}
