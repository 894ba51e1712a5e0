// Package app assembles the ingestion service with uber-fx.
package app

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/logger"
	"github.com/tigerroll/spaceweather/internal/metrics"
	"github.com/tigerroll/spaceweather/internal/orchestrator"
	"github.com/tigerroll/spaceweather/internal/scheduler"
)

// RunApplication runs the service until it is stopped, or until the single
// cycle finishes when schedule.run_once is set. The configuration is loaded
// by config.Module, which also applies the log level.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
		),
		config.Module,
		Options(appCtx),
	)

	// Run exits with the code given to Shutdown when it is not zero.
	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}

// Options returns the application graph minus the configuration, which the
// caller supplies.
func Options(appCtx context.Context) fx.Option {
	return fx.Options(
		fx.Supply(fx.Annotate(
			appCtx,
			fx.As(new(context.Context)),
			fx.ResultTags(`name:"appCtx"`),
		)),
		logger.Module,
		metrics.Module,
		Module,

		fx.Invoke(fx.Annotate(startIngestion, fx.ParamTags(
			"",              // lc fx.Lifecycle
			"",              // shutdowner fx.Shutdowner
			"",              // cfg *config.Config
			"",              // orch *orchestrator.Orchestrator
			"",              // reporter *CycleReporter
			"",              // recorder metrics.Recorder
			`name:"appCtx"`, // appCtx context.Context
		))),
	)
}

// startIngestion is invoked by Fx to run a single cycle or start the scheduler.
func startIngestion(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	orch *orchestrator.Orchestrator,
	reporter *CycleReporter,
	recorder metrics.Recorder,
	appCtx context.Context,
) {
	job := func(ctx context.Context) {
		reporter.Report(ctx, orch.RunCycle(ctx))
	}

	if cfg.App.Schedule.RunOnce {
		lc.Append(fx.Hook{
			OnStart: onStartSingleCycle(orch, reporter, shutdowner, appCtx),
			OnStop:  onStopApplication(),
		})
		return
	}

	s := scheduler.New(cfg.App.Schedule.Interval(), job, recorder)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start(appCtx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down. Waiting for the running cycle.")
			return s.Stop(ctx)
		},
	})
}

// onStartSingleCycle runs one cycle in the background and requests shutdown
// when it completes. The exit code is 1 when a feed failed.
func onStartSingleCycle(
	orch *orchestrator.Orchestrator,
	reporter *CycleReporter,
	shutdowner fx.Shutdowner,
	appCtx context.Context,
) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		go func() {
			exitCode := 0
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Panic recovered in ingestion cycle: %v", r)
					exitCode = 1
				}
				logger.Infof("Requesting application shutdown after the cycle.")
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()

			logger.Infof("Running a single ingestion cycle...")
			report := orch.RunCycle(appCtx)
			reporter.Report(appCtx, report)
			if report.FailedFeeds() > 0 {
				exitCode = 1
			}
		}()
		return nil
	}
}

func onStopApplication() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		logger.Infof("Application is shutting down.")
		return nil
	}
}
