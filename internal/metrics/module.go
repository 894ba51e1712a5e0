package metrics

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/logger"
)

// Module provides the Recorder, the Tracer and the /metrics endpoint.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewTelemetryProvider),
	fx.Provide(NewRecorder),
	fx.Provide(NewTracer),
	fx.Invoke(RegisterServer),
)

// NewTelemetryProvider builds the OpenTelemetry providers and flushes them on stop.
func NewTelemetryProvider(lc fx.Lifecycle, cfg *config.Config) (*Telemetry, error) {
	t, err := NewTelemetry(context.Background(), cfg.App.Metrics)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Telemetry: shutting down providers.")
			return t.Shutdown(ctx)
		},
	})
	return t, nil
}

// NewRecorder returns the Prometheus recorder, fanned out to an OTel recorder
// when metrics are exported over OTLP.
func NewRecorder(prom *PrometheusRecorder, t *Telemetry) (Recorder, error) {
	if !t.Exporting() {
		return prom, nil
	}
	otelRec, err := NewOTelRecorder(t.MeterProvider)
	if err != nil {
		return nil, err
	}
	return MultiRecorder{prom, otelRec}, nil
}

// NewTracer returns an OpenTelemetryTracer when tracing is enabled.
func NewTracer(cfg *config.Config, t *Telemetry) Tracer {
	if !cfg.App.Metrics.Tracing {
		return NewNoOpTracer()
	}
	return NewOpenTelemetryTracer(t.TracerProvider)
}

// RegisterServer starts the /metrics endpoint when a listen address is configured.
func RegisterServer(lc fx.Lifecycle, cfg *config.Config, prom *PrometheusRecorder) {
	addr := cfg.App.Metrics.ListenAddress
	if addr == "" {
		return
	}
	srv := NewServer(addr, prom.GetRegistry())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return srv.Start() },
		OnStop:  srv.Stop,
	})
}
