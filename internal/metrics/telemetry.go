package metrics

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/tigerroll/spaceweather/internal/config"
	"github.com/tigerroll/spaceweather/internal/logger"
)

// ServiceName is reported as service.name on every span and metric.
const ServiceName = "spaceweather"

// Telemetry holds the OpenTelemetry providers for the process.
type Telemetry struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	// exporting is true when OTel metrics leave the process.
	exporting bool
	shutdowns []func(context.Context) error
}

// NewTelemetry builds the providers described by cfg and installs them as the
// otel globals. Without tracing the tracer provider is a no-op; without an
// OTLP endpoint the meter provider is a no-op.
func NewTelemetry(ctx context.Context, cfg config.MetricsConfig) (*Telemetry, error) {
	t := &Telemetry{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
	res := resource.NewSchemaless(attribute.String("service.name", ServiceName))

	if cfg.Tracing {
		opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
		if cfg.OTLP.Endpoint != "" {
			exp, err := newTraceExporter(ctx, cfg.OTLP)
			if err != nil {
				return nil, err
			}
			opts = append(opts, sdktrace.WithBatcher(exp))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		t.TracerProvider = tp
		t.shutdowns = append(t.shutdowns, tp.Shutdown)
		logger.Infof("Telemetry: tracing enabled (otlp endpoint: '%s').", cfg.OTLP.Endpoint)
	}

	if cfg.OTLP.Endpoint != "" {
		exp, err := newMetricExporter(ctx, cfg.OTLP)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		interval := time.Duration(cfg.OTLP.MetricIntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Minute
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
		)
		t.MeterProvider = mp
		t.exporting = true
		t.shutdowns = append(t.shutdowns, mp.Shutdown)
		logger.Infof("Telemetry: exporting metrics over OTLP/%s to '%s' every %s.", cfg.OTLP.Protocol, cfg.OTLP.Endpoint, interval)
	}

	otel.SetTracerProvider(t.TracerProvider)
	otel.SetMeterProvider(t.MeterProvider)
	return t, nil
}

// Exporting reports whether OTel metrics are shipped to a collector.
func (t *Telemetry) Exporting() bool {
	return t.exporting
}

// Shutdown flushes and stops every SDK provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var result *multierror.Error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	t.shutdowns = nil
	return result.ErrorOrNil()
}

func newTraceExporter(ctx context.Context, cfg config.OTLPConfig) (sdktrace.SpanExporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return otlptracegrpc.New(ctx, opts...)
}

func newMetricExporter(ctx context.Context, cfg config.OTLPConfig) (sdkmetric.Exporter, error) {
	if cfg.Protocol == "http" {
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return otlpmetricgrpc.New(ctx, opts...)
}
