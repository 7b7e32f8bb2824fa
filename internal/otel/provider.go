// Package otel sets up the OpenTelemetry log and metric pipelines.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config holds OTel configuration
type Config struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	LogWriter    io.Writer // receives OTel logs (required unless Endpoint is set)
	// MetricWriter receives periodic metric dumps. Metrics stay no-op when nil.
	MetricWriter   io.Writer
	MetricInterval time.Duration
	Endpoint       string // OTLP endpoint (optional, only used if set)
	Insecure       bool   // Use insecure connection for OTLP
}

// Provider manages OpenTelemetry providers for logs and metrics
type Provider struct {
	logProvider   *sdklog.LoggerProvider
	meterProvider *sdkmetric.MeterProvider
	config        Config
}

// New creates a Provider. A disabled config yields a no-op provider. The
// meter provider, when built, is installed globally so the dispatcher and
// scheduler instruments report through it.
func New(cfg Config) (*Provider, error) {
	p := &Provider{config: cfg}
	if !cfg.Enabled {
		return p, nil
	}

	ctx := context.Background()
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if p.logProvider, err = newLogProvider(ctx, cfg, res); err != nil {
		return nil, err
	}
	if cfg.MetricWriter != nil {
		if p.meterProvider, err = newMeterProvider(cfg, res); err != nil {
			return nil, err
		}
		otel.SetMeterProvider(p.meterProvider)
	}
	return p, nil
}

func newLogProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	batch := func(e sdklog.Exporter) sdklog.LoggerProviderOption {
		return sdklog.WithProcessor(sdklog.NewBatchProcessor(e, sdklog.WithExportTimeout(cfg.BatchTimeout)))
	}

	if cfg.LogWriter != nil {
		e, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create file log exporter: %w", err)
		}
		opts = append(opts, batch(e))
	}
	if cfg.Endpoint != "" {
		httpOpts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			httpOpts = append(httpOpts, otlploghttp.WithInsecure())
		}
		e, err := otlploghttp.New(ctx, httpOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
		}
		opts = append(opts, batch(e))
	}

	if len(opts) == 1 {
		return nil, errors.New("OTel enabled but no log writer or endpoint configured")
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

func newMeterProvider(cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	e, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.MetricWriter))
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}
	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.MetricInterval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.MetricInterval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(e, readerOpts...)),
	), nil
}

// LoggerProvider returns the log provider for use with otelslog bridge.
// Returns nil if OTel is not enabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider {
	return p.logProvider
}

// Meter returns a meter with the given name, or a no-op meter when metrics
// are not enabled.
func (p *Provider) Meter(name string) metric.Meter {
	if p.meterProvider == nil {
		return noop.Meter{}
	}
	return p.meterProvider.Meter(name)
}

// Flush exports pending logs and metrics.
func (p *Provider) Flush(ctx context.Context) error {
	return p.each(ctx, "flush", (*sdklog.LoggerProvider).ForceFlush, (*sdkmetric.MeterProvider).ForceFlush)
}

// Shutdown flushes and stops both pipelines. Call it once on exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown", (*sdklog.LoggerProvider).Shutdown, (*sdkmetric.MeterProvider).Shutdown)
}

func (p *Provider) each(ctx context.Context, op string,
	logFn func(*sdklog.LoggerProvider, context.Context) error,
	meterFn func(*sdkmetric.MeterProvider, context.Context) error,
) error {
	if !p.config.Enabled {
		return nil
	}
	var errs []error
	if p.logProvider != nil {
		if err := logFn(p.logProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("log %s failed: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := meterFn(p.meterProvider, ctx); err != nil {
			errs = append(errs, fmt.Errorf("metric %s failed: %w", op, err))
		}
	}
	return errors.Join(errs...)
}

// Enabled returns whether OTel is enabled
func (p *Provider) Enabled() bool {
	return p.config.Enabled
}
