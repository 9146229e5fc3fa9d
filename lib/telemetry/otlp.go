package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	exporterTimeout       = 3 * time.Second
	defaultMetricInterval = 5 * time.Second
)

// Endpoint is an OTLP collector, grpc wins when both urls are set.
type Endpoint struct {
	GrpcUrl string            `json:"grpc_endpoint"`
	HttpUrl string            `json:"http_endpoint"`
	Headers map[string]string `json:"headers"`
}

func (e Endpoint) Enabled() bool {
	return e.GrpcUrl != "" || e.HttpUrl != ""
}

func (e Endpoint) kind() string {
	if e.GrpcUrl != "" {
		return "grpc"
	}
	return "http"
}

// Config is the contents of telemetry.json5. Traces and metrics are exported
// independently, an endpoint left empty disables its signal.
type Config struct {
	Traces  Endpoint `json:"traces"`
	Metrics Endpoint `json:"metrics"`
	// SampleRatio is the share of root spans (one per capture or fetch)
	// that is kept, anything outside (0, 1) keeps all of them.
	SampleRatio      float64 `json:"sample_ratio"`
	MetricIntervalMs int     `json:"metric_interval_ms"`
}

func (c Config) sampler() trace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return trace.AlwaysSample()
	}
	return trace.ParentBased(trace.TraceIDRatioBased(c.SampleRatio))
}

func (c Config) metricInterval() time.Duration {
	if c.MetricIntervalMs <= 0 {
		return defaultMetricInterval
	}
	return time.Duration(c.MetricIntervalMs) * time.Millisecond
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg Config) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	var exporter trace.SpanExporter
	var err error
	if cfg.Traces.kind() == "grpc" {
		exporter, err = otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(cfg.Traces.GrpcUrl),
			otlptracegrpc.WithHeaders(cfg.Traces.Headers),
		)
	} else {
		exporter, err = otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(cfg.Traces.HttpUrl),
			otlptracehttp.WithHeaders(cfg.Traces.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("trace export initialized", "type", cfg.Traces.kind(), "sample_ratio", cfg.SampleRatio)

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(r),
		trace.WithSampler(cfg.sampler()),
	), nil
}

func newMetricProvider(ctx context.Context, r *resource.Resource, cfg Config) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exporterTimeout)
	defer cancel()

	var exporter metric.Exporter
	var err error
	if cfg.Metrics.kind() == "grpc" {
		exporter, err = otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(cfg.Metrics.GrpcUrl),
			otlpmetricgrpc.WithHeaders(cfg.Metrics.Headers),
		)
	} else {
		exporter, err = otlpmetrichttp.New(
			ctx,
			otlpmetrichttp.WithEndpointURL(cfg.Metrics.HttpUrl),
			otlpmetrichttp.WithHeaders(cfg.Metrics.Headers),
		)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("metric export initialized", "type", cfg.Metrics.kind(), "interval", cfg.metricInterval())

	return metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(cfg.metricInterval()))),
		metric.WithResource(r),
	), nil
}
