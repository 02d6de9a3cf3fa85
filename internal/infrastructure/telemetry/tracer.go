// Package telemetry exports traces and metrics of the tenancy layer over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/mise/backend/internal/domain/tenancy"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Config holds the OTLP export settings shared by traces and metrics.
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ExportInterval    time.Duration // metrics only, default 60s
	ServiceName       string
	ServiceVersion    string
	Insecure          bool
}

// Option overrides how a provider exports. The collector is dialed only
// when no exporter or reader is given.
type Option func(*options)

type options struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Reader
}

// WithSpanExporter exports spans to e instead of the OTLP collector
func WithSpanExporter(e sdktrace.SpanExporter) Option {
	return func(o *options) { o.spans = e }
}

// WithMetricReader collects metrics through r instead of a periodic OTLP push
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *options) { o.metrics = r }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TracerProvider owns the SDK tracer provider. Every span it starts inside a
// bound request carries the tenant and request id of that request.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   *zap.Logger
}

// NewTracerProvider installs the global tracer provider. With telemetry
// disabled it leaves the no-op global in place.
func NewTracerProvider(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*TracerProvider, error) {
	tp := &TracerProvider{logger: logger}
	if !cfg.Enabled {
		logger.Info("Telemetry disabled, using no-op tracer provider")
		return tp, nil
	}

	o := applyOptions(opts)
	exporter := o.spans
	if exporter == nil {
		exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
		}
		var err error
		if exporter, err = otlptracegrpc.New(ctx, exporterOpts...); err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}

	res, err := serviceResource(cfg)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(tenantSpanProcessor{}),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info("OpenTelemetry TracerProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
		zap.String("service_name", cfg.ServiceName),
	)
	return tp, nil
}

// Shutdown flushes pending spans and stops the provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		tp.logger.Error("Error shutting down tracer provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	tp.logger.Info("OpenTelemetry TracerProvider shutdown complete")
	return nil
}

// Tracer returns a named tracer, the global one while telemetry is disabled.
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.provider == nil {
		return otel.GetTracerProvider().Tracer(name, opts...)
	}
	return tp.provider.Tracer(name, opts...)
}

// tenantSpanProcessor stamps spans started under a bound request context.
// The identity comes from the admitted request, never from headers.
type tenantSpanProcessor struct{}

func (tenantSpanProcessor) OnStart(parent context.Context, s sdktrace.ReadWriteSpan) {
	rc, ok := tenancy.FromContext(parent)
	if !ok {
		return
	}
	s.SetAttributes(
		attribute.String(SpanAttrTenantID, rc.TenantID()),
		attribute.String(SpanAttrRequestID, rc.RequestID()),
	)
}

func (tenantSpanProcessor) OnEnd(sdktrace.ReadOnlySpan) {}

func (tenantSpanProcessor) Shutdown(context.Context) error { return nil }

func (tenantSpanProcessor) ForceFlush(context.Context) error { return nil }

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.AlwaysSample()
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func serviceResource(cfg Config) (*resource.Resource, error) {
	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}
