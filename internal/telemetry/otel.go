package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
)

// DefaultServiceName is reported when Config.ServiceName is empty
const DefaultServiceName = "scam-hunter-api"

// Config configures trace export
type Config struct {
	ServiceName string
	Version     string
	// Endpoint is the OTLP/HTTP collector address (host:port)
	Endpoint string
	Insecure bool
	// SampleRatio is the fraction of new traces sampled; <= 0 or >= 1 samples everything
	SampleRatio float64
}

func (c Config) sampler() sdktrace.Sampler {
	if c.SampleRatio <= 0 || c.SampleRatio >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SampleRatio))
}

// InitTracer installs a global tracer provider exporting over OTLP/HTTP
func InitTracer(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	opts := []otlptracehttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}
	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(name))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := NewTracerProvider(res, cfg.sampler(), sdktrace.WithBatcher(exporter))
	return tp, nil
}

// NewTracerProvider builds a provider from the given span processors and installs it
// together with the W3C trace context propagator.
func NewTracerProvider(res *resource.Resource, sampler sdktrace.Sampler, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	if sampler == nil {
		sampler = sdktrace.AlwaysSample()
	}
	all := []sdktrace.TracerProviderOption{sdktrace.WithSampler(sampler)}
	if res != nil {
		all = append(all, sdktrace.WithResource(res))
	}
	tp := sdktrace.NewTracerProvider(append(all, opts...)...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp
}

// Shutdown flushes and stops the tracer provider
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
