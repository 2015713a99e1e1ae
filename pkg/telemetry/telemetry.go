// Package telemetry wires the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is reported when the configuration leaves it empty.
const DefaultServiceName = "screenlist"

// Config selects the trace exporter.
type Config struct {
	ServiceName  string
	OTLPEndpoint string
	Headers      map[string]string
}

// Telemetry owns the provider installed by Setup.
type Telemetry struct {
	TracerProvider *sdktrace.TracerProvider
}

// Enabled reports whether spans are exported.
func (t Telemetry) Enabled() bool {
	return t.TracerProvider != nil
}

// Shutdown flushes pending spans. It is a no-op when tracing is disabled.
func (t Telemetry) Shutdown(ctx context.Context) error {
	if t.TracerProvider == nil {
		return nil
	}
	errlist := []error{}
	if err := t.TracerProvider.ForceFlush(ctx); err != nil {
		errlist = append(errlist, err)
	}
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errlist = append(errlist, err)
	}
	return errors.Join(errlist...)
}

// Setup installs an OTLP/HTTP tracer provider when an endpoint is
// configured. Without one the global no-op provider stays in place.
func Setup(ctx context.Context, cfg Config) (Telemetry, error) {
	if cfg.OTLPEndpoint == "" {
		slog.Debug("Telemetry: tracing disabled, no OTLP endpoint configured")
		return Telemetry{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	r, err := newResource(serviceName)
	if err != nil {
		return Telemetry{}, err
	}

	tracerProvider, err := newTraceProvider(ctx, r, cfg)
	if err != nil {
		return Telemetry{}, err
	}
	otel.SetTracerProvider(tracerProvider)

	return Telemetry{TracerProvider: tracerProvider}, nil
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

func newTraceProvider(ctx context.Context, r *resource.Resource, cfg Config) (*sdktrace.TracerProvider, error) {
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	), nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	slog.Info(
		"Telemetry: tracer export initialized",
		"type", "http",
		"endpoint", cfg.OTLPEndpoint,
		"headers", len(cfg.Headers) > 0,
	)
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
		otlptracehttp.WithHeaders(cfg.Headers),
	)
}
