package telemetry

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName         = "weekboard"
	instrumentationName = "github.com/ktaey129/weekboard"
)

// Outcome is the result of processing one item
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// TelemetryConfig holds the configuration for telemetry
type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string // Full OTLP/HTTP URL, e.g. http://localhost:4318. Uses the exporter's defaults when empty
	ServiceVersion string
}

// Provider manages the tracer provider for a run
type Provider struct {
	enabled  bool
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// NewProvider creates a new telemetry provider. When telemetry is disabled every span is a no-op
func NewProvider(ctx context.Context, config TelemetryConfig) (*Provider, error) {
	if !config.Enabled {
		return &Provider{
			tp:       noop.NewTracerProvider(),
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := newExporter(ctx, config.OTLPEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", config.ServiceVersion),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Printf("[telemetry] Exporting traces to %s", endpointOrDefault(config.OTLPEndpoint))

	return NewProviderFromTracerProvider(tp, tp.Shutdown), nil
}

// NewProviderFromTracerProvider wraps an existing tracer provider, e.g. one backed by a span recorder in tests
func NewProviderFromTracerProvider(tp trace.TracerProvider, shutdown func(context.Context) error) *Provider {
	if shutdown == nil {
		shutdown = func(context.Context) error { return nil }
	}
	return &Provider{enabled: true, tp: tp, shutdown: shutdown}
}

func newExporter(ctx context.Context, endpoint string) (*otlptrace.Exporter, error) {
	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	return otlptracehttp.New(ctx, opts...)
}

func endpointOrDefault(endpoint string) string {
	if endpoint == "" {
		return "the default OTLP endpoint"
	}
	return endpoint
}

// Enabled reports whether spans are exported
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Tracer returns the tracer jobs create their spans with
func (p *Provider) Tracer() trace.Tracer {
	return p.tp.Tracer(instrumentationName)
}

// Shutdown flushes pending spans and shuts down the telemetry provider
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// EndItem records the outcome of an item on its span and ends the span
func EndItem(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("weekboard.outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// NewRunID generates a new run UUID
func NewRunID() string {
	return uuid.New().String()
}
