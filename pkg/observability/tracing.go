// Package observability provides metrics and tracing for the MCP client
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ExporterType selects where spans are sent
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	ExporterTypeNoop     ExporterType = "noop"
)

const (
	instrumentationName = "github.com/AbhilashPoshanagari/AI-powered-chatbot"

	// attrMethod carries the MCP method on every client span
	attrMethod = attribute.Key("mcp.method")
)

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	ServiceName    string `json:"service_name" yaml:"service_name"`
	ServiceVersion string `json:"service_version" yaml:"service_version"`
	Environment    string `json:"environment" yaml:"environment"`

	ExporterType ExporterType      `json:"exporter" yaml:"exporter"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`

	// SampleRate is the share of requests traced, from 0 to 1
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
	// SkipMethods are never traced, e.g. "ping" or high-rate progress polls.
	// A skipped request still records metrics.
	SkipMethods []string `json:"skip_methods" yaml:"skip_methods"`

	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`

	// SetGlobal installs the provider as the process-wide tracer provider
	SetGlobal bool `json:"set_global" yaml:"set_global"`
}

// TracingProvider starts one client span per outbound MCP request
type TracingProvider struct {
	service string
	tracer  trace.Tracer

	mu       sync.Mutex
	shutdown func(context.Context) error
}

// NewTracingProvider creates a provider exporting through config.ExporterType
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	if config.ServiceName == "" {
		config.ServiceName = "mcp-client"
	}
	if config.ServiceVersion == "" {
		config.ServiceVersion = "unknown"
	}
	if config.Environment == "" {
		config.Environment = "development"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 1.0
	}
	if config.BatchTimeout == 0 {
		config.BatchTimeout = 5 * time.Second
	}

	exporter, err := newExporter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(config.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(config)),
	)

	if config.SetGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	return &TracingProvider{
		service:  config.ServiceName,
		tracer:   tp.Tracer(instrumentationName),
		shutdown: tp.Shutdown,
	}, nil
}

// NewNoopTracingProvider returns a provider whose spans are never recorded
func NewNoopTracingProvider() *TracingProvider {
	return &TracingProvider{
		service: "mcp-client",
		tracer:  noop.NewTracerProvider().Tracer(instrumentationName),
	}
}

func newExporter(config TracingConfig) (sdktrace.SpanExporter, error) {
	var client otlptrace.Client

	switch config.ExporterType {
	case "", ExporterTypeNoop:
		return discardExporter{}, nil
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}

	return otlptrace.New(context.Background(), client)
}

func newSampler(config TracingConfig) sdktrace.Sampler {
	var base sdktrace.Sampler
	switch {
	case config.SampleRate >= 1:
		base = sdktrace.AlwaysSample()
	case config.SampleRate <= 0:
		base = sdktrace.NeverSample()
	default:
		base = sdktrace.TraceIDRatioBased(config.SampleRate)
	}

	if len(config.SkipMethods) == 0 {
		return sdktrace.ParentBased(base)
	}
	skip := make(map[string]bool, len(config.SkipMethods))
	for _, m := range config.SkipMethods {
		skip[m] = true
	}
	return sdktrace.ParentBased(&skipSampler{base: base, skip: skip})
}

// skipSampler drops spans of selected MCP methods and defers the rest to base
type skipSampler struct {
	base sdktrace.Sampler
	skip map[string]bool
}

func (s *skipSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range p.Attributes {
		if attr.Key == attrMethod && s.skip[attr.Value.AsString()] {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.Drop,
				Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
			}
		}
	}
	return s.base.ShouldSample(p)
}

func (s *skipSampler) Description() string {
	return fmt.Sprintf("SkipMethods{%d}/%s", len(s.skip), s.base.Description())
}

// StartMethodSpan starts a client span for an outbound MCP method
func (tp *TracingProvider) StartMethodSpan(ctx context.Context, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, "mcp."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrMethod.String(method), attribute.String("mcp.service", tp.service)),
		trace.WithAttributes(attrs...),
	)
}

// RecordError marks the span in ctx as failed
func (tp *TracingProvider) RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (tp *TracingProvider) AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

// Shutdown flushes pending spans and stops the exporter. Later calls are
// no-ops.
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.shutdown == nil {
		return nil
	}
	err := tp.shutdown(ctx)
	tp.shutdown = nil
	return err
}

type discardExporter struct{}

func (discardExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (discardExporter) Shutdown(context.Context) error                             { return nil }
