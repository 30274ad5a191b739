package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Default tracer name for inputwire spans.
const defaultTracerName = "github.com/vango-dev/inputwire"

// Span attribute keys.
const (
	AttrNewestInput  = attribute.Key("inputwire.newest_input_id")
	AttrWatermark    = attribute.Key("inputwire.previous_input_id")
	AttrWindowSize   = attribute.Key("inputwire.window_size")
	AttrPacketBytes  = attribute.Key("inputwire.packet_bytes")
	AttrConsumed     = attribute.Key("inputwire.consumed")
	AttrFailedSlot   = attribute.Key("inputwire.failed_slot")
	AttrErrorKind    = attribute.Key("inputwire.error_kind")
	AttrRemoteAddr   = attribute.Key("net.peer.addr")
	AttrSegmentKey   = attribute.Key("inputwire.segment_key")
	AttrSegmentCount = attribute.Key("inputwire.segment_packets")
)

// TracerConfig configures a Tracer.
type TracerConfig struct {
	// TracerName is the name of the tracer.
	TracerName string

	// Provider is the tracer provider. Default: the global provider.
	Provider trace.TracerProvider
}

// TracerOption configures a Tracer.
type TracerOption func(*TracerConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracerOption {
	return func(c *TracerConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracerOption {
	return func(c *TracerConfig) {
		c.Provider = tp
	}
}

// Tracer starts one span per encoded or decoded input packet. A nil
// *Tracer starts no-op spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer.
func NewTracer(opts ...TracerOption) *Tracer {
	config := TracerConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	return &Tracer{tracer: config.Provider.Tracer(config.TracerName)}
}

var noopTracer = noop.NewTracerProvider().Tracer("")

// Start starts a span named "inputwire.<op>".
func (t *Tracer) Start(ctx context.Context, op string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tr := noopTracer
	if t != nil {
		tr = t.tracer
	}
	return tr.Start(ctx, "inputwire."+op,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(AttrErrorKind.String(ErrorKind(err)))
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// ExporterConfig configures the OTLP/HTTP exporter.
type ExporterConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
}

// InitTracer installs a global tracer provider that batches spans to an
// OTLP/HTTP collector. Callers shut the provider down on exit.
func InitTracer(ctx context.Context, config ExporterConfig) (*sdktrace.TracerProvider, error) {
	var opts []otlptracehttp.Option
	if config.Endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpoint(config.Endpoint))
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}
