package transport

import (
	"log/slog"

	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// Option configures a Sender, Receiver or Handler.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
	packetLimit int
}

// WithLogger sets the logger. Default: slog.Default() with
// component=transport.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the Prometheus metrics. Default: none.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the span tracer. Default: no-op spans.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithPacketLimit caps the encoded size of an input packet in bytes.
// Default: protocol.MaxPayloadSize.
func WithPacketLimit(n int) Option {
	return func(o *options) {
		o.packetLimit = n
	}
}

func buildOptions(opts []Option) options {
	o := options{packetLimit: MaxPacketSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "transport")
	}
	if o.packetLimit <= 0 || o.packetLimit > MaxPacketSize {
		o.packetLimit = MaxPacketSize
	}
	return o
}
