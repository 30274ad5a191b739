package telemetry

import (
	"errors"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// Direction labels for packet metrics.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "inputwire").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for packet sizes in bytes.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the packet size histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "inputwire",
		Buckets:   []float64{16, 32, 64, 128, 256, 512, 1024, 4096},
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for input traffic. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	packetsTotal      *prometheus.CounterVec
	packetBytes       *prometheus.HistogramVec
	decodeErrors      *prometheus.CounterVec
	changedFields     prometheus.Histogram
	inputsConsumed    prometheus.Counter
	inputsLost        prometheus.Counter
	acksSent          prometheus.Counter
	activeConnections prometheus.Gauge
	captureUploads    *prometheus.CounterVec
}

// NewMetrics registers the input metrics and returns them.
//
// Metrics collected:
//   - inputwire_packets_total: Counter of input packets by direction
//   - inputwire_packet_bytes: Histogram of input packet sizes by direction
//   - inputwire_decode_errors_total: Counter of rejected packets by error kind
//   - inputwire_changed_fields: Histogram of changed fields per delta slot
//   - inputwire_inputs_consumed_total: Counter of inputs delivered to the game
//   - inputwire_inputs_lost_total: Counter of inputs that fell out of every window
//   - inputwire_acks_sent_total: Counter of acks sent to clients
//   - inputwire_active_connections: Gauge of open input connections
//   - inputwire_capture_uploads_total: Counter of capture segment uploads by status
//
// Registering twice against the same registry panics, so tests pass their
// own prometheus.NewRegistry().
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		packetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_total",
			Help:        "Total number of input packets",
			ConstLabels: config.ConstLabels,
		}, []string{"direction"}),

		packetBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packet_bytes",
			Help:        "Input packet size in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"direction"}),

		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "decode_errors_total",
			Help:        "Total number of input packets that failed to decode",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		changedFields: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "changed_fields",
			Help:        "Fields changed per delta-encoded window slot",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 4, 8, 16},
		}),

		inputsConsumed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inputs_consumed_total",
			Help:        "Total number of inputs delivered to the input handler",
			ConstLabels: config.ConstLabels,
		}),

		inputsLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "inputs_lost_total",
			Help:        "Total number of inputs skipped because no received window held them",
			ConstLabels: config.ConstLabels,
		}),

		acksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "acks_sent_total",
			Help:        "Total number of input acks sent",
			ConstLabels: config.ConstLabels,
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of open input connections",
			ConstLabels: config.ConstLabels,
		}),

		captureUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "capture_uploads_total",
			Help:        "Total capture segment uploads by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),
	}
}

// RecordPacket records one input packet of n bytes.
func (m *Metrics) RecordPacket(direction string, n int) {
	if m == nil {
		return
	}
	m.packetsTotal.WithLabelValues(direction).Inc()
	m.packetBytes.WithLabelValues(direction).Observe(float64(n))
}

// RecordDecodeError records a rejected packet, labelled by ErrorKind(err).
func (m *Metrics) RecordDecodeError(err error) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// RecordChangedFields records the changed-field count of one delta slot.
func (m *Metrics) RecordChangedFields(n int) {
	if m == nil {
		return
	}
	m.changedFields.Observe(float64(n))
}

// RecordConsumed records inputs delivered to the handler and inputs lost
// to a gap larger than the window.
func (m *Metrics) RecordConsumed(consumed, lost int) {
	if m == nil {
		return
	}
	m.inputsConsumed.Add(float64(consumed))
	if lost > 0 {
		m.inputsLost.Add(float64(lost))
	}
}

// RecordAck records one ack sent.
func (m *Metrics) RecordAck() {
	if m == nil {
		return
	}
	m.acksSent.Inc()
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

// RecordUpload records a capture upload result.
func (m *Metrics) RecordUpload(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.captureUploads.WithLabelValues(status).Inc()
}

// ErrorKind returns a low-cardinality label for a decode error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, serialize.ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, serialize.ErrSourceExhausted), errors.Is(err, io.ErrUnexpectedEOF):
		return "source_exhausted"
	case errors.Is(err, serialize.ErrSerializationFailed):
		return "serialization_failed"
	case errors.Is(err, protocol.ErrFrameLength),
		errors.Is(err, protocol.ErrInvalidFrameType),
		errors.Is(err, protocol.ErrFrameTooLarge):
		return "frame"
	default:
		return "other"
	}
}
