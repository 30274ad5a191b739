package config

import (
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vango-dev/inputwire/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "inputwire.json"

	// DefaultWindowSize is the number of inputs carried by every packet.
	DefaultWindowSize = 8

	// MaxWindowSize bounds window.size.
	MaxWindowSize = 64

	// DefaultAddr is the default listen address for 'inputwire serve'.
	DefaultAddr = "localhost:7777"

	// DefaultInputPath is the default websocket endpoint path.
	DefaultInputPath = "/input"

	// DefaultReadTimeout is the default idle timeout for an input connection.
	DefaultReadTimeout = "10s"

	// DefaultMaxPacket is the default largest accepted input packet in bytes.
	DefaultMaxPacket = 4096

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "inputwire"

	// DefaultMetricsPath is the default metrics endpoint path.
	DefaultMetricsPath = "/metrics"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "github.com/vango-dev/inputwire"

	// DefaultSegmentPackets is the number of packets per capture segment.
	DefaultSegmentPackets = 1024

	// DefaultCapturePrefix is the default S3 key prefix for segments.
	DefaultCapturePrefix = "captures/"
)

// Config represents the complete inputwire.json configuration.
type Config struct {
	// Window configures the input history window.
	Window WindowConfig `json:"window,omitempty"`

	// Server configures 'inputwire serve'.
	Server ServerConfig `json:"server,omitempty"`

	// Metrics configures Prometheus metrics.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Tracing configures OpenTelemetry spans.
	Tracing TracingConfig `json:"tracing,omitempty"`

	// Capture configures the S3 packet archive.
	Capture CaptureConfig `json:"capture,omitempty"`

	// Log configures the slog handler.
	Log LogConfig `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// WindowConfig contains input window settings. Client and server must use
// the same size.
type WindowConfig struct {
	Size int `json:"size,omitempty"`
}

// ServerConfig contains input server settings.
type ServerConfig struct {
	// Addr is the host:port to listen on.
	Addr string `json:"addr,omitempty"`

	// Path is the websocket endpoint path.
	Path string `json:"path,omitempty"`

	// ReadTimeout is how long a connection may stay silent (e.g., "10s").
	ReadTimeout string `json:"readTimeout,omitempty"`

	// MaxPacket is the largest input packet accepted, in bytes. Larger
	// packets close the connection with a fatal error.
	MaxPacket int `json:"maxPacket,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Path      string `json:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty"`

	// Endpoint is the OTLP/HTTP collector host:port. Empty uses the
	// exporter default (localhost:4318).
	Endpoint string `json:"endpoint,omitempty"`

	// Insecure disables TLS to the collector.
	Insecure bool `json:"insecure,omitempty"`
}

// CaptureConfig contains S3 capture settings.
type CaptureConfig struct {
	// Enabled turns on packet capture in 'inputwire serve'.
	Enabled bool `json:"enabled,omitempty"`

	// Bucket is the destination S3 bucket.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is prepended to every segment key.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region of the bucket.
	Region string `json:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (e.g., a local MinIO).
	Endpoint string `json:"endpoint,omitempty"`

	// SegmentPackets is the number of packets per uploaded segment.
	SegmentPackets int `json:"segmentPackets,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Window: WindowConfig{
			Size: DefaultWindowSize,
		},
		Server: ServerConfig{
			Addr:        DefaultAddr,
			Path:        DefaultInputPath,
			ReadTimeout: DefaultReadTimeout,
			MaxPacket:   DefaultMaxPacket,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: DefaultNamespace,
			Path:      DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Capture: CaptureConfig{
			Prefix:         DefaultCapturePrefix,
			SegmentPackets: DefaultSegmentPackets,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from the specified directory.
// It looks for inputwire.json in the directory.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + ConfigFileName + " found at " + path)
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + path + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path if it is set, and returns the defaults otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return New(), nil
	}
	return LoadFile(path)
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E106").Wrap(err)
	}

	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E106").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Window
	if c.Window.Size == 0 {
		c.Window.Size = DefaultWindowSize
	}

	// Server
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.Path == "" {
		c.Server.Path = DefaultInputPath
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.MaxPacket == 0 {
		c.Server.MaxPacket = DefaultMaxPacket
	}

	// Metrics
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Tracing
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}

	// Capture
	if c.Capture.Prefix == "" {
		c.Capture.Prefix = DefaultCapturePrefix
	}
	if c.Capture.SegmentPackets == 0 {
		c.Capture.SegmentPackets = DefaultSegmentPackets
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Window.Size < 1 || c.Window.Size > MaxWindowSize {
		return errors.New("E102").
			WithDetail("window.size is " + strconv.Itoa(c.Window.Size))
	}

	if _, port, err := splitPort(c.Server.Addr); err != nil || port < 0 || port > 65535 {
		return errors.New("E103").
			WithDetail("server.addr " + strconv.Quote(c.Server.Addr) + " is not host:port").
			WithSuggestion("Use a value like \"localhost:7777\" or \":7777\"")
	}
	if c.Server.Path == "" || c.Server.Path[0] != '/' {
		return errors.New("E103").
			WithDetail("server.path must start with /")
	}
	if d, err := time.ParseDuration(c.Server.ReadTimeout); err != nil || d <= 0 {
		return errors.New("E103").
			WithDetail("server.readTimeout " + strconv.Quote(c.Server.ReadTimeout) + " is not a positive duration").
			WithSuggestion("Use a Go duration such as \"10s\"")
	}
	if c.Server.MaxPacket < 16 {
		return errors.New("E103").
			WithDetail("server.maxPacket must be at least 16 bytes")
	}

	if c.Capture.Enabled {
		if c.Capture.Bucket == "" || c.Capture.Region == "" {
			return errors.New("E104").
				WithDetail("capture is enabled without a bucket or region")
		}
		if c.Capture.SegmentPackets < 1 {
			return errors.New("E104").
				WithDetail("capture.segmentPackets must be positive")
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("E105").
			WithDetail("log.format is " + strconv.Quote(c.Log.Format))
	}
	return nil
}

// ReadTimeout returns server.readTimeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ReadTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultReadTimeout)
	}
	return d
}

// LogLevel returns log.level as a slog.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, errors.New("E105").
			WithDetail("log.level is " + strconv.Quote(c.Log.Level))
	}
	return level, nil
}

// splitPort returns the host and numeric port of a host:port address.
func splitPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	return host, port, err
}
