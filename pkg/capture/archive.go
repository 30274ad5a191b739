package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// ObjectPutter is the part of *s3.Client an Archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures an Archive.
type Config struct {
	// Bucket is the destination S3 bucket.
	Bucket string

	// Prefix is prepended to every segment key (e.g., "captures/").
	Prefix string

	// SegmentPackets is the number of packets per segment.
	SegmentPackets int

	// UploadTimeout bounds each background upload. Default: 30s.
	UploadTimeout time.Duration
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics that count uploads.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(a *Archive) {
		a.metrics = m
	}
}

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New("capture: archive closed")

// Archive batches received input packets into segments and uploads each
// full segment to S3 in the background. It is safe for concurrent use.
type Archive struct {
	client ObjectPutter
	config Config

	mu      sync.Mutex
	idle    *sync.Cond // signalled when pending drops to zero
	enc     *protocol.Encoder
	count   int
	first   time.Time
	seq     uint64
	pending int
	closed  bool
	errs    []error

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

type segment struct {
	key   string
	data  []byte
	count int
	first time.Time
}

// NewArchive creates an archive writing to client.
func NewArchive(client ObjectPutter, config Config, opts ...Option) *Archive {
	if config.SegmentPackets < 1 {
		config.SegmentPackets = 1
	}
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = 30 * time.Second
	}

	a := &Archive{
		client: client,
		config: config,
		enc:    protocol.NewEncoder(),
	}
	a.idle = sync.NewCond(&a.mu)
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default().With("component", "capture")
	}
	return a
}

// Append adds a packet received at at. When the segment is full it is
// handed to a background upload.
func (a *Archive) Append(at time.Time, packet []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.count == 0 {
		a.first = at
	}
	AppendEntry(a.enc, Entry{ReceivedAt: at, Packet: packet})
	a.count++

	if a.count >= a.config.SegmentPackets {
		seg := a.takeLocked()
		a.pending++
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.config.UploadTimeout)
			defer cancel()
			err := a.upload(ctx, seg)

			a.mu.Lock()
			defer a.mu.Unlock()
			if err != nil {
				a.errs = append(a.errs, err)
			}
			a.pending--
			if a.pending == 0 {
				a.idle.Broadcast()
			}
		}()
	}
	return nil
}

// Flush uploads the partial segment, if any, and waits until no
// background upload is in flight. Appends may continue while Flush runs;
// an upload they start before the wait ends is waited for too. It returns
// the upload errors since the last Flush.
func (a *Archive) Flush(ctx context.Context) error {
	a.mu.Lock()
	var seg *segment
	if a.count > 0 {
		s := a.takeLocked()
		seg = &s
	}
	a.mu.Unlock()

	var errs []error
	if seg != nil {
		if err := a.upload(ctx, *seg); err != nil {
			errs = append(errs, err)
		}
	}

	a.mu.Lock()
	for a.pending > 0 {
		a.idle.Wait()
	}
	errs = append(a.errs, errs...)
	a.errs = nil
	a.mu.Unlock()

	return errors.Join(errs...)
}

// Close stops accepting packets and flushes the archive. Append returns
// ErrClosed afterwards.
func (a *Archive) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(ctx)
}

// takeLocked detaches the current segment. a.mu must be held.
func (a *Archive) takeLocked() segment {
	a.seq++
	seg := segment{
		key:   SegmentKey(a.config.Prefix, a.first, a.seq),
		data:  a.enc.Bytes(),
		count: a.count,
		first: a.first,
	}
	a.enc = protocol.NewEncoderWithCap(len(seg.data))
	a.count = 0
	return seg
}

func (a *Archive) upload(ctx context.Context, seg segment) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.config.Bucket),
		Key:         aws.String(seg.key),
		Body:        bytes.NewReader(seg.data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]string{
			"packets":        strconv.Itoa(seg.count),
			"first-received": seg.first.UTC().Format(time.RFC3339Nano),
		},
	})
	a.metrics.RecordUpload(err)
	if err != nil {
		a.logger.Error("capture upload failed", "key", seg.key, "packets", seg.count, "error", err)
		return fmt.Errorf("capture: upload %s: %w", seg.key, err)
	}
	a.logger.Debug("capture uploaded", "key", seg.key, "packets", seg.count, "bytes", len(seg.data))
	return nil
}

// SegmentKey names the seq'th segment whose first packet arrived at first.
func SegmentKey(prefix string, first time.Time, seq uint64) string {
	return fmt.Sprintf("%s%s-%06d.iwc", prefix, first.UTC().Format("2006/01/02/150405.000"), seq)
}

// NewS3Client creates an S3 client from the default AWS config chain
// (environment, shared config and credentials files, SSO, instance
// roles) for region. A non-empty endpoint (e.g., a local MinIO) switches
// to path-style addressing.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("capture: load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ObjectGetter is the part of *s3.Client Download uses.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Download fetches and decodes one segment.
func Download(ctx context.Context, client ObjectGetter, bucket, key string) ([]Entry, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("capture: download %s: %w", key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("capture: download %s: %w", key, err)
	}
	return DecodeSegment(data)
}
