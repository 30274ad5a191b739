package capture

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/inputwire/pkg/protocol"
)

type fakePutter struct {
	mu      sync.Mutex
	objects map[string][]byte
	meta    map[string]map[string]string
	fail    error
}

func newFakePutter() *fakePutter {
	return &fakePutter{
		objects: make(map[string][]byte),
		meta:    make(map[string]map[string]string),
	}
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	f.objects[key] = body
	f.meta[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakePutter) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSegmentRoundTrip(t *testing.T) {
	base := time.Unix(1700000000, 123456789)
	in := []Entry{
		{ReceivedAt: base, Packet: []byte{0x00, 0x00, 0x00, 0x01, 0xAA}},
		{ReceivedAt: base.Add(16 * time.Millisecond), Packet: []byte{}},
		{ReceivedAt: base.Add(33 * time.Millisecond), Packet: bytes.Repeat([]byte{0x7F}, 300)},
	}

	enc := protocol.NewEncoder()
	for _, e := range in {
		AppendEntry(enc, e)
	}

	out, err := DecodeSegment(enc.Bytes())
	if err != nil {
		t.Fatalf("DecodeSegment() error = %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("DecodeSegment() returned %d entries; want %d", len(out), len(in))
	}
	for i := range in {
		if !out[i].ReceivedAt.Equal(in[i].ReceivedAt) {
			t.Errorf("entry %d ReceivedAt = %v; want %v", i, out[i].ReceivedAt, in[i].ReceivedAt)
		}
		if !bytes.Equal(out[i].Packet, in[i].Packet) {
			t.Errorf("entry %d Packet = %x; want %x", i, out[i].Packet, in[i].Packet)
		}
	}
}

func TestDecodeSegmentTruncated(t *testing.T) {
	enc := protocol.NewEncoder()
	AppendEntry(enc, Entry{ReceivedAt: time.Unix(1, 0), Packet: []byte{1, 2, 3}})
	AppendEntry(enc, Entry{ReceivedAt: time.Unix(2, 0), Packet: []byte{4, 5, 6}})
	data := enc.Bytes()

	entries, err := DecodeSegment(data[:len(data)-1])
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("DecodeSegment(truncated) error = %v; want io.ErrUnexpectedEOF", err)
	}
	if len(entries) != 1 {
		t.Errorf("DecodeSegment(truncated) kept %d entries; want 1", len(entries))
	}
}

func TestArchiveSegments(t *testing.T) {
	putter := newFakePutter()
	a := NewArchive(putter, Config{Bucket: "replays", Prefix: "captures/", SegmentPackets: 2}, WithLogger(quietLogger()))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := a.Append(base.Add(time.Duration(i)*time.Second), []byte{byte(i)}); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}
	if err := a.Flush(context.Background()); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	keys := putter.keys()
	if len(keys) != 3 {
		t.Fatalf("uploaded %d segments; want 3: %v", len(keys), keys)
	}

	wantCounts := []int{2, 2, 1}
	next := byte(0)
	for i, key := range keys {
		if !strings.HasPrefix(key, "captures/2026/03/01/") {
			t.Errorf("key %q missing date prefix", key)
		}
		entries, err := DecodeSegment(putter.objects[key])
		if err != nil {
			t.Fatalf("DecodeSegment(%s) error = %v", key, err)
		}
		if len(entries) != wantCounts[i] {
			t.Errorf("segment %d holds %d packets; want %d", i, len(entries), wantCounts[i])
		}
		for _, e := range entries {
			if e.Packet[0] != next {
				t.Errorf("segment %d packet = %d; want %d", i, e.Packet[0], next)
			}
			next++
		}
		if putter.meta[key]["packets"] != strconv.Itoa(wantCounts[i]) {
			t.Errorf("segment %d metadata packets = %q", i, putter.meta[key]["packets"])
		}
	}

	if err := a.Flush(context.Background()); err != nil {
		t.Errorf("second Flush() error = %v", err)
	}
	if len(putter.keys()) != 3 {
		t.Errorf("empty Flush() uploaded a segment")
	}
}

func TestArchiveUploadError(t *testing.T) {
	putter := newFakePutter()
	putter.fail = errors.New("access denied")
	a := NewArchive(putter, Config{Bucket: "replays", SegmentPackets: 1}, WithLogger(quietLogger()))

	a.Append(time.Now(), []byte{1})
	a.Append(time.Now(), []byte{2})

	err := a.Close(context.Background())
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Close() error = %v; want access denied", err)
	}
	if err := a.Flush(context.Background()); err != nil {
		t.Errorf("Flush() after reported errors = %v; want nil", err)
	}
}

func TestArchiveAppendDuringFlush(t *testing.T) {
	putter := newFakePutter()
	a := NewArchive(putter, Config{Bucket: "replays", SegmentPackets: 3}, WithLogger(quietLogger()))

	const writers, perWriter = 4, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := a.Append(time.Now(), []byte{byte(w), byte(i)}); err != nil {
					t.Errorf("Append() error = %v", err)
					return
				}
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
flushing:
	for {
		if err := a.Flush(context.Background()); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		select {
		case <-done:
			break flushing
		default:
		}
	}

	if err := a.Close(context.Background()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.Append(time.Now(), []byte{0}); !errors.Is(err, ErrClosed) {
		t.Errorf("Append() after Close = %v; want ErrClosed", err)
	}

	total := 0
	for _, key := range putter.keys() {
		entries, err := DecodeSegment(putter.objects[key])
		if err != nil {
			t.Fatalf("DecodeSegment(%s) error = %v", key, err)
		}
		total += len(entries)
	}
	if total != writers*perWriter {
		t.Errorf("archived %d packets; want %d", total, writers*perWriter)
	}
}

func TestNewS3Client(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	client, err := NewS3Client(context.Background(), "eu-west-1", "http://localhost:9000")
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	opts := client.Options()
	if opts.Region != "eu-west-1" {
		t.Errorf("Region = %q; want eu-west-1", opts.Region)
	}
	if aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" || !opts.UsePathStyle {
		t.Errorf("BaseEndpoint = %q, UsePathStyle = %v; want MinIO endpoint with path style",
			aws.ToString(opts.BaseEndpoint), opts.UsePathStyle)
	}

	client, err = NewS3Client(context.Background(), "us-east-2", "")
	if err != nil {
		t.Fatalf("NewS3Client() error = %v", err)
	}
	if opts := client.Options(); opts.BaseEndpoint != nil || opts.UsePathStyle {
		t.Errorf("default client has BaseEndpoint %v, UsePathStyle %v", opts.BaseEndpoint, opts.UsePathStyle)
	}
}

func TestSegmentKey(t *testing.T) {
	at := time.Date(2026, 10, 17, 8, 30, 5, 250_000_000, time.UTC)
	if got, want := SegmentKey("c/", at, 7), "c/2026/10/17/083005.250-000007.iwc"; got != want {
		t.Errorf("SegmentKey() = %q; want %q", got, want)
	}
}

type fakeGetter map[string][]byte

func (f fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f[aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestDownload(t *testing.T) {
	enc := protocol.NewEncoder()
	AppendEntry(enc, Entry{ReceivedAt: time.Unix(5, 0), Packet: []byte{9, 9}})
	getter := fakeGetter{"captures/a.iwc": enc.Bytes()}

	entries, err := Download(context.Background(), getter, "replays", "captures/a.iwc")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if len(entries) != 1 || !bytes.Equal(entries[0].Packet, []byte{9, 9}) {
		t.Errorf("Download() = %+v", entries)
	}

	if _, err := Download(context.Background(), getter, "replays", "missing"); err == nil {
		t.Error("Download(missing) succeeded")
	}
}
