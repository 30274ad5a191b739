package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/inputwire/pkg/command"
	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/serialize"
	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// cmdFor is the command a test client sends as input id.
func cmdFor(id int64) command.Command {
	if id <= 0 {
		return command.Command{}
	}
	return command.Command{Forward: int8(id), Yaw: float32(id) * 1.5}
}

// packet builds the packet a client sends when newest is its latest input.
func packet(t *testing.T, size int, newest, watermark netinput.InputID) []byte {
	t.Helper()
	w := netinput.NewWindow[command.Command](size, nil)
	for i := 0; i < size; i++ {
		*w.Element(i) = cmdFor(SlotID(newest, size, i))
	}
	w.SetPreviousInputID(watermark)

	data, err := EncodePacket(w, newest, 0)
	if err != nil {
		t.Fatalf("EncodePacket() error = %v", err)
	}
	return data
}

func TestSlotID(t *testing.T) {
	tests := []struct {
		newest netinput.InputID
		size   int
		i      int
		want   int64
	}{
		{10, 4, 3, 10},
		{10, 4, 0, 7},
		{2, 4, 0, -1},
		{2, 4, 1, 0},
		{1, 1, 0, 1},
	}
	for _, tt := range tests {
		if got := SlotID(tt.newest, tt.size, tt.i); got != tt.want {
			t.Errorf("SlotID(%d, %d, %d) = %d; want %d", tt.newest, tt.size, tt.i, got, tt.want)
		}
	}
}

func TestPacketRoundTrip(t *testing.T) {
	data := packet(t, 4, 6, 4)

	w := netinput.NewWindow[command.Command](4, nil)
	newest, err := DecodePacket(w, data)
	if err != nil {
		t.Fatalf("DecodePacket() error = %v", err)
	}
	if newest != 6 {
		t.Errorf("newest = %d; want 6", newest)
	}
	if w.PreviousInputID() != 4 {
		t.Errorf("PreviousInputID() = %d; want 4", w.PreviousInputID())
	}
	for i := 0; i < 4; i++ {
		want := cmdFor(SlotID(6, 4, i))
		if !w.Element(i).Equal(want) {
			t.Errorf("slot %d = %+v; want %+v", i, *w.Element(i), want)
		}
	}
}

func TestDecodePacketErrors(t *testing.T) {
	good := packet(t, 4, 6, 4)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, serialize.ErrSourceExhausted},
		{"id only", good[:4], serialize.ErrSourceExhausted},
		{"truncated", good[:len(good)-1], serialize.ErrSourceExhausted},
		{"trailing", append(append([]byte{}, good...), 0), serialize.ErrSchemaMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := netinput.NewWindow[command.Command](4, nil)
			if _, err := DecodePacket(w, tt.data); !errors.Is(err, tt.want) {
				t.Errorf("DecodePacket() error = %v; want %v", err, tt.want)
			}
		})
	}

	// A receiver configured for a different window size cannot read it.
	w := netinput.NewWindow[command.Command](3, nil)
	if _, err := DecodePacket(w, good); err == nil {
		t.Error("DecodePacket() with wrong window size succeeded")
	}
}

func TestEncodePacketLimit(t *testing.T) {
	w := netinput.NewWindow[command.Command](4, nil)
	if _, err := EncodePacket(w, 1, 10); !errors.Is(err, serialize.ErrSerializationFailed) {
		t.Errorf("EncodePacket() over limit error = %v; want ErrSerializationFailed", err)
	}
}

type delivered struct {
	ids  []netinput.InputID
	cmds []command.Command
}

func (d *delivered) onInput(id netinput.InputID, c *command.Command) {
	d.ids = append(d.ids, id)
	d.cmds = append(d.cmds, *c)
}

func (d *delivered) take() []netinput.InputID {
	ids := d.ids
	d.ids = nil
	return ids
}

func equalIDs(a []netinput.InputID, b ...netinput.InputID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReceiverDelivery(t *testing.T) {
	var got delivered
	reg := prometheus.NewRegistry()
	r := NewReceiver[command.Command](4, nil, got.onInput,
		WithMetrics(telemetry.NewMetrics(telemetry.WithRegistry(reg))))
	ctx := context.Background()

	steps := []struct {
		name      string
		newest    netinput.InputID
		watermark netinput.InputID
		want      []netinput.InputID
		wantAck   uint32
	}{
		{"first packet", 3, 0, []netinput.InputID{1, 2, 3}, 3},
		{"duplicate", 3, 0, nil, 3},
		{"gap recovered from window", 5, 3, []netinput.InputID{4, 5}, 5},
		{"stale packet", 4, 3, nil, 5},
		{"gap larger than window", 12, 5, []netinput.InputID{9, 10, 11, 12}, 12},
	}

	for i, step := range steps {
		ack, err := r.HandlePacket(ctx, packet(t, 4, step.newest, step.watermark))
		if err != nil {
			t.Fatalf("%s: HandlePacket() error = %v", step.name, err)
		}
		if ids := got.take(); !equalIDs(ids, step.want...) {
			t.Errorf("%s: delivered %v; want %v", step.name, ids, step.want)
		}
		if ack.LastInputID != step.wantAck {
			t.Errorf("%s: ack.LastInputID = %d; want %d", step.name, ack.LastInputID, step.wantAck)
		}
		if ack.Received != uint64(i+1) {
			t.Errorf("%s: ack.Received = %d; want %d", step.name, ack.Received, i+1)
		}
	}

	for _, c := range got.cmds {
		if c.Forward == 0 {
			t.Errorf("delivered padding command %+v", c)
		}
	}
}

func TestReceiverDeliversDecodedValues(t *testing.T) {
	var got delivered
	r := NewReceiver[command.Command](4, nil, got.onInput)

	if _, err := r.HandlePacket(context.Background(), packet(t, 4, 2, 0)); err != nil {
		t.Fatalf("HandlePacket() error = %v", err)
	}
	if len(got.cmds) != 2 {
		t.Fatalf("delivered %d commands; want 2", len(got.cmds))
	}
	for i, c := range got.cmds {
		if want := cmdFor(int64(i + 1)); !c.Equal(want) {
			t.Errorf("command %d = %+v; want %+v", i+1, c, want)
		}
	}
}

func TestReceiverSeedsFromWatermark(t *testing.T) {
	var got delivered
	r := NewReceiver[command.Command](4, nil, got.onInput)

	if _, err := r.HandlePacket(context.Background(), packet(t, 4, 10, 8)); err != nil {
		t.Fatalf("HandlePacket() error = %v", err)
	}
	if ids := got.take(); !equalIDs(ids, 9, 10) {
		t.Errorf("delivered %v; want [9 10]", ids)
	}
	if r.LastConsumed() != 10 {
		t.Errorf("LastConsumed() = %d; want 10", r.LastConsumed())
	}
}

func TestReceiverDecodeError(t *testing.T) {
	var got delivered
	r := NewReceiver[command.Command](4, nil, got.onInput)
	ctx := context.Background()

	if _, err := r.HandlePacket(ctx, packet(t, 4, 2, 0)); err != nil {
		t.Fatalf("HandlePacket() error = %v", err)
	}
	got.take()

	bad := packet(t, 4, 3, 2)
	ack, err := r.HandlePacket(ctx, bad[:len(bad)-3])
	if err == nil {
		t.Fatal("HandlePacket(truncated) succeeded")
	}
	if ack != nil {
		t.Errorf("ack = %+v; want nil", ack)
	}
	var se *netinput.SlotError
	if !errors.As(err, &se) {
		t.Errorf("error %v is not a *netinput.SlotError", err)
	}
	if ids := got.take(); len(ids) != 0 {
		t.Errorf("delivered %v after a decode error", ids)
	}
	if r.LastConsumed() != 2 {
		t.Errorf("LastConsumed() = %d; want 2", r.LastConsumed())
	}
}

type memRecorder struct {
	mu      sync.Mutex
	packets [][]byte
}

func (m *memRecorder) Append(_ time.Time, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packets = append(m.packets, append([]byte(nil), p...))
	return nil
}

func (m *memRecorder) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

func newTestServer(t *testing.T, size int, onInput func(string, netinput.InputID, *command.Command), rec PacketRecorder) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))

	h := NewHandler[command.Command](HandlerConfig[command.Command]{
		WindowSize:  size,
		ReadTimeout: 5 * time.Second,
		OnInput:     onInput,
		Recorder:    rec,
	}, WithMetrics(metrics), WithLogger(discardLogger()))

	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		InputPath:   "/input",
		MetricsPath: "/metrics",
		Gatherer:    reg,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/input"
}

func TestSenderHandlerEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var ids []netinput.InputID
	rec := &memRecorder{}

	srv := newTestServer(t, 4, func(conn string, id netinput.InputID, c *command.Command) {
		mu.Lock()
		defer mu.Unlock()
		if !strings.HasPrefix(conn, "conn-") {
			t.Errorf("conn = %q; want a conn- id", conn)
		}
		if want := cmdFor(int64(id)); !c.Equal(want) {
			t.Errorf("input %d = %+v; want %+v", id, *c, want)
		}
		ids = append(ids, id)
	}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := Dial[command.Command](ctx, wsURL(srv), 4, nil, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.ReadAcks(ctx) }()

	for id := int64(1); id <= 6; id++ {
		got, err := s.Send(ctx, cmdFor(id))
		if err != nil {
			t.Fatalf("Send(%d) error = %v", id, err)
		}
		if int64(got) != id {
			t.Errorf("Send() id = %d; want %d", got, id)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.Acked() < 6 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if s.Acked() != 6 {
		t.Fatalf("Acked() = %d; want 6", s.Acked())
	}

	mu.Lock()
	if !equalIDs(ids, 1, 2, 3, 4, 5, 6) {
		t.Errorf("server consumed %v; want [1 2 3 4 5 6]", ids)
	}
	mu.Unlock()

	if rec.len() != 6 {
		t.Errorf("recorded %d packets; want 6", rec.len())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ReadAcks() = %v; want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("ReadAcks did not return after cancel")
	}
}

func TestHandlerRejectsUnexpectedFrames(t *testing.T) {
	srv := newTestServer(t, 4, nil, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name    string
		msgType int
		data    []byte
		want    protocol.ErrorCode
	}{
		{"text message", websocket.TextMessage, []byte("hello"), protocol.ErrInvalidFrame},
		{"short frame", websocket.BinaryMessage, []byte{0x01, 0x00}, protocol.ErrInvalidFrame},
		{"ack from client", websocket.BinaryMessage, mustFrame(t, protocol.FrameAck, protocol.EncodeInputAck(&protocol.InputAck{})), protocol.ErrUnexpectedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(tt.msgType, tt.data); err != nil {
				t.Fatalf("WriteMessage() error = %v", err)
			}
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("ReadMessage() error = %v", err)
			}
			frame, err := protocol.DecodeFrame(msg)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}
			if frame.Type != protocol.FrameError {
				t.Fatalf("frame type = %v; want FrameError", frame.Type)
			}
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				t.Fatalf("DecodeErrorMessage() error = %v", err)
			}
			if em.Code != tt.want || em.Fatal {
				t.Errorf("error = %v; want non-fatal %v", em, tt.want)
			}
		})
	}
}

func TestRouterEndpoints(t *testing.T) {
	srv := newTestServer(t, 4, nil, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("GET /healthz = %d %q; want 200 OK", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "inputwire_active_connections") {
		t.Errorf("GET /metrics missing inputwire_active_connections:\n%s", body)
	}
}

func mustFrame(t *testing.T, ft protocol.FrameType, payload []byte) []byte {
	t.Helper()
	data, err := protocol.NewFrame(ft, payload).Encode()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestHandlerRejectsOversizedPacket(t *testing.T) {
	h := NewHandler[command.Command](HandlerConfig[command.Command]{
		WindowSize:  4,
		ReadTimeout: 5 * time.Second,
		MaxPacket:   16,
	}, WithLogger(discardLogger()))
	srv := httptest.NewServer(NewRouter(h, RouterConfig{InputPath: "/input"}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := Dial[command.Command](ctx, wsURL(srv), 4, nil, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer s.Close()

	if _, err := s.Send(ctx, cmdFor(1)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	err = s.ReadAcks(ctx)
	var em *protocol.ErrorMessage
	if !errors.As(err, &em) {
		t.Fatalf("ReadAcks() = %v; want *protocol.ErrorMessage", err)
	}
	if !em.Fatal || em.Code != protocol.ErrInvalidInput {
		t.Errorf("error = %v; want fatal InvalidInput", em)
	}
	if s.Acked() != 0 {
		t.Errorf("Acked() = %d; want 0", s.Acked())
	}
}

func TestSenderCloseSendsFinalFrame(t *testing.T) {
	frames := make(chan *protocol.Frame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			close(frames)
			return
		}
		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			close(frames)
			return
		}
		frames <- frame
	}))
	defer srv.Close()

	s, err := Dial[command.Command](context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"), 4, nil, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	s.Close()

	select {
	case frame, ok := <-frames:
		if !ok {
			t.Fatal("server did not receive a frame")
		}
		if frame.Type != protocol.FrameInput || !frame.Flags.Has(protocol.FlagFinal) || len(frame.Payload) != 0 {
			t.Errorf("frame = %+v; want empty final input frame", frame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no frame before timeout")
	}
}

func TestHandlerClosesOnFinalFrame(t *testing.T) {
	srv := newTestServer(t, 4, nil, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	final, err := (&protocol.Frame{Type: protocol.FrameInput, Flags: protocol.FlagFinal}).Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, final); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("ReadMessage() error = %v; want normal close", err)
	}
}
