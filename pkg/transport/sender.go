package transport

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// Sender is the client side of an input connection. Every Send pushes one
// new input into the window and writes the whole window, so the server
// recovers from lost packets without retransmission.
//
// Send may be called concurrently with ReadAcks.
type Sender[T any, PT netinput.RecordPtr[T]] struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	window *netinput.Window[T, PT]
	newest netinput.InputID
	acked  netinput.InputID

	packetLimit int
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	tracer      *telemetry.Tracer
}

// Dial connects to an input endpoint (ws:// or wss://) and returns a
// sender for windows of size slots.
func Dial[T any, PT netinput.RecordPtr[T]](ctx context.Context, url string, size int, owner netinput.EntityHandle, opts ...Option) (*Sender[T, PT], error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewSender[T, PT](conn, size, owner, opts...), nil
}

// NewSender wraps an established connection.
func NewSender[T any, PT netinput.RecordPtr[T]](conn *websocket.Conn, size int, owner netinput.EntityHandle, opts ...Option) *Sender[T, PT] {
	o := buildOptions(opts)
	return &Sender[T, PT]{
		conn:        conn,
		window:      netinput.NewWindow[T, PT](size, owner),
		packetLimit: o.packetLimit,
		logger:      o.logger,
		metrics:     o.metrics,
		tracer:      o.tracer,
	}
}

// Send records in as the next input and writes the window to the server.
// It returns the id assigned to in.
func (s *Sender[T, PT]) Send(ctx context.Context, in T) (netinput.InputID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.newest++
	s.window.Advance(in)
	s.window.SetPreviousInputID(s.acked)

	_, span := s.tracer.Start(ctx, "send", trace.SpanKindClient,
		telemetry.AttrNewestInput.Int64(int64(s.newest)),
		telemetry.AttrWatermark.Int64(int64(s.acked)),
		telemetry.AttrWindowSize.Int(s.window.Len()),
	)

	payload, err := EncodePacket(s.window, s.newest, s.packetLimit)
	if err != nil {
		telemetry.End(span, err)
		return s.newest, err
	}
	span.SetAttributes(telemetry.AttrPacketBytes.Int(len(payload)))

	data, err := protocol.NewFrame(protocol.FrameInput, payload).Encode()
	if err != nil {
		telemetry.End(span, err)
		return s.newest, err
	}

	if deadline, ok := ctx.Deadline(); ok {
		s.conn.SetWriteDeadline(deadline)
	} else {
		s.conn.SetWriteDeadline(time.Time{})
	}
	if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		telemetry.End(span, err)
		return s.newest, err
	}

	s.metrics.RecordPacket(telemetry.DirectionOut, len(payload))
	telemetry.End(span, nil)
	return s.newest, nil
}

// ReadAcks reads server frames until the connection fails, ctx is done
// or the server sends a fatal error, which is returned as a
// *protocol.ErrorMessage. Each ack raises the watermark sent with later
// packets.
func (s *Sender[T, PT]) ReadAcks(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.conn.Close()
	})
	defer stop()

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			s.logger.Error("frame decode error", "error", err)
			continue
		}

		switch frame.Type {
		case protocol.FrameAck:
			ack, err := protocol.DecodeInputAck(frame.Payload)
			if err != nil {
				s.logger.Error("ack decode error", "error", err)
				continue
			}
			s.handleAck(ack)

		case protocol.FrameError:
			em, err := protocol.DecodeErrorMessage(frame.Payload)
			if err != nil {
				s.logger.Error("error message decode error", "error", err)
				continue
			}
			if em.Fatal {
				return em
			}
			s.logger.Warn("server error", "code", em.Code, "message", em.Message)

		default:
			s.logger.Warn("unexpected frame type", "type", frame.Type)
		}
	}
}

func (s *Sender[T, PT]) handleAck(ack *protocol.InputAck) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := netinput.InputID(ack.LastInputID)
	if id > s.newest {
		s.logger.Warn("ack ahead of sent inputs", "acked", id, "newest", s.newest)
		return
	}
	if id > s.acked {
		s.acked = id
	}
}

// Acked returns the newest input the server has acknowledged.
func (s *Sender[T, PT]) Acked() netinput.InputID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acked
}

// Newest returns the id of the last input sent.
func (s *Sender[T, PT]) Newest() netinput.InputID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newest
}

// Close tells the server no more inputs follow, sends a close message and
// closes the connection.
func (s *Sender[T, PT]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	final := &protocol.Frame{Type: protocol.FrameInput, Flags: protocol.FlagFinal}
	if data, err := final.Encode(); err == nil {
		s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := s.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			s.logger.Debug("final frame write failed", "error", err)
		}
	}
	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}
