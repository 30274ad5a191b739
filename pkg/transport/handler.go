package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// PacketRecorder stores raw input packets as they arrive.
type PacketRecorder interface {
	Append(at time.Time, packet []byte) error
}

// HandlerConfig configures a Handler.
type HandlerConfig[T any] struct {
	// WindowSize is the number of slots per packet. Clients must match.
	WindowSize int

	// ReadTimeout closes a connection that sends nothing for this long.
	ReadTimeout time.Duration

	// MaxPacket is the largest input packet accepted, in bytes. A larger
	// packet gets a fatal error and the connection is closed.
	MaxPacket int

	// Owner returns the entity a new connection's inputs belong to.
	// It may be nil, and may return nil.
	Owner func(r *http.Request) netinput.EntityHandle

	// OnInput receives every consumed input of every connection. conn is
	// the connection id, also logged as "conn".
	OnInput func(conn string, id netinput.InputID, in *T)

	// Recorder, if set, receives every input frame payload.
	Recorder PacketRecorder

	// CheckOrigin is passed to the websocket upgrader.
	CheckOrigin func(r *http.Request) bool
}

// Handler is the websocket endpoint that input clients connect to. Each
// connection gets its own Receiver.
type Handler[T any, PT netinput.RecordPtr[T]] struct {
	config   HandlerConfig[T]
	upgrader websocket.Upgrader
	opts     []Option
	logger   *slog.Logger
	metrics  *telemetry.Metrics
}

// NewHandler creates an input endpoint.
func NewHandler[T any, PT netinput.RecordPtr[T]](config HandlerConfig[T], opts ...Option) *Handler[T, PT] {
	if config.WindowSize < 1 {
		config.WindowSize = 1
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.MaxPacket <= 0 || config.MaxPacket > MaxPacketSize {
		config.MaxPacket = MaxPacketSize
	}

	o := buildOptions(opts)
	return &Handler[T, PT]{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     config.CheckOrigin,
		},
		opts:    opts,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// ServeHTTP upgrades the request and serves the connection until it
// closes.
func (h *Handler[T, PT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	h.serve(r.Context(), conn, r)
}

func (h *Handler[T, PT]) serve(ctx context.Context, conn *websocket.Conn, r *http.Request) {
	id := "conn-" + uuid.New().String()
	logger := h.logger.With("conn", id)
	logger.Info("input connection opened", "remote", r.RemoteAddr)
	defer logger.Info("input connection closed")

	var owner netinput.EntityHandle
	if h.config.Owner != nil {
		owner = h.config.Owner(r)
	}

	var onInput InputFunc[T]
	if h.config.OnInput != nil {
		onInput = func(seq netinput.InputID, in *T) {
			h.config.OnInput(id, seq, in)
		}
	}

	opts := append(append([]Option{}, h.opts...), WithLogger(logger))
	recv := NewReceiver[T, PT](h.config.WindowSize, owner, onInput, opts...)

	conn.SetReadLimit(int64(protocol.FrameHeaderSize + MaxPacketSize))

	for {
		conn.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))

		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				logger.Error("read error", "error", err)
			}
			return
		}
		if mt != websocket.BinaryMessage {
			h.sendError(conn, logger, protocol.NewError(protocol.ErrInvalidFrame, "binary messages only"))
			continue
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			logger.Warn("frame decode error", "error", err)
			h.metrics.RecordDecodeError(err)
			h.sendError(conn, logger, protocol.NewError(protocol.ErrInvalidFrame, err.Error()))
			continue
		}
		if frame.Type != protocol.FrameInput {
			h.sendError(conn, logger, protocol.NewError(protocol.ErrUnexpectedType, frame.Type.String()+" is not accepted from clients"))
			continue
		}

		if frame.Flags.Has(protocol.FlagFinal) {
			logger.Info("client finished", "last_consumed", recv.LastConsumed())
			h.closeNormal(conn, logger)
			return
		}
		if len(frame.Payload) > h.config.MaxPacket {
			h.sendError(conn, logger, protocol.NewFatalError(protocol.ErrInvalidInput,
				fmt.Sprintf("packet of %d bytes exceeds limit of %d", len(frame.Payload), h.config.MaxPacket)))
			h.closeNormal(conn, logger)
			return
		}

		if h.config.Recorder != nil {
			if err := h.config.Recorder.Append(time.Now(), frame.Payload); err != nil {
				logger.Error("capture append failed", "error", err)
			}
		}

		ack, err := recv.HandlePacket(ctx, frame.Payload)
		if err != nil {
			logger.Warn("input decode error", "error", err, "bytes", len(frame.Payload))
			continue
		}

		if err := h.write(conn, protocol.FrameAck, protocol.EncodeInputAck(ack)); err != nil {
			logger.Error("ack write failed", "error", err)
			return
		}
		h.metrics.RecordAck()
	}
}

func (h *Handler[T, PT]) write(conn *websocket.Conn, ft protocol.FrameType, payload []byte) error {
	data, err := protocol.NewFrame(ft, payload).Encode()
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(h.config.ReadTimeout))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (h *Handler[T, PT]) sendError(conn *websocket.Conn, logger *slog.Logger, em *protocol.ErrorMessage) {
	if err := h.write(conn, protocol.FrameError, protocol.EncodeErrorMessage(em)); err != nil {
		logger.Error("error write failed", "error", err)
	}
}

func (h *Handler[T, PT]) closeNormal(conn *websocket.Conn, logger *slog.Logger) {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	if err != nil {
		logger.Debug("close write failed", "error", err)
	}
}
