package transport

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/inputwire/pkg/delta"
	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/telemetry"
)

// InputFunc receives each newly consumed input, in id order. in points
// into the receiver's window and is only valid during the call.
type InputFunc[T any] func(id netinput.InputID, in *T)

// Receiver is the server side of one input connection. It decodes input
// packets and delivers every input it has not delivered before, so a
// lost packet costs nothing as long as a later window still holds its
// inputs.
//
// A Receiver is not safe for concurrent use.
type Receiver[T any, PT netinput.RecordPtr[T]] struct {
	window       *netinput.Window[T, PT]
	onInput      InputFunc[T]
	lastConsumed netinput.InputID
	started      bool
	received     uint64

	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewReceiver creates a receiver for windows of size slots. owner is the
// entity the inputs belong to and may be nil.
func NewReceiver[T any, PT netinput.RecordPtr[T]](size int, owner netinput.EntityHandle, onInput InputFunc[T], opts ...Option) *Receiver[T, PT] {
	o := buildOptions(opts)
	return &Receiver[T, PT]{
		window:  netinput.NewWindow[T, PT](size, owner),
		onInput: onInput,
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
	}
}

// LastConsumed returns the newest input delivered so far.
func (r *Receiver[T, PT]) LastConsumed() netinput.InputID {
	return r.lastConsumed
}

// Window returns the receiver's window as of the last packet.
func (r *Receiver[T, PT]) Window() *netinput.Window[T, PT] {
	return r.window
}

// HandlePacket decodes one input packet, delivers its new inputs and
// returns the ack to send back. A packet that fails to decode delivers
// nothing and leaves the consumed id unchanged.
//
// The first packet's watermark seeds the consumed id, so a receiver that
// joins mid-stream does not replay inputs another receiver already took.
func (r *Receiver[T, PT]) HandlePacket(ctx context.Context, data []byte) (*protocol.InputAck, error) {
	_, span := r.tracer.Start(ctx, "receive", trace.SpanKindServer,
		telemetry.AttrPacketBytes.Int(len(data)),
		telemetry.AttrWindowSize.Int(r.window.Len()),
	)

	r.metrics.RecordPacket(telemetry.DirectionIn, len(data))

	newest, err := DecodePacket(r.window, data)
	if err != nil {
		span.SetAttributes(telemetry.AttrFailedSlot.Int(r.window.LastDecoded() + 1))
		r.metrics.RecordDecodeError(err)
		telemetry.End(span, err)
		return nil, err
	}
	r.received++

	if !r.started {
		r.started = true
		r.lastConsumed = r.window.PreviousInputID()
	}

	consumed, lost := r.deliver(newest)
	r.metrics.RecordConsumed(consumed, lost)
	if lost > 0 {
		r.logger.Warn("inputs lost", "lost", lost, "newest", newest)
	}

	span.SetAttributes(
		telemetry.AttrNewestInput.Int64(int64(newest)),
		telemetry.AttrWatermark.Int64(int64(r.window.PreviousInputID())),
		telemetry.AttrConsumed.Int(consumed),
	)
	telemetry.End(span, nil)

	return &protocol.InputAck{
		LastInputID: uint32(r.lastConsumed),
		Received:    r.received,
	}, nil
}

// deliver hands every slot newer than lastConsumed to onInput and returns
// how many it delivered and how many ids fell before the window.
func (r *Receiver[T, PT]) deliver(newest netinput.InputID) (consumed, lost int) {
	if newest <= r.lastConsumed {
		return 0, 0
	}

	size := r.window.Len()
	oldest := SlotID(newest, size, 0)
	next := int64(r.lastConsumed) + 1
	if oldest > next {
		lost = int(oldest - next)
		next = oldest
	}
	if next < 1 {
		next = 1
	}

	for id := next; id <= int64(newest); id++ {
		i := int(id - oldest)
		if r.metrics != nil && i > 0 {
			if d, err := delta.Create(PT(r.window.Element(i-1)), PT(r.window.Element(i))); err == nil {
				r.metrics.RecordChangedFields(d.ChangedCount())
			}
		}
		if r.onInput != nil {
			r.onInput(netinput.InputID(id), r.window.Element(i))
		}
		consumed++
	}

	r.lastConsumed = newest
	return consumed, lost
}
