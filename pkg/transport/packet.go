package transport

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// MaxPacketSize is the largest input packet that fits in one frame.
const MaxPacketSize = protocol.MaxPayloadSize

// Input packet layout:
//
//	┌──────────────────┬──────────────────────────────────────────┐
//	│ Newest Input ID  │ Window                                   │
//	│ (4 bytes)        │ (slot 0, deltas 1..N-1, previousInputId) │
//	└──────────────────┴──────────────────────────────────────────┘
//
// Slot i of a window of N slots holds input newest-(N-1-i). Ids at or
// below zero are padding from before the first input.

// SlotID returns the input id held by slot i of a size-slot window whose
// newest input is newest. The result is zero or negative for padding.
func SlotID(newest netinput.InputID, size, i int) int64 {
	return int64(newest) - int64(size-1-i)
}

// EncodePacket writes newest and the window into one packet of at most
// limit bytes (no limit if limit <= 0).
func EncodePacket[T any, PT netinput.RecordPtr[T]](w *netinput.Window[T, PT], newest netinput.InputID, limit int) ([]byte, error) {
	enc := protocol.NewEncoderWithCap(64)
	enc.WriteUint32(uint32(newest))

	if err := w.Serialize(serialize.NewWriter(enc, limit)); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

// DecodePacket reads a packet into w and returns its newest input id.
// On error w may be partially updated, see netinput.Window.Serialize.
func DecodePacket[T any, PT netinput.RecordPtr[T]](w *netinput.Window[T, PT], data []byte) (netinput.InputID, error) {
	dec := protocol.NewDecoder(data)
	newest, err := dec.ReadUint32()
	if err != nil {
		return 0, serialize.FieldError("newestInputId", err)
	}

	if err := w.Serialize(serialize.NewReader(dec)); err != nil {
		return 0, err
	}
	if !dec.EOF() {
		return 0, fmt.Errorf("%w: %d trailing bytes after window", serialize.ErrSchemaMismatch, dec.Remaining())
	}
	return netinput.InputID(newest), nil
}
