package capture

import (
	"fmt"
	"time"

	"github.com/vango-dev/inputwire/pkg/protocol"
)

// Entry is one captured input packet.
type Entry struct {
	ReceivedAt time.Time
	Packet     []byte
}

// Segment layout, repeated until the end of the object:
//
//	┌──────────────────┬──────────────┬──────────────────┐
//	│ Received At      │ Length       │ Packet           │
//	│ (8 bytes, ns)    │ (uvarint)    │ (Length bytes)   │
//	└──────────────────┴──────────────┴──────────────────┘

// AppendEntry writes e to enc in segment format.
func AppendEntry(enc *protocol.Encoder, e Entry) {
	enc.WriteUint64(uint64(e.ReceivedAt.UnixNano()))
	enc.WriteLenBytes(e.Packet)
}

// DecodeSegment parses a whole segment.
func DecodeSegment(data []byte) ([]Entry, error) {
	d := protocol.NewDecoder(data)

	var entries []Entry
	for !d.EOF() {
		ns, err := d.ReadUint64()
		if err != nil {
			return entries, fmt.Errorf("capture: entry %d: timestamp: %w", len(entries), err)
		}
		packet, err := d.ReadLenBytes()
		if err != nil {
			return entries, fmt.Errorf("capture: entry %d: packet: %w", len(entries), err)
		}
		entries = append(entries, Entry{
			ReceivedAt: time.Unix(0, int64(ns)),
			Packet:     packet,
		})
	}
	return entries, nil
}
