// Package protocol implements the byte-level wire format shared by the
// input client and server.
//
// It provides an append-only Encoder, a bounds-checked Decoder, the frame
// header every websocket message starts with, and the small control
// payloads (acks, errors) that travel beside input windows.
//
// # Encoding
//
//   - Fixed-width integers and floats: big-endian, floats as IEEE 754 bits
//   - Booleans: one byte, strictly 0x00 or 0x01
//   - Varint: protobuf-style unsigned varints for counters and lengths
//   - Length-prefixed: strings and byte slices prefixed with a uvarint
//
// # Frames
//
//	┌─────────────┬──────────────┬───────────────────────────────┐
//	│ Frame Type  │ Flags        │ Payload Length                │
//	│ (1 byte)    │ (1 byte)     │ (2 bytes, big-endian)         │
//	└─────────────┴──────────────┴───────────────────────────────┘
//
//   - FrameInput (0x01): client input window
//   - FrameAck (0x02): last consumed input id
//   - FrameError (0x03): error message
//
// The payload of a FrameInput is produced by package transport; this
// package only moves bytes.
package protocol
