package protocol

import (
	"encoding/binary"
	"math"
)

// Encoder builds a wire message in network byte order. Every fixed-width
// value is big-endian; lengths and input ids are uvarints.
//
// A packet writer that must respect a byte budget takes Len before a
// field and Truncates back to it when the field overshoots, so a failed
// field never leaves partial bytes behind.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder sized for a typical command record.
func NewEncoder() *Encoder {
	return NewEncoderWithCap(64)
}

// NewEncoderWithCap returns an encoder that can hold n bytes before it
// grows. Callers that know the exact message size pass it here.
func NewEncoderWithCap(n int) *Encoder {
	return &Encoder{buf: make([]byte, 0, n)}
}

// Reset drops the contents and keeps the capacity. The delta builder
// reuses one scratch encoder per field comparison this way.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

// Bytes returns the message so far. It aliases the encoder's buffer and
// is only valid until the next write, Reset or Truncate.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len is the current message length, usable as a Truncate mark.
func (e *Encoder) Len() int { return len(e.buf) }

// Truncate rewinds the message to mark bytes. A mark at or past the end
// is a no-op.
func (e *Encoder) Truncate(mark int) {
	if mark >= 0 && mark < len(e.buf) {
		e.buf = e.buf[:mark]
	}
}

// WriteByte appends b. It never fails, so unlike io.ByteWriter it has
// no error result.
func (e *Encoder) WriteByte(b byte) { e.buf = append(e.buf, b) }

// WriteBytes appends b with no length prefix.
func (e *Encoder) WriteBytes(b []byte) { e.buf = append(e.buf, b...) }

// WriteUvarint appends v in LEB128 form, at most MaxVarintLen bytes.
func (e *Encoder) WriteUvarint(v uint64) { e.buf = binary.AppendUvarint(e.buf, v) }

// WriteLenBytes appends a uvarint byte count and then b.
func (e *Encoder) WriteLenBytes(b []byte) {
	e.WriteUvarint(uint64(len(b)))
	e.WriteBytes(b)
}

// WriteString is WriteLenBytes for a string.
func (e *Encoder) WriteString(s string) {
	e.WriteUvarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// WriteBool appends 1 or 0.
func (e *Encoder) WriteBool(b bool) {
	var v byte
	if b {
		v = 1
	}
	e.WriteByte(v)
}

func (e *Encoder) WriteUint16(v uint16) { e.buf = binary.BigEndian.AppendUint16(e.buf, v) }
func (e *Encoder) WriteUint32(v uint32) { e.buf = binary.BigEndian.AppendUint32(e.buf, v) }
func (e *Encoder) WriteUint64(v uint64) { e.buf = binary.BigEndian.AppendUint64(e.buf, v) }

// Signed values are written as their two's complement bit pattern.

func (e *Encoder) WriteInt8(v int8)   { e.WriteByte(byte(v)) }
func (e *Encoder) WriteInt16(v int16) { e.WriteUint16(uint16(v)) }
func (e *Encoder) WriteInt32(v int32) { e.WriteUint32(uint32(v)) }
func (e *Encoder) WriteInt64(v int64) { e.WriteUint64(uint64(v)) }

// Floats are written as their IEEE 754 bits, so NaN payloads and -0
// survive a round trip unchanged.

func (e *Encoder) WriteFloat32(v float32) { e.WriteUint32(math.Float32bits(v)) }
func (e *Encoder) WriteFloat64(v float64) { e.WriteUint64(math.Float64bits(v)) }
