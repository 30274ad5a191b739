package delta

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/vango-dev/inputwire/pkg/serialize"
)

// MaxFieldCount bounds the schema size a decoded delta may claim, so a
// hostile count cannot force a large mask allocation.
const MaxFieldCount = 4096

// Delta is the difference between two records of one schema: a bit per
// leaf field, set when the field changed, and the new values of the
// changed fields only.
//
// Wire format:
//
//	[fieldCount: u16][mask: ceil(fieldCount/8) bytes][payloadLen: u16][payload]
//
// Mask bits are LSB-first within each byte, in schema order. The payload
// concatenates the encoded values of the changed fields in schema order.
// The two u16 prefixes add four bytes per delta over a bare mask and
// payload; fieldCount lets Apply reject a schema mismatch before touching
// the target, and payloadLen bounds what one delta may consume.
type Delta struct {
	FieldCount int
	Mask       []byte
	Payload    []byte
}

// New returns an empty delta for a schema of fieldCount fields.
func New(fieldCount int) *Delta {
	return &Delta{
		FieldCount: fieldCount,
		Mask:       make([]byte, maskLen(fieldCount)),
	}
}

func maskLen(fieldCount int) int {
	return (fieldCount + 7) / 8
}

// Changed reports whether field i is marked as changed.
func (d *Delta) Changed(i int) bool {
	if i < 0 || i >= d.FieldCount {
		return false
	}
	return d.Mask[i/8]&(1<<(i%8)) != 0
}

func (d *Delta) set(i int) {
	d.Mask[i/8] |= 1 << (i % 8)
}

// ChangedCount returns the number of set bits.
func (d *Delta) ChangedCount() int {
	n := 0
	for _, b := range d.Mask {
		n += bits.OnesCount8(b)
	}
	return n
}

// Empty reports whether no field changed.
func (d *Delta) Empty() bool {
	return d.ChangedCount() == 0 && len(d.Payload) == 0
}

// validateMask rejects bits set past FieldCount.
func (d *Delta) validateMask() error {
	if len(d.Mask) != maskLen(d.FieldCount) {
		return fmt.Errorf("%w: mask is %d bytes for %d fields", serialize.ErrSerializationFailed, len(d.Mask), d.FieldCount)
	}
	if r := d.FieldCount % 8; r != 0 && d.Mask[len(d.Mask)-1]>>r != 0 {
		return fmt.Errorf("%w: mask bits set past field %d", serialize.ErrSerializationFailed, d.FieldCount)
	}
	return nil
}

// Serialize moves the delta through s. In Populate mode the mask and
// payload are allocated from the decoded counts.
func (d *Delta) Serialize(s serialize.Serializer) bool {
	if s.Mode() == serialize.Capture {
		if d.FieldCount > MaxFieldCount || len(d.Payload) > math.MaxUint16 {
			return s.Fail(fmt.Errorf("%w: delta of %d fields with %d payload bytes does not fit the wire format",
				serialize.ErrSerializationFailed, d.FieldCount, len(d.Payload)))
		}
	}

	count := uint16(d.FieldCount)
	if !s.Uint16("fieldCount", &count) {
		return false
	}
	if s.Mode() == serialize.Populate {
		if count > MaxFieldCount {
			return s.Fail(fmt.Errorf("%w: delta claims %d fields", serialize.ErrSerializationFailed, count))
		}
		d.FieldCount = int(count)
		d.Mask = make([]byte, maskLen(d.FieldCount))
	}
	if !s.Bytes("mask", d.Mask) {
		return false
	}
	if err := d.validateMask(); err != nil {
		return s.Fail(err)
	}

	size := uint16(len(d.Payload))
	if !s.Uint16("payloadLen", &size) {
		return false
	}
	if s.Mode() == serialize.Populate {
		d.Payload = make([]byte, size)
	}
	return s.Bytes("payload", d.Payload)
}
