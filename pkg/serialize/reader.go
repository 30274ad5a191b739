package serialize

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/protocol"
)

// Reader is a Populate-mode visitor that overwrites each leaf from a
// Decoder.
type Reader struct {
	dec *protocol.Decoder
}

// NewReader returns a Populate serializer reading from dec.
func NewReader(dec *protocol.Decoder) Serializer {
	return Adapt(&Reader{dec: dec})
}

// Mode implements Visitor.
func (r *Reader) Mode() Mode { return Populate }

// Visit implements Visitor.
func (r *Reader) Visit(name string, f Field) error {
	if err := f.Decode(r.dec); err != nil {
		return FieldError(name, err)
	}
	return nil
}

// Unmarshal populates r from data, which must be consumed exactly.
func Unmarshal(data []byte, r Record) error {
	dec := protocol.NewDecoder(data)
	s := NewReader(dec)
	if !r.Serialize(s) {
		return Failure(s)
	}
	if !dec.EOF() {
		return fmt.Errorf("%w: %d trailing bytes", ErrSchemaMismatch, dec.Remaining())
	}
	return nil
}
