package serialize

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/protocol"
)

// Writer is a Capture-mode visitor that appends each leaf to an Encoder.
type Writer struct {
	enc   *protocol.Encoder
	limit int
}

// NewWriter returns a Capture serializer writing to enc.
// A positive limit caps enc's total length; a leaf that would cross it
// fails with ErrSerializationFailed and is not written.
func NewWriter(enc *protocol.Encoder, limit int) Serializer {
	return Adapt(&Writer{enc: enc, limit: limit})
}

// Mode implements Visitor.
func (w *Writer) Mode() Mode { return Capture }

// Visit implements Visitor.
func (w *Writer) Visit(name string, f Field) error {
	mark := w.enc.Len()
	f.Encode(w.enc)
	if w.limit > 0 && w.enc.Len() > w.limit {
		w.enc.Truncate(mark)
		return fmt.Errorf("%w: field %q exceeds %d byte limit", ErrSerializationFailed, name, w.limit)
	}
	return nil
}

// Marshal captures r into a fresh byte slice.
func Marshal(r Record) ([]byte, error) {
	enc := protocol.NewEncoder()
	s := NewWriter(enc, 0)
	if !r.Serialize(s) {
		return nil, Failure(s)
	}
	return enc.Bytes(), nil
}

// Failure is the error to report after a Record returned false through s:
// the serializer's own error, or a generic one if the record gave up
// without any leaf failing.
func Failure(s Serializer) error {
	if err := s.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: record returned false", ErrSerializationFailed)
}
