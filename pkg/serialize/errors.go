package serialize

import (
	"errors"
	"fmt"
	"io"
)

// Error kinds. Serializers wrap these with the failing field's name, so
// callers match them with errors.Is.
var (
	// ErrSerializationFailed is a context-level failure: a full sink, a
	// malformed value, or a record that rejected its own contents.
	ErrSerializationFailed = errors.New("serialize: serialization failed")

	// ErrSchemaMismatch means two passes over the same schema disagreed on
	// the number of leaf fields.
	ErrSchemaMismatch = errors.New("serialize: schema mismatch")

	// ErrSourceExhausted means fewer bytes were available than the schema
	// requires.
	ErrSourceExhausted = errors.New("serialize: source exhausted")
)

// FieldError classifies a decoder error for the named field: short reads
// become ErrSourceExhausted, anything else ErrSerializationFailed.
func FieldError(name string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: field %q", ErrSourceExhausted, name)
	}
	return fmt.Errorf("%w: field %q: %v", ErrSerializationFailed, name, err)
}
