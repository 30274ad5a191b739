package delta

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// applier overwrites the fields whose bit is set from the payload and
// leaves every other field untouched.
type applier struct {
	delta   *Delta
	payload *protocol.Decoder
	index   int
}

func (a *applier) Mode() serialize.Mode { return serialize.Populate }

func (a *applier) Visit(name string, f serialize.Field) error {
	i := a.index
	a.index++
	if i >= a.delta.FieldCount {
		return fmt.Errorf("%w: field %q at index %d beyond delta's %d fields",
			serialize.ErrSchemaMismatch, name, i, a.delta.FieldCount)
	}
	if !a.delta.Changed(i) {
		return nil
	}
	if err := f.Decode(a.payload); err != nil {
		return serialize.FieldError(name, err)
	}
	return nil
}

// Apply patches target, which must already hold a copy of the delta's
// baseline record.
//
// The field count is checked before target is touched. A failure after
// that (a truncated or oversized payload, a malformed value) can leave
// target partially patched, so callers apply into a scratch copy and keep
// it only when Apply succeeds.
func Apply(d *Delta, target serialize.Record) error {
	if err := d.validateMask(); err != nil {
		return err
	}
	if err := serialize.CheckFieldCount(target, d.FieldCount); err != nil {
		return err
	}

	a := &applier{delta: d, payload: protocol.NewDecoder(d.Payload)}
	s := serialize.Adapt(a)
	if !target.Serialize(s) {
		return serialize.Failure(s)
	}
	if a.index != d.FieldCount {
		return fmt.Errorf("%w: record has %d fields, delta has %d",
			serialize.ErrSchemaMismatch, a.index, d.FieldCount)
	}
	if !a.payload.EOF() {
		return fmt.Errorf("%w: %d payload bytes left after the last changed field",
			serialize.ErrSchemaMismatch, a.payload.Remaining())
	}
	return nil
}

// ChangedFields returns the names of the fields d marks as changed, using
// r only for its schema.
func ChangedFields(d *Delta, r serialize.Record) ([]string, error) {
	names, err := serialize.Fields(r)
	if err != nil {
		return nil, err
	}
	if len(names) != d.FieldCount {
		return nil, fmt.Errorf("%w: record has %d fields, delta has %d",
			serialize.ErrSchemaMismatch, len(names), d.FieldCount)
	}

	var changed []string
	for i, name := range names {
		if d.Changed(i) {
			changed = append(changed, name)
		}
	}
	return changed, nil
}
