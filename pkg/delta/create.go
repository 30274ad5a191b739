package delta

import (
	"bytes"
	"fmt"

	"github.com/vango-dev/inputwire/pkg/protocol"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// gatherer records the encoded bytes of every leaf of the baseline record.
type gatherer struct {
	enc  *protocol.Encoder
	ends []int
}

func (g *gatherer) Mode() serialize.Mode { return serialize.Capture }

func (g *gatherer) Visit(_ string, f serialize.Field) error {
	f.Encode(g.enc)
	g.ends = append(g.ends, g.enc.Len())
	return nil
}

func (g *gatherer) field(i int) []byte {
	start := 0
	if i > 0 {
		start = g.ends[i-1]
	}
	return g.enc.Bytes()[start:g.ends[i]]
}

// comparer walks the current record, comparing each leaf's encoding with
// the baseline's and collecting the ones that differ.
type comparer struct {
	base    *gatherer
	delta   *Delta
	scratch *protocol.Encoder
	payload *protocol.Encoder
	index   int
}

func (c *comparer) Mode() serialize.Mode { return serialize.Capture }

func (c *comparer) Visit(name string, f serialize.Field) error {
	if c.index >= len(c.base.ends) {
		return fmt.Errorf("%w: field %q at index %d beyond baseline's %d fields",
			serialize.ErrSchemaMismatch, name, c.index, len(c.base.ends))
	}

	c.scratch.Reset()
	f.Encode(c.scratch)
	if !bytes.Equal(c.scratch.Bytes(), c.base.field(c.index)) {
		c.delta.set(c.index)
		c.payload.WriteBytes(c.scratch.Bytes())
	}
	c.index++
	return nil
}

// Create builds the delta that turns previous into current.
//
// A field counts as changed when its encoded bytes differ, so equality is
// bitwise: -0.0 and +0.0 differ, and a NaN equals itself only when the bit
// patterns match. Both records must expose the same number of fields;
// otherwise Create fails with serialize.ErrSchemaMismatch.
func Create(previous, current serialize.Record) (*Delta, error) {
	base := &gatherer{enc: protocol.NewEncoder()}
	bs := serialize.Adapt(base)
	if !previous.Serialize(bs) {
		return nil, serialize.Failure(bs)
	}
	if len(base.ends) > MaxFieldCount {
		return nil, fmt.Errorf("%w: schema has %d fields, limit is %d",
			serialize.ErrSerializationFailed, len(base.ends), MaxFieldCount)
	}

	c := &comparer{
		base:    base,
		delta:   New(len(base.ends)),
		scratch: protocol.NewEncoderWithCap(16),
		payload: protocol.NewEncoder(),
	}
	cs := serialize.Adapt(c)
	if !current.Serialize(cs) {
		return nil, serialize.Failure(cs)
	}
	if c.index != len(base.ends) {
		return nil, fmt.Errorf("%w: current record has %d fields, previous has %d",
			serialize.ErrSchemaMismatch, c.index, len(base.ends))
	}

	c.delta.Payload = c.payload.Bytes()
	return c.delta, nil
}
