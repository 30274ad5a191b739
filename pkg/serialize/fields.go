package serialize

import "github.com/vango-dev/inputwire/pkg/protocol"

// Leaf field adapters. The scalar ones wrap a single pointer so storing
// one in a Field interface does not allocate.

type boolField struct{ p *bool }

func (f boolField) Encode(e *protocol.Encoder) { e.WriteBool(*f.p) }
func (f boolField) Decode(d *protocol.Decoder) error {
	v, err := d.ReadBool()
	if err == nil {
		*f.p = v
	}
	return err
}

type int8Field struct{ p *int8 }

func (f int8Field) Encode(e *protocol.Encoder) { e.WriteInt8(*f.p) }
func (f int8Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadInt8()
	if err == nil {
		*f.p = v
	}
	return err
}

type int16Field struct{ p *int16 }

func (f int16Field) Encode(e *protocol.Encoder) { e.WriteInt16(*f.p) }
func (f int16Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadInt16()
	if err == nil {
		*f.p = v
	}
	return err
}

type int32Field struct{ p *int32 }

func (f int32Field) Encode(e *protocol.Encoder) { e.WriteInt32(*f.p) }
func (f int32Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadInt32()
	if err == nil {
		*f.p = v
	}
	return err
}

type int64Field struct{ p *int64 }

func (f int64Field) Encode(e *protocol.Encoder) { e.WriteInt64(*f.p) }
func (f int64Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadInt64()
	if err == nil {
		*f.p = v
	}
	return err
}

type uint8Field struct{ p *uint8 }

func (f uint8Field) Encode(e *protocol.Encoder) { e.WriteByte(*f.p) }
func (f uint8Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadByte()
	if err == nil {
		*f.p = v
	}
	return err
}

type uint16Field struct{ p *uint16 }

func (f uint16Field) Encode(e *protocol.Encoder) { e.WriteUint16(*f.p) }
func (f uint16Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadUint16()
	if err == nil {
		*f.p = v
	}
	return err
}

type uint32Field struct{ p *uint32 }

func (f uint32Field) Encode(e *protocol.Encoder) { e.WriteUint32(*f.p) }
func (f uint32Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadUint32()
	if err == nil {
		*f.p = v
	}
	return err
}

type uint64Field struct{ p *uint64 }

func (f uint64Field) Encode(e *protocol.Encoder) { e.WriteUint64(*f.p) }
func (f uint64Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadUint64()
	if err == nil {
		*f.p = v
	}
	return err
}

type float32Field struct{ p *float32 }

func (f float32Field) Encode(e *protocol.Encoder) { e.WriteFloat32(*f.p) }
func (f float32Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadFloat32()
	if err == nil {
		*f.p = v
	}
	return err
}

type float64Field struct{ p *float64 }

func (f float64Field) Encode(e *protocol.Encoder) { e.WriteFloat64(*f.p) }
func (f float64Field) Decode(d *protocol.Decoder) error {
	v, err := d.ReadFloat64()
	if err == nil {
		*f.p = v
	}
	return err
}

// bytesField is fixed length; Decode fills the whole slice or nothing.
type bytesField []byte

func (f bytesField) Encode(e *protocol.Encoder) { e.WriteBytes(f) }
func (f bytesField) Decode(d *protocol.Decoder) error { return d.ReadInto(f) }
