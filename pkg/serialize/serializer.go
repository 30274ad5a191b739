package serialize

import "github.com/vango-dev/inputwire/pkg/protocol"

// Mode is the direction a Serializer moves values in.
type Mode uint8

const (
	// Capture reads live values and appends their bytes.
	Capture Mode = iota
	// Populate reads bytes and overwrites live values.
	Populate
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Capture:
		return "Capture"
	case Populate:
		return "Populate"
	default:
		return "Unknown"
	}
}

// Serializer moves primitive values between a record and some other
// representation. A Serializer is fixed to one Mode for its lifetime.
//
// Every call returns false once any call has failed, without touching its
// argument; Err reports the first failure.
type Serializer interface {
	Mode() Mode

	Bool(name string, v *bool) bool
	Int8(name string, v *int8) bool
	Int16(name string, v *int16) bool
	Int32(name string, v *int32) bool
	Int64(name string, v *int64) bool
	Uint8(name string, v *uint8) bool
	Uint16(name string, v *uint16) bool
	Uint32(name string, v *uint32) bool
	Uint64(name string, v *uint64) bool
	Float32(name string, v *float32) bool
	Float64(name string, v *float64) bool

	// Bytes moves exactly len(b) raw bytes. The length is part of the
	// schema and is never written.
	Bytes(name string, b []byte) bool

	// Fail records err as the serializer's failure and returns false.
	// It has no effect if a failure is already recorded.
	Fail(err error) bool

	Err() error
}

// Record is implemented by every type that can be serialized.
//
// Serialize must visit the same leaf fields in the same order every time,
// in every mode, and should return the conjunction of its leaf calls:
//
//	func (c *Move) Serialize(s serialize.Serializer) bool {
//	    return s.Int32("x", &c.X) && s.Int32("y", &c.Y)
//	}
type Record interface {
	Serialize(s Serializer) bool
}

// Field is one primitive leaf handed to a Visitor. It knows how to encode
// its current value and how to overwrite it from a decoder.
type Field interface {
	Encode(e *protocol.Encoder)
	Decode(d *protocol.Decoder) error
}

// Visitor is the single method a serializer implementation supplies.
// Adapt turns it into a full Serializer.
type Visitor interface {
	Mode() Mode

	// Visit handles one leaf. It is only called while no failure is
	// recorded; a non-nil error becomes the sticky failure.
	Visit(name string, f Field) error
}

// Adapt wraps v as a Serializer, supplying the typed leaf methods and the
// sticky failure handling.
func Adapt(v Visitor) Serializer {
	return &adapter{v: v}
}

type adapter struct {
	v   Visitor
	err error
}

func (a *adapter) Mode() Mode { return a.v.Mode() }
func (a *adapter) Err() error { return a.err }

func (a *adapter) Fail(err error) bool {
	if a.err == nil {
		a.err = err
	}
	return false
}

func (a *adapter) visit(name string, f Field) bool {
	if a.err != nil {
		return false
	}
	if err := a.v.Visit(name, f); err != nil {
		a.err = err
		return false
	}
	return true
}

func (a *adapter) Bool(name string, v *bool) bool { return a.visit(name, boolField{v}) }
func (a *adapter) Int8(name string, v *int8) bool { return a.visit(name, int8Field{v}) }
func (a *adapter) Int16(name string, v *int16) bool { return a.visit(name, int16Field{v}) }
func (a *adapter) Int32(name string, v *int32) bool { return a.visit(name, int32Field{v}) }
func (a *adapter) Int64(name string, v *int64) bool { return a.visit(name, int64Field{v}) }
func (a *adapter) Uint8(name string, v *uint8) bool { return a.visit(name, uint8Field{v}) }
func (a *adapter) Uint16(name string, v *uint16) bool { return a.visit(name, uint16Field{v}) }
func (a *adapter) Uint32(name string, v *uint32) bool { return a.visit(name, uint32Field{v}) }
func (a *adapter) Uint64(name string, v *uint64) bool { return a.visit(name, uint64Field{v}) }
func (a *adapter) Float32(name string, v *float32) bool { return a.visit(name, float32Field{v}) }
func (a *adapter) Float64(name string, v *float64) bool { return a.visit(name, float64Field{v}) }
func (a *adapter) Bytes(name string, b []byte) bool { return a.visit(name, bytesField(b)) }
