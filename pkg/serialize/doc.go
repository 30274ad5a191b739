// Package serialize defines the contract records use to move their fields
// to and from the wire without reflection.
//
// A Record walks its own primitive fields, in a fixed order, through a
// Serializer. The Serializer decides what happens to each field: Writer
// appends its bytes (Capture), Reader overwrites it from bytes (Populate),
// and package delta supplies visitors that compare and patch fields.
//
// Implementations only need to provide a Visitor; Adapt supplies the typed
// leaf methods and short-circuits every call after the first failure.
//
//	type Move struct{ X, Y int32 }
//
//	func (m *Move) Serialize(s serialize.Serializer) bool {
//	    return s.Int32("x", &m.X) && s.Int32("y", &m.Y)
//	}
//
//	data, err := serialize.Marshal(&Move{X: 1, Y: 2})
package serialize
