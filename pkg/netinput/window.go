package netinput

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/delta"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// InputID identifies a client input. Ids increase by one per simulation
// step; zero means "no input".
type InputID uint32

// RecordPtr constrains PT to be *T and a serialize.Record, so a Window can
// store records by value and still call their pointer methods.
type RecordPtr[T any] interface {
	*T
	serialize.Record
}

// Window is a fixed-size history of input records plus the id of the last
// input the receiver is known to have consumed.
//
// Slot 0 is the oldest record. On the wire slot 0 is sent in full and every
// later slot as a delta against the slot before it, so a window of mostly
// repeated inputs costs little more than one record.
//
// A Window is not safe for concurrent use.
type Window[T any, PT RecordPtr[T]] struct {
	inputs          []T
	previousInputID InputID
	binding         Binding
	lastDecoded     int
}

// NewWindow creates a window of size slots. If owner has a binding
// context, every slot record implementing Bindable is attached to it.
// It panics if size is less than 1.
func NewWindow[T any, PT RecordPtr[T]](size int, owner EntityHandle) *Window[T, PT] {
	if size < 1 {
		panic(fmt.Sprintf("netinput: window size %d, must be at least 1", size))
	}

	w := &Window[T, PT]{
		inputs:      make([]T, size),
		lastDecoded: -1,
	}
	if owner != nil {
		w.binding = owner.Binding()
	}
	if w.binding != nil {
		for i := range w.inputs {
			w.attach(&w.inputs[i])
		}
	}
	return w
}

func (w *Window[T, PT]) attach(rec *T) {
	if b, ok := any(PT(rec)).(Bindable); ok {
		b.AttachBinding(w.binding)
	}
}

// Len returns the number of slots.
func (w *Window[T, PT]) Len() int {
	return len(w.inputs)
}

// Element returns the record in slot i. It panics if i is out of range.
func (w *Window[T, PT]) Element(i int) *T {
	return &w.inputs[i]
}

// Binding returns the binding context attached at construction, or nil.
func (w *Window[T, PT]) Binding() Binding {
	return w.binding
}

// SetPreviousInputID sets the watermark.
func (w *Window[T, PT]) SetPreviousInputID(id InputID) {
	w.previousInputID = id
}

// PreviousInputID returns the watermark.
func (w *Window[T, PT]) PreviousInputID() InputID {
	return w.previousInputID
}

// LastDecoded returns the index of the last slot committed by the most
// recent Populate-mode Serialize: Len()-1 after a success, k-1 after a
// failure at slot k, and -1 if slot 0 failed or nothing was decoded yet.
func (w *Window[T, PT]) LastDecoded() int {
	return w.lastDecoded
}

// Advance drops slot 0, shifts every record one slot toward the front and
// stores next in the last slot.
func (w *Window[T, PT]) Advance(next T) {
	copy(w.inputs, w.inputs[1:])
	last := len(w.inputs) - 1
	w.inputs[last] = next
	if w.binding != nil {
		w.attach(&w.inputs[last])
	}
}

// Serialize moves the whole window through s in whichever mode s is in.
//
// In Populate mode every record is decoded into a scratch copy and stored
// only once it is complete. If decoding fails at slot k, slots before k
// hold the new records, slots from k on keep their old contents, and the
// watermark is unchanged. Errors are *SlotError values wrapping the
// serialize error kinds.
func (w *Window[T, PT]) Serialize(s serialize.Serializer) error {
	populate := s.Mode() == serialize.Populate
	if populate {
		w.lastDecoded = -1
	}

	if populate {
		scratch := w.inputs[0]
		if !PT(&scratch).Serialize(s) {
			return &SlotError{Slot: 0, Op: OpFullRecord, Err: serialize.Failure(s)}
		}
		w.inputs[0] = scratch
		w.lastDecoded = 0
	} else if !PT(&w.inputs[0]).Serialize(s) {
		return &SlotError{Slot: 0, Op: OpFullRecord, Err: serialize.Failure(s)}
	}

	for i := 1; i < len(w.inputs); i++ {
		var err error
		if populate {
			err = w.decodeDeltaFrom(s, i)
		} else {
			err = w.encodeDeltaInto(s, i)
		}
		if err != nil {
			return err
		}
	}

	id := uint32(w.previousInputID)
	if !s.Uint32("previousInputId", &id) {
		return &SlotError{Slot: -1, Op: OpWatermark, Err: serialize.Failure(s)}
	}
	if populate {
		w.previousInputID = InputID(id)
	}
	return nil
}

// encodeDeltaInto writes slot i as a delta against slot i-1.
func (w *Window[T, PT]) encodeDeltaInto(s serialize.Serializer, i int) error {
	d, err := delta.Create(PT(&w.inputs[i-1]), PT(&w.inputs[i]))
	if err != nil {
		s.Fail(err)
		return &SlotError{Slot: i, Op: OpCreateDiff, Err: err}
	}
	if !d.Serialize(s) {
		return &SlotError{Slot: i, Op: OpEncodeDiff, Err: serialize.Failure(s)}
	}
	return nil
}

// decodeDeltaFrom reads a delta and rebuilds slot i from slot i-1.
func (w *Window[T, PT]) decodeDeltaFrom(s serialize.Serializer, i int) error {
	var d delta.Delta
	if !d.Serialize(s) {
		return &SlotError{Slot: i, Op: OpDecodeDiff, Err: serialize.Failure(s)}
	}

	scratch := w.inputs[i-1]
	if err := delta.Apply(&d, PT(&scratch)); err != nil {
		s.Fail(err)
		return &SlotError{Slot: i, Op: OpApplyDiff, Err: err}
	}
	w.inputs[i] = scratch
	w.lastDecoded = i
	return nil
}
