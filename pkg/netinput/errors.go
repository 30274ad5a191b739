package netinput

import "fmt"

// Steps of a window serialization, reported in SlotError.Op.
const (
	OpFullRecord = "full record"
	OpDecodeDiff = "decode delta"
	OpApplyDiff  = "apply delta"
	OpCreateDiff = "create delta"
	OpEncodeDiff = "encode delta"
	OpWatermark  = "previous input id"
)

// SlotError wraps a window serialization failure with the slot it
// happened at. Slot is -1 for the watermark.
type SlotError struct {
	Slot int
	Op   string
	Err  error
}

// Error returns the error message with slot context.
func (e *SlotError) Error() string {
	if e.Slot < 0 {
		return fmt.Sprintf("netinput: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("netinput: slot %d: %s: %v", e.Slot, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *SlotError) Unwrap() error {
	return e.Err
}
