// Package command defines the player command sent once per simulation
// step from client to server.
package command

import (
	"fmt"

	"github.com/vango-dev/inputwire/pkg/netinput"
	"github.com/vango-dev/inputwire/pkg/serialize"
)

// Button is a bit in Command.Buttons.
type Button uint16

const (
	ButtonPrimary Button = 1 << iota
	ButtonSecondary
	ButtonJump
	ButtonUse
	ButtonReload
	ButtonSprint
)

// Command is one step of player input. Movement axes are in [-127, 127];
// view angles are degrees.
type Command struct {
	Forward int8
	Strafe  int8
	Yaw     float32
	Pitch   float32
	Buttons uint16
	Crouch  bool

	// Target is the entity the player is aiming at, sent relative to the
	// owning entity's id when a binding is attached.
	Target netinput.EntityID

	binding netinput.Binding
}

// Serialize implements serialize.Record.
func (c *Command) Serialize(s serialize.Serializer) bool {
	if !(s.Int8("forward", &c.Forward) &&
		s.Int8("strafe", &c.Strafe) &&
		s.Float32("yaw", &c.Yaw) &&
		s.Float32("pitch", &c.Pitch) &&
		s.Uint16("buttons", &c.Buttons) &&
		s.Bool("crouch", &c.Crouch)) {
		return false
	}

	target := int64(c.Target) - c.base()
	if !s.Int64("target", &target) {
		return false
	}
	if s.Mode() == serialize.Populate {
		c.Target = netinput.EntityID(target + c.base())
	}
	return true
}

// base is the owning entity id targets are encoded against.
func (c *Command) base() int64 {
	if c.binding == nil {
		return 0
	}
	return int64(c.binding.EntityID())
}

// AttachBinding implements netinput.Bindable.
func (c *Command) AttachBinding(b netinput.Binding) {
	c.binding = b
}

// Pressed reports whether every bit in b is set.
func (c Command) Pressed(b Button) bool {
	return Button(c.Buttons)&b == b
}

// Press sets the bits in b.
func (c *Command) Press(b Button) {
	c.Buttons |= uint16(b)
}

// Equal reports whether c and o carry the same input, ignoring bindings.
func (c Command) Equal(o Command) bool {
	c.binding, o.binding = nil, nil
	return c == o
}

// String formats c for logs and the inspect command.
func (c Command) String() string {
	return fmt.Sprintf("forward=%d strafe=%d yaw=%.2f pitch=%.2f buttons=%#04x crouch=%t target=%d",
		c.Forward, c.Strafe, c.Yaw, c.Pitch, c.Buttons, c.Crouch, c.Target)
}
