package netinput

// EntityID identifies a networked entity.
type EntityID uint64

// Binding is the per-entity context a record may need to resolve
// entity-relative fields. Windows share it with their slots; they never
// own it, and it must outlive every window it is attached to.
type Binding interface {
	EntityID() EntityID
}

// EntityHandle is the owning entity of a window. Binding returns nil when
// the entity has no binding context.
type EntityHandle interface {
	Binding() Binding
}

// Bindable is implemented by records that keep a Binding.
type Bindable interface {
	AttachBinding(b Binding)
}

// StaticBinding is a Binding with a fixed entity id.
type StaticBinding EntityID

// EntityID implements Binding.
func (b StaticBinding) EntityID() EntityID { return EntityID(b) }

// Entity is an EntityHandle that always yields the same Binding.
type Entity struct {
	binding Binding
}

// NewEntity returns a handle whose binding context is b (which may be nil).
func NewEntity(b Binding) *Entity {
	return &Entity{binding: b}
}

// Binding implements EntityHandle.
func (e *Entity) Binding() Binding {
	if e == nil {
		return nil
	}
	return e.binding
}
