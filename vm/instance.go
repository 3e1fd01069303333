package vm

// ---------------------------------------------------------------------------
// Instance: heap-allocated object with class pointer and slot vector
// ---------------------------------------------------------------------------

// Instance is a user-visible object. Plain objects carry a slot vector
// sized to the class's merged slot layout; proxy objects carry an opaque
// native handle instead (processes, monitors, semaphores, shared queues
// and the scheduler are proxies).
type Instance struct {
	Class  *Class
	Slots  []Value
	Handle any // opaque native payload for proxy instances
}

// NewInstance allocates an instance of class with every slot set to Nil.
func NewInstance(class *Class) *Instance {
	slots := make([]Value, len(class.AllSlotNames))
	for i := range slots {
		slots[i] = Nil
	}
	return &Instance{Class: class, Slots: slots}
}

// NewProxy allocates a proxy instance wrapping a native handle.
func NewProxy(class *Class, handle any) *Instance {
	return &Instance{Class: class, Handle: handle}
}

// GetSlot returns the value at the given slot index.
func (inst *Instance) GetSlot(index int) Value {
	if index < 0 || index >= len(inst.Slots) {
		return Nil
	}
	return inst.Slots[index]
}

// SetSlot stores a value at the given slot index.
func (inst *Instance) SetSlot(index int, v Value) {
	if index < 0 || index >= len(inst.Slots) {
		return
	}
	inst.Slots[index] = v
}

// NumSlots returns the slot count.
func (inst *Instance) NumSlots() int {
	return len(inst.Slots)
}

// ClassName returns the instance's class name, or "?" without a class.
func (inst *Instance) ClassName() string {
	if inst.Class == nil {
		return "?"
	}
	return inst.Class.Name
}
