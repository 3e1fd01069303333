package vm

// ---------------------------------------------------------------------------
// Boolean natives
// ---------------------------------------------------------------------------

// The conditional selectors (ifTrue:, and:, …) are work-frame handlers
// in dispatch.go, not natives, so their branches can yield and unwind.
// Only the eager operators live here.

func (vm *VM) registerBooleanPrimitives() {
	c := vm.BooleanClass

	c.AddNative("not", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(!recv.Bool()), nil
	})

	c.AddNative("&", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsBool() {
			return Nil, Errorf(ErrValue, "& requires a Boolean, got %s", args[0].Kind())
		}
		return FromBool(recv.Bool() && args[0].Bool()), nil
	})

	c.AddNative("|", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsBool() {
			return Nil, Errorf(ErrValue, "| requires a Boolean, got %s", args[0].Kind())
		}
		return FromBool(recv.Bool() || args[0].Bool()), nil
	})

	c.AddNative("xor:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsBool() {
			return Nil, Errorf(ErrValue, "xor: requires a Boolean, got %s", args[0].Kind())
		}
		return FromBool(recv.Bool() != args[0].Bool()), nil
	})
}
