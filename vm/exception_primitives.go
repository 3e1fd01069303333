package vm

// ---------------------------------------------------------------------------
// Exception natives
// ---------------------------------------------------------------------------

// on:do: itself is a work-frame handler (dispatch.go); signaling and
// the exception object's accessors live here. Exceptions are not
// resumable: a handler's value replaces the protected block's value and
// execution continues after on:do:.

func (vm *VM) registerExceptionPrimitives() {
	c := vm.ExceptionClass

	c.AddClassNative("signal", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		return Nil, &Error{Kind: ErrSignaled, Message: cls.Name, Class: cls}
	})

	c.AddClassNative("signal:", 1, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		return Nil, &Error{Kind: ErrSignaled, Message: args[0].String(), Class: cls}
	})

	slotReader := func(slot string) NativeFunc {
		return func(recv Value, args []Value) (Value, *Error) {
			inst := recv.AsInstance()
			if inst == nil {
				return Nil, Errorf(ErrValue, "%s on a non-exception", slot)
			}
			if idx := inst.Class.SlotIndex(slot); idx >= 0 {
				return inst.GetSlot(idx), nil
			}
			return Nil, nil
		}
	}

	c.AddNative("messageText", 0, slotReader("messageText"))
	c.AddNative("message", 0, slotReader("messageText"))
	c.AddNative("stackTrace", 0, slotReader("stackTrace"))

	// Re-signal from a handler: the exception propagates outward with
	// its original message.
	c.AddNative("signal", 0, func(recv Value, args []Value) (Value, *Error) {
		inst := recv.AsInstance()
		msg := "resignaled exception"
		if idx := inst.Class.SlotIndex("messageText"); idx >= 0 {
			if v := inst.GetSlot(idx); v.IsString() {
				msg = v.Str()
			}
		}
		return Nil, &Error{Kind: ErrSignaled, Message: msg, Class: inst.Class}
	})
}
