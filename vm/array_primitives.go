package vm

// ---------------------------------------------------------------------------
// Array natives
// ---------------------------------------------------------------------------

// Indexing is zero-based. The iteration protocol (do:, collect:, …) is
// defined in the prelude on top of at: and size so its blocks run
// through the work queue and can yield.

func (vm *VM) registerArrayPrimitives() {
	c := vm.ArrayClass

	c.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromArray(NewArray(nil)), nil
	})

	c.AddClassNative("new:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsInt() || args[0].Int() < 0 {
			return Nil, Errorf(ErrValue, "Array new: requires a non-negative Int")
		}
		elems := make([]Value, args[0].Int())
		for i := range elems {
			elems[i] = Nil
		}
		return FromArray(NewArray(elems)), nil
	})

	c.AddNative("size", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(len(recv.AsArray().Elems))), nil
	})

	c.AddNative("at:", 1, func(recv Value, args []Value) (Value, *Error) {
		arr := recv.AsArray()
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "at: requires an Int index")
		}
		i := args[0].Int()
		if i < 0 || i >= int64(len(arr.Elems)) {
			return Nil, Errorf(ErrValue, "array index %d out of bounds (size %d)", i, len(arr.Elems))
		}
		return arr.Elems[i], nil
	})

	c.AddNative("at:put:", 2, func(recv Value, args []Value) (Value, *Error) {
		arr := recv.AsArray()
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "at:put: requires an Int index")
		}
		i := args[0].Int()
		if i < 0 || i >= int64(len(arr.Elems)) {
			return Nil, Errorf(ErrValue, "array index %d out of bounds (size %d)", i, len(arr.Elems))
		}
		arr.Elems[i] = args[1]
		return args[1], nil
	})

	c.AddNative("first", 0, func(recv Value, args []Value) (Value, *Error) {
		arr := recv.AsArray()
		if len(arr.Elems) == 0 {
			return Nil, Errorf(ErrValue, "first on an empty array")
		}
		return arr.Elems[0], nil
	})

	c.AddNative("last", 0, func(recv Value, args []Value) (Value, *Error) {
		arr := recv.AsArray()
		if len(arr.Elems) == 0 {
			return Nil, Errorf(ErrValue, "last on an empty array")
		}
		return arr.Elems[len(arr.Elems)-1], nil
	})

	// copyWith: answers a fresh array with the element appended.
	c.AddNative("copyWith:", 1, func(recv Value, args []Value) (Value, *Error) {
		arr := recv.AsArray()
		elems := make([]Value, len(arr.Elems)+1)
		copy(elems, arr.Elems)
		elems[len(arr.Elems)] = args[0]
		return FromArray(NewArray(elems)), nil
	})

	c.AddNative(",", 1, func(recv Value, args []Value) (Value, *Error) {
		other := args[0].AsArray()
		if other == nil {
			return Nil, Errorf(ErrValue, ", requires an Array, got %s", args[0].Kind())
		}
		arr := recv.AsArray()
		elems := make([]Value, 0, len(arr.Elems)+len(other.Elems))
		elems = append(elems, arr.Elems...)
		elems = append(elems, other.Elems...)
		return FromArray(NewArray(elems)), nil
	})

	// = compares arrays elementwise with default equality.
	c.AddNative("=", 1, func(recv Value, args []Value) (Value, *Error) {
		other := args[0].AsArray()
		if other == nil {
			return False, nil
		}
		arr := recv.AsArray()
		if len(arr.Elems) != len(other.Elems) {
			return False, nil
		}
		for i, e := range arr.Elems {
			if !e.Equals(other.Elems[i]) {
				return False, nil
			}
		}
		return True, nil
	})
}
