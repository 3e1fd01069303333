package vm

// ---------------------------------------------------------------------------
// Table natives
// ---------------------------------------------------------------------------

func (vm *VM) registerTablePrimitives() {
	c := vm.TableClass

	c.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromTable(NewTable()), nil
	})

	c.AddNative("size", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(recv.AsTable().Len())), nil
	})

	c.AddNative("isEmpty", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.AsTable().Len() == 0), nil
	})

	c.AddNative("at:", 1, func(recv Value, args []Value) (Value, *Error) {
		v, ok := recv.AsTable().At(args[0])
		if !ok {
			return Nil, Errorf(ErrValue, "key not found: %s", args[0].String())
		}
		return v, nil
	})

	c.AddNativeInterp("at:ifAbsent:", 2, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		if v, ok := recv.AsTable().At(args[0]); ok {
			return v, nil
		}
		if blk := args[1].AsBlock(); blk != nil {
			return in.ApplyBlockValue(args[1], nil)
		}
		return args[1], nil
	})

	c.AddNative("at:put:", 2, func(recv Value, args []Value) (Value, *Error) {
		recv.AsTable().AtPut(args[0], args[1])
		return args[1], nil
	})

	c.AddNative("includesKey:", 1, func(recv Value, args []Value) (Value, *Error) {
		_, ok := recv.AsTable().At(args[0])
		return FromBool(ok), nil
	})

	c.AddNative("removeKey:", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.AsTable().RemoveKey(args[0])), nil
	})

	c.AddNative("keys", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromArray(NewArray(recv.AsTable().Keys())), nil
	})

	c.AddNative("values", 0, func(recv Value, args []Value) (Value, *Error) {
		tbl := recv.AsTable()
		vals := make([]Value, 0, tbl.Len())
		for _, k := range tbl.Keys() {
			v, _ := tbl.At(k)
			vals = append(vals, v)
		}
		return FromArray(NewArray(vals)), nil
	})
}

// ---------------------------------------------------------------------------
// Block natives
// ---------------------------------------------------------------------------

// value, value:…, whileTrue:, on:do: are work-frame handlers in
// dispatch.go; only reflection and forking live here.

func (vm *VM) registerBlockPrimitives() {
	c := vm.BlockClass

	c.AddNative("numArgs", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(recv.AsBlock().NumArgs())), nil
	})

	// fork answers the new process for the receiver block.
	c.AddNativeInterp("fork", 0, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		p := in.vm.Scheduler.Fork(recv.AsBlock())
		return FromInstance(p.Proxy), nil
	})
}
