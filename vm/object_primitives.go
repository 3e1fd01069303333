package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Object natives
// ---------------------------------------------------------------------------

func (vm *VM) registerObjectPrimitives() {
	c := vm.ObjectClass

	// = : default equality; structural for primitives, identity for
	// heap values. Classes override = to change it.
	c.AddNative("=", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.Equals(args[0])), nil
	})

	c.AddNative("~=", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(!recv.Equals(args[0])), nil
	})

	// == : identity, never overridable by =.
	c.AddNative("==", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.Identical(args[0])), nil
	})

	c.AddNative("~~", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(!recv.Identical(args[0])), nil
	})

	c.AddNative("yourself", 0, func(recv Value, args []Value) (Value, *Error) {
		return recv, nil
	})

	c.AddNative("printString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.String()), nil
	})

	c.AddNative("class", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromClass(vm.ClassOf(recv)), nil
	})

	c.AddNative("isKindOf:", 1, func(recv Value, args []Value) (Value, *Error) {
		target := args[0].AsClass()
		if target == nil {
			return Nil, Errorf(ErrValue, "isKindOf: requires a class argument")
		}
		return FromBool(vm.ClassOf(recv).IsKindOf(target)), nil
	})

	c.AddNativeInterp("respondsTo:", 1, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "respondsTo: requires a selector symbol")
		}
		return FromBool(in.lookup(recv, args[0].Str()) != nil), nil
	})

	c.AddNativeInterp("perform:", 1, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "perform: requires a selector symbol")
		}
		return in.Reenter(recv, args[0].Str(), nil)
	})

	c.AddNativeInterp("perform:withArguments:", 2, func(in *Interp, recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "perform:withArguments: requires a selector symbol")
		}
		arr := args[1].AsArray()
		if arr == nil {
			return Nil, Errorf(ErrValue, "perform:withArguments: requires an argument Array")
		}
		return in.Reenter(recv, args[0].Str(), arr.Elems)
	})

	// error: raises a signaled Error whose message is the argument; the
	// receiver is not recorded in it.
	c.AddNative("error:", 1, func(recv Value, args []Value) (Value, *Error) {
		return Nil, &Error{Kind: ErrSignaled, Message: args[0].String(), Class: vm.ErrorClass}
	})

	c.AddNative("->", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromArray(NewArray([]Value{recv, args[0]})), nil
	})
}

// registerNamedNatives populates the <primitive: 'name'> registry.
func (vm *VM) registerNamedNatives() {
	vm.RegisterNative("printNl", NewNativeMethod("printNl", 0,
		func(recv Value, args []Value) (Value, *Error) {
			fmt.Println(recv.String())
			return recv, nil
		}))

	vm.RegisterNative("objectClass", NewNativeMethod("objectClass", 0,
		func(recv Value, args []Value) (Value, *Error) {
			return FromClass(vm.ClassOf(recv)), nil
		}))

	vm.RegisterNative("identical", NewNativeMethod("identical", 1,
		func(recv Value, args []Value) (Value, *Error) {
			return FromBool(recv.Identical(args[0])), nil
		}))
}
