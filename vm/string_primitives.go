package vm

import (
	"strings"
)

// ---------------------------------------------------------------------------
// String and Symbol natives
// ---------------------------------------------------------------------------

func (vm *VM) registerStringPrimitives() {
	c := vm.StringClass

	// , concatenates; a non-string argument is rendered first.
	c.AddNative(",", 1, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.Str() + args[0].String()), nil
	})

	c.AddNative("size", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(len(recv.Str()))), nil
	})

	c.AddNative("isEmpty", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(len(recv.Str()) == 0), nil
	})

	c.AddNative("<", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsString() && !args[0].IsSymbol() {
			return Nil, Errorf(ErrValue, "< requires a String, got %s", args[0].Kind())
		}
		return FromBool(recv.Str() < args[0].Str()), nil
	})

	c.AddNative(">", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsString() && !args[0].IsSymbol() {
			return Nil, Errorf(ErrValue, "> requires a String, got %s", args[0].Kind())
		}
		return FromBool(recv.Str() > args[0].Str()), nil
	})

	// at: answers the one-character substring at a zero-based index.
	c.AddNative("at:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "at: requires an Int index")
		}
		s := recv.Str()
		i := args[0].Int()
		if i < 0 || i >= int64(len(s)) {
			return Nil, Errorf(ErrValue, "string index %d out of bounds (size %d)", i, len(s))
		}
		return FromString(s[i : i+1]), nil
	})

	c.AddNative("includesSubstring:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsString() && !args[0].IsSymbol() {
			return Nil, Errorf(ErrValue, "includesSubstring: requires a String")
		}
		return FromBool(strings.Contains(recv.Str(), args[0].Str())), nil
	})

	c.AddNative("startsWith:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsString() && !args[0].IsSymbol() {
			return Nil, Errorf(ErrValue, "startsWith: requires a String")
		}
		return FromBool(strings.HasPrefix(recv.Str(), args[0].Str())), nil
	})

	c.AddNative("asUppercase", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(strings.ToUpper(recv.Str())), nil
	})

	c.AddNative("asLowercase", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(strings.ToLower(recv.Str())), nil
	})

	c.AddNative("asSymbol", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromSymbol(recv.Str()), nil
	})

	c.AddNative("asString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.Str()), nil
	})

	c.AddNative("reversed", 0, func(recv Value, args []Value) (Value, *Error) {
		s := []byte(recv.Str())
		for l, r := 0, len(s)-1; l < r; l, r = l+1, r-1 {
			s[l], s[r] = s[r], s[l]
		}
		return FromString(string(s)), nil
	})

	// Symbol inherits the String behavior; only the conversions differ.
	sym := vm.SymbolClass
	sym.AddNative("asString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.Str()), nil
	})
	sym.AddNative("asSymbol", 0, func(recv Value, args []Value) (Value, *Error) {
		return recv, nil
	})
}
