package vm

import (
	"encoding/hex"

	"github.com/chazu/loom/compiler"
	"github.com/chazu/loom/compiler/hash"
)

// ---------------------------------------------------------------------------
// Class-side natives (derive, new, method installation, reflection)
// ---------------------------------------------------------------------------

// These live in Object's class-side dictionary so every class inherits
// them through its merged class table.

func (vm *VM) registerClassPrimitives() {
	c := vm.ObjectClass

	c.AddClassNative("new", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		if cls == nil {
			return Nil, Errorf(ErrValue, "new requires a class receiver")
		}
		return FromInstance(NewInstance(cls)), nil
	})

	// derive answers an anonymous subclass; assigning it to a top-level
	// name christens and registers it.
	c.AddClassNative("derive", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		sub, err := cls.Derive("", nil)
		if err != nil {
			return Nil, err
		}
		return FromClass(sub), nil
	})

	// derive: takes the new slot names and generates a getter and a
	// keyword setter per slot, each as a direct slot access.
	c.AddClassNative("derive:", 1, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		slots, err := slotNamesFrom(args[0])
		if err != nil {
			return Nil, err
		}
		sub, err := cls.Derive("", slots)
		if err != nil {
			return Nil, err
		}
		for _, slot := range slots {
			addAccessors(sub, slot)
		}
		if err := sub.Rebuild(); err != nil {
			return Nil, err
		}
		return FromClass(sub), nil
	})

	c.AddClassNative("selector:put:", 2, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		return installSelector(cls, args[0], args[1], false)
	})

	c.AddClassNative("classSelector:put:", 2, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		return installSelector(cls, args[0], args[1], true)
	})

	c.AddClassNative("addParent:", 1, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		parent := args[0].AsClass()
		if parent == nil {
			return Nil, Errorf(ErrValue, "addParent: requires a class argument")
		}
		if err := cls.AddParent(parent); err != nil {
			return Nil, err
		}
		return recv, nil
	})

	c.AddClassNative("name", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		if cls.Name == "" {
			return FromString("an anonymous class"), nil
		}
		return FromString(cls.Name), nil
	})

	c.AddClassNative("parents", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		out := make([]Value, len(cls.Parents))
		for i, p := range cls.Parents {
			out[i] = FromClass(p)
		}
		return FromArray(NewArray(out)), nil
	})

	c.AddClassNative("subclasses", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		out := make([]Value, len(cls.Subclasses))
		for i, s := range cls.Subclasses {
			out[i] = FromClass(s)
		}
		return FromArray(NewArray(out)), nil
	})

	c.AddClassNative("slotNames", 0, func(recv Value, args []Value) (Value, *Error) {
		return symbolArray(recv.AsClass().SlotNames), nil
	})

	c.AddClassNative("allSlotNames", 0, func(recv Value, args []Value) (Value, *Error) {
		return symbolArray(recv.AsClass().AllSlotNames), nil
	})

	c.AddClassNative("selectors", 0, func(recv Value, args []Value) (Value, *Error) {
		cls := recv.AsClass()
		out := make([]Value, 0, len(cls.Methods))
		for sel := range cls.Methods {
			out = append(out, FromSymbol(sel))
		}
		return FromArray(NewArray(out)), nil
	})

	c.AddClassNative("includesSelector:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "includesSelector: requires a selector symbol")
		}
		_, ok := recv.AsClass().Methods[args[0].Str()]
		return FromBool(ok), nil
	})

	c.AddClassNative("tag:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "tag: requires a symbol")
		}
		cls := recv.AsClass()
		cls.Tags = append(cls.Tags, args[0].Str())
		return recv, nil
	})

	c.AddClassNative("tags", 0, func(recv Value, args []Value) (Value, *Error) {
		return symbolArray(recv.AsClass().Tags), nil
	})

	// methodFingerprint: answers the hex content hash of an installed
	// interpreted method's normalized body.
	c.AddClassNative("methodFingerprint:", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsSymbol() && !args[0].IsString() {
			return Nil, Errorf(ErrValue, "methodFingerprint: requires a selector symbol")
		}
		cls := recv.AsClass()
		entry, ok := cls.Methods[args[0].Str()]
		if !ok || entry.IsNative() {
			return Nil, Errorf(ErrValue, "%s has no interpreted method #%s", cls.Name, args[0].Str())
		}
		sum, err := hash.HashMethod(&compiler.MethodDef{
			Selector:   entry.Selector,
			Parameters: entry.Parameters,
			Temps:      entry.Temps,
			Statements: entry.Raw,
		})
		if err != nil {
			return Nil, Errorf(ErrValue, "fingerprint failed: %s", err.Error())
		}
		return FromString(hex.EncodeToString(sum[:])), nil
	})

	// Class instance-side: printing.
	cc := vm.ClassClass
	cc.AddNative("printString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.String()), nil
	})
}

// installSelector installs a block body under a selector.
func installSelector(cls *Class, selArg, bodyArg Value, classSide bool) (Value, *Error) {
	if cls == nil {
		return Nil, Errorf(ErrValue, "selector:put: requires a class receiver")
	}
	if !selArg.IsSymbol() && !selArg.IsString() {
		return Nil, Errorf(ErrValue, "selector:put: requires a selector symbol")
	}
	blk := bodyArg.AsBlock()
	if blk == nil {
		return Nil, Errorf(ErrValue, "selector:put: requires a block body")
	}
	entry := NewInterpretedMethod(selArg.Str(), blk.Parameters, blk.Temps, blk.Body)
	var err *Error
	if classSide {
		err = cls.AddClassMethod(selArg.Str(), entry)
	} else {
		err = cls.AddMethod(selArg.Str(), entry)
	}
	if err != nil {
		return Nil, err
	}
	return FromClass(cls), nil
}

// addAccessors installs the generated getter and setter for a slot.
// Both are ordinary interpreted entries whose bodies lower to direct
// slot accesses; a later explicit definition simply overwrites them.
func addAccessors(cls *Class, slot string) {
	getter := NewInterpretedMethod(slot, nil, nil, []compiler.Stmt{
		&compiler.Return{Value: &compiler.Ident{Name: slot}},
	})
	cls.Methods[slot] = getter

	setter := NewInterpretedMethod(slot+":", []string{"newValue"}, nil, []compiler.Stmt{
		&compiler.ExprStmt{Expr: &compiler.Assignment{Name: slot, Value: &compiler.Ident{Name: "newValue"}}},
	})
	cls.Methods[slot+":"] = setter
}

func slotNamesFrom(v Value) ([]string, *Error) {
	arr := v.AsArray()
	if arr == nil {
		return nil, Errorf(ErrValue, "derive: requires an Array of slot names")
	}
	out := make([]string, len(arr.Elems))
	for i, e := range arr.Elems {
		if !e.IsSymbol() && !e.IsString() {
			return nil, Errorf(ErrValue, "slot names must be symbols, got %s", e.Kind())
		}
		out[i] = e.Str()
	}
	return out, nil
}

func symbolArray(names []string) Value {
	out := make([]Value, len(names))
	for i, n := range names {
		out[i] = FromSymbol(n)
	}
	return FromArray(NewArray(out))
}
