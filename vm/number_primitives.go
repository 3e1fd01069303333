package vm

import (
	"math"
)

// ---------------------------------------------------------------------------
// Integer and Float natives
// ---------------------------------------------------------------------------

// Arithmetic between Int and Float promotes to Float. Division by zero
// is a value error; // and \ require Int operands.

func (vm *VM) registerNumberPrimitives() {
	vm.registerIntegerPrimitives()
	vm.registerFloatPrimitives()
}

func numericArg(selector string, v Value) *Error {
	if !v.IsNumber() {
		return Errorf(ErrValue, "%s requires a number, got %s", selector, v.Kind())
	}
	return nil
}

func (vm *VM) registerIntegerPrimitives() {
	c := vm.IntegerClass

	c.AddNative("+", 1, func(recv Value, args []Value) (Value, *Error) {
		if err := numericArg("+", args[0]); err != nil {
			return Nil, err
		}
		if args[0].IsInt() {
			return FromInt(recv.Int() + args[0].Int()), nil
		}
		return FromFloat(recv.AsFloat() + args[0].Float()), nil
	})

	c.AddNative("-", 1, func(recv Value, args []Value) (Value, *Error) {
		if err := numericArg("-", args[0]); err != nil {
			return Nil, err
		}
		if args[0].IsInt() {
			return FromInt(recv.Int() - args[0].Int()), nil
		}
		return FromFloat(recv.AsFloat() - args[0].Float()), nil
	})

	c.AddNative("*", 1, func(recv Value, args []Value) (Value, *Error) {
		if err := numericArg("*", args[0]); err != nil {
			return Nil, err
		}
		if args[0].IsInt() {
			return FromInt(recv.Int() * args[0].Int()), nil
		}
		return FromFloat(recv.AsFloat() * args[0].Float()), nil
	})

	// / answers an Int when the division is exact, a Float otherwise.
	c.AddNative("/", 1, func(recv Value, args []Value) (Value, *Error) {
		if err := numericArg("/", args[0]); err != nil {
			return Nil, err
		}
		if args[0].IsInt() {
			d := args[0].Int()
			if d == 0 {
				return Nil, Errorf(ErrValue, "division by zero")
			}
			n := recv.Int()
			if n%d == 0 {
				return FromInt(n / d), nil
			}
			return FromFloat(float64(n) / float64(d)), nil
		}
		if args[0].Float() == 0 {
			return Nil, Errorf(ErrValue, "division by zero")
		}
		return FromFloat(recv.AsFloat() / args[0].Float()), nil
	})

	// // is floored integer division.
	c.AddNative("//", 1, func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, "// requires an Int operand, got %s", args[0].Kind())
		}
		d := args[0].Int()
		if d == 0 {
			return Nil, Errorf(ErrValue, "division by zero")
		}
		n := recv.Int()
		q := n / d
		if (n%d != 0) && ((n < 0) != (d < 0)) {
			q--
		}
		return FromInt(q), nil
	})

	// \ (and its doubled spelling) is the floored modulo.
	mod := func(recv Value, args []Value) (Value, *Error) {
		if !args[0].IsInt() {
			return Nil, Errorf(ErrValue, `\ requires an Int operand, got %s`, args[0].Kind())
		}
		d := args[0].Int()
		if d == 0 {
			return Nil, Errorf(ErrValue, "division by zero")
		}
		r := recv.Int() % d
		if r != 0 && ((r < 0) != (d < 0)) {
			r += d
		}
		return FromInt(r), nil
	}
	c.AddNative(`\`, 1, mod)
	c.AddNative(`\\`, 1, mod)

	cmp := func(selector string, intTest func(a, b int64) bool, floatTest func(a, b float64) bool) {
		c.AddNative(selector, 1, func(recv Value, args []Value) (Value, *Error) {
			if err := numericArg(selector, args[0]); err != nil {
				return Nil, err
			}
			if args[0].IsInt() {
				return FromBool(intTest(recv.Int(), args[0].Int())), nil
			}
			return FromBool(floatTest(recv.AsFloat(), args[0].Float())), nil
		})
	}
	cmp("<",
		func(a, b int64) bool { return a < b },
		func(a, b float64) bool { return a < b })
	cmp(">",
		func(a, b int64) bool { return a > b },
		func(a, b float64) bool { return a > b })
	cmp("<=",
		func(a, b int64) bool { return a <= b },
		func(a, b float64) bool { return a <= b })
	cmp(">=",
		func(a, b int64) bool { return a >= b },
		func(a, b float64) bool { return a >= b })

	c.AddNative("negated", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(-recv.Int()), nil
	})

	c.AddNative("abs", 0, func(recv Value, args []Value) (Value, *Error) {
		n := recv.Int()
		if n < 0 {
			n = -n
		}
		return FromInt(n), nil
	})

	c.AddNative("asFloat", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromFloat(float64(recv.Int())), nil
	})

	c.AddNative("asString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.String()), nil
	})

	c.AddNative("even", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.Int()%2 == 0), nil
	})

	c.AddNative("odd", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromBool(recv.Int()%2 != 0), nil
	})
}

func (vm *VM) registerFloatPrimitives() {
	c := vm.FloatClass

	binop := func(selector string, fn func(a, b float64) float64) {
		c.AddNative(selector, 1, func(recv Value, args []Value) (Value, *Error) {
			if err := numericArg(selector, args[0]); err != nil {
				return Nil, err
			}
			return FromFloat(fn(recv.Float(), args[0].AsFloat())), nil
		})
	}
	binop("+", func(a, b float64) float64 { return a + b })
	binop("-", func(a, b float64) float64 { return a - b })
	binop("*", func(a, b float64) float64 { return a * b })

	c.AddNative("/", 1, func(recv Value, args []Value) (Value, *Error) {
		if err := numericArg("/", args[0]); err != nil {
			return Nil, err
		}
		d := args[0].AsFloat()
		if d == 0 {
			return Nil, Errorf(ErrValue, "division by zero")
		}
		return FromFloat(recv.Float() / d), nil
	})

	fcmp := func(selector string, test func(a, b float64) bool) {
		c.AddNative(selector, 1, func(recv Value, args []Value) (Value, *Error) {
			if err := numericArg(selector, args[0]); err != nil {
				return Nil, err
			}
			return FromBool(test(recv.Float(), args[0].AsFloat())), nil
		})
	}
	fcmp("<", func(a, b float64) bool { return a < b })
	fcmp(">", func(a, b float64) bool { return a > b })
	fcmp("<=", func(a, b float64) bool { return a <= b })
	fcmp(">=", func(a, b float64) bool { return a >= b })

	c.AddNative("negated", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromFloat(-recv.Float()), nil
	})

	c.AddNative("abs", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromFloat(math.Abs(recv.Float())), nil
	})

	c.AddNative("floor", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(math.Floor(recv.Float()))), nil
	})

	c.AddNative("ceiling", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(math.Ceil(recv.Float()))), nil
	})

	c.AddNative("rounded", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(math.Round(recv.Float()))), nil
	})

	c.AddNative("truncated", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromInt(int64(math.Trunc(recv.Float()))), nil
	})

	c.AddNative("sqrt", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromFloat(math.Sqrt(recv.Float())), nil
	})

	c.AddNative("asString", 0, func(recv Value, args []Value) (Value, *Error) {
		return FromString(recv.String()), nil
	})
}
