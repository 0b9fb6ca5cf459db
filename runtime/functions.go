package runtime

import (
	"fmt"
	"time"
)

// DefaultFunctions returns a new registry holding the built-in functions.
func DefaultFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	registerBuiltinFunctions(r)
	return r
}

func registerBuiltinFunctions(r *FunctionRegistry) {
	add := func(name string, arity Arity, fn FunctionFunc) {
		if err := r.Register(name, arity, fn); err != nil {
			panic(err)
		}
	}
	add("range", Between(1, 3), fnRange)
	add("max", AtLeast(1), fnMax)
	add("min", AtLeast(1), fnMin)
	add("cycle", Exactly(2), fnCycle)
	add("date", Between(0, 1), fnDate)
}

// fnRange mirrors `..`: range(end) counts from 0, range(start, end[, step]).
func fnRange(args []Value) (Value, error) {
	switch len(args) {
	case 1:
		return makeRange(Int(0), args[0], 1)
	case 2:
		return makeRange(args[0], args[1], 1)
	}
	n, ok := classifyNumber(args[2])
	if !ok {
		return Value{}, fmt.Errorf("range step must be a number, got %s", args[2].typeName())
	}
	return makeRange(args[0], args[1], n.intValue)
}

// extremeArgs flattens a single sequence or mapping argument.
func extremeArgs(args []Value) []Value {
	if len(args) == 1 {
		if items := iterValues(args[0]); items != nil {
			return items
		}
	}
	return args
}

func pickExtreme(name string, args []Value, better func(int) bool) (Value, error) {
	items := extremeArgs(args)
	if len(items) == 0 {
		return Null(), nil
	}
	best := items[0]
	for _, item := range items[1:] {
		c, err := compare(name, item, best)
		if err != nil {
			return Value{}, err
		}
		if better(c) {
			best = item
		}
	}
	return best, nil
}

func fnMax(args []Value) (Value, error) {
	return pickExtreme("max", args, func(c int) bool { return c > 0 })
}

func fnMin(args []Value) (Value, error) {
	return pickExtreme("min", args, func(c int) bool { return c < 0 })
}

// fnCycle returns the element of a sequence at position modulo its length.
func fnCycle(args []Value) (Value, error) {
	items := iterValues(args[0])
	if len(items) == 0 {
		return args[0], nil
	}
	pos := args[1].Int() % int64(len(items))
	if pos < 0 {
		pos += int64(len(items))
	}
	return items[pos], nil
}

// fnDate converts its argument to a time value; without one it returns now.
func fnDate(args []Value) (Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return Opaque(time.Now()), nil
	}
	t, err := toTime(args[0])
	if err != nil {
		return Value{}, err
	}
	return Opaque(t), nil
}
