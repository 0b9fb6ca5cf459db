package runtime

import "fmt"

// DefaultTests returns a new registry holding the built-in tests.
func DefaultTests() *TestRegistry {
	r := NewTestRegistry()
	registerBuiltinTests(r)
	return r
}

func registerBuiltinTests(r *TestRegistry) {
	add := func(name string, arity Arity, fn TestFunc) {
		if err := r.Register(name, arity, fn); err != nil {
			panic(err)
		}
	}
	add("defined", Exactly(0), testDefined)
	add("null", Exactly(0), testNull)
	add("none", Exactly(0), testNull)
	add("empty", Exactly(0), testEmpty)
	add("even", Exactly(0), testEven)
	add("odd", Exactly(0), testOdd)
	add("iterable", Exactly(0), testIterable)
	add("divisible by", Exactly(1), testDivisibleBy)
	add("same as", Exactly(1), testSameAs)
}

// lenientTests may be applied to undefined variables in strict mode.
var lenientTests = map[string]bool{"defined": true, "null": true, "none": true}

func testDefined(value Value, _ []Value) (bool, error) {
	return value.IsDefined(), nil
}

func testNull(value Value, _ []Value) (bool, error) {
	return value.IsNull(), nil
}

func testEmpty(value Value, _ []Value) (bool, error) {
	return isEmpty(value), nil
}

func integerOf(test string, value Value) (int64, error) {
	n, ok := classifyNumber(value)
	if !ok || value.Kind() != KindNumber && value.Kind() != KindString {
		return 0, fmt.Errorf("%s test expects a number, got %s", test, value.typeName())
	}
	if n.isFloat() {
		return int64(n.floatValue), nil
	}
	return n.intValue, nil
}

func testEven(value Value, _ []Value) (bool, error) {
	n, err := integerOf("even", value)
	return err == nil && n%2 == 0, err
}

func testOdd(value Value, _ []Value) (bool, error) {
	n, err := integerOf("odd", value)
	return err == nil && n%2 != 0, err
}

func testIterable(value Value, _ []Value) (bool, error) {
	return value.Kind() == KindSequence || value.Kind() == KindMapping, nil
}

func testDivisibleBy(value Value, args []Value) (bool, error) {
	r, err := arithmetic("%", value, args[0])
	if err != nil {
		return false, err
	}
	return !r.Truthy(), nil
}

func testSameAs(value Value, args []Value) (bool, error) {
	return strictEqual(value, args[0]), nil
}
