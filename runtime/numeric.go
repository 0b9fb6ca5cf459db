package runtime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MaxRangeSize bounds the number of elements produced by `..` and range().
const MaxRangeSize = 100000

type numberKind int

const (
	numberInteger numberKind = iota
	numberFloat
)

type numberValue struct {
	kind       numberKind
	intValue   int64
	floatValue float64
}

func (n numberValue) isFloat() bool {
	return n.kind == numberFloat
}

func (n numberValue) isZero() bool {
	if n.kind == numberFloat {
		return n.floatValue == 0
	}
	return n.intValue == 0
}

func (n numberValue) value() Value {
	if n.kind == numberFloat {
		return Float(n.floatValue)
	}
	return Int(n.intValue)
}

// classifyNumber coerces v for arithmetic. Null counts as 0, booleans as
// 0/1 and numeric strings as their number.
func classifyNumber(v Value) (numberValue, bool) {
	switch v.kind {
	case KindNull:
		return numberValue{kind: numberInteger}, true
	case KindBool:
		if v.b {
			return numberValue{kind: numberInteger, intValue: 1, floatValue: 1}, true
		}
		return numberValue{kind: numberInteger}, true
	case KindNumber:
		if v.isFloat {
			return numberValue{kind: numberFloat, floatValue: v.f}, true
		}
		return numberValue{kind: numberInteger, intValue: v.i, floatValue: float64(v.i)}, true
	case KindString:
		return parseNumeric(v.s)
	}
	return numberValue{}, false
}

func parseNumeric(s string) (numberValue, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return numberValue{}, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return numberValue{kind: numberInteger, intValue: i, floatValue: float64(i)}, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return numberValue{kind: numberFloat, floatValue: f}, true
	}
	return numberValue{}, false
}

func operandError(op string, left, right Value) error {
	return fmt.Errorf("unsupported operand types for %s: %s and %s", op, left.typeName(), right.typeName())
}

// arithmetic implements + - * / // % and **.
func arithmetic(op string, left, right Value) (Value, error) {
	a, okA := classifyNumber(left)
	b, okB := classifyNumber(right)
	if !okA || !okB {
		return Value{}, operandError(op, left, right)
	}
	bothInt := !a.isFloat() && !b.isFloat()

	switch op {
	case "+":
		if bothInt {
			if sum, ok := addInt(a.intValue, b.intValue); ok {
				return Int(sum), nil
			}
		}
		return Float(a.floatValue + b.floatValue), nil
	case "-":
		if bothInt {
			if diff, ok := subInt(a.intValue, b.intValue); ok {
				return Int(diff), nil
			}
		}
		return Float(a.floatValue - b.floatValue), nil
	case "*":
		if bothInt {
			if prod, ok := mulInt(a.intValue, b.intValue); ok {
				return Int(prod), nil
			}
		}
		return Float(a.floatValue * b.floatValue), nil
	case "/":
		if b.isZero() {
			return Value{}, fmt.Errorf("division by zero")
		}
		if bothInt && a.intValue%b.intValue == 0 {
			return Int(a.intValue / b.intValue), nil
		}
		return Float(a.floatValue / b.floatValue), nil
	case "//":
		if b.isZero() {
			return Value{}, fmt.Errorf("division by zero")
		}
		if bothInt {
			q := a.intValue / b.intValue
			if (a.intValue%b.intValue != 0) && ((a.intValue < 0) != (b.intValue < 0)) {
				q--
			}
			return Int(q), nil
		}
		return Int(int64(math.Floor(a.floatValue / b.floatValue))), nil
	case "%":
		if b.isZero() {
			return Value{}, fmt.Errorf("modulo by zero")
		}
		if bothInt {
			return Int(a.intValue % b.intValue), nil
		}
		return Float(math.Mod(a.floatValue, b.floatValue)), nil
	case "**":
		if bothInt && b.intValue >= 0 {
			if r := math.Pow(a.floatValue, b.floatValue); math.Abs(r) < 1<<62 {
				return Int(intPow(a.intValue, b.intValue)), nil
			}
		}
		return Float(math.Pow(a.floatValue, b.floatValue)), nil
	}
	return Value{}, fmt.Errorf("unknown operator %q", op)
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

// negate implements unary minus.
func negate(v Value) (Value, error) {
	n, ok := classifyNumber(v)
	if !ok {
		return Value{}, fmt.Errorf("unsupported operand type for unary -: %s", v.typeName())
	}
	if n.isFloat() {
		return Float(-n.floatValue), nil
	}
	return Int(-n.intValue), nil
}

// concat implements `~`. Sequences and mappings have no text form suitable
// for concatenation.
func concat(left, right Value) (Value, error) {
	for _, v := range []Value{left, right} {
		if v.kind == KindSequence || v.kind == KindMapping {
			return Value{}, operandError("~", left, right)
		}
	}
	return String(left.String() + right.String()), nil
}

// looseEqual compares values the way `==` does: numbers and numeric strings
// compare numerically, null equals undefined, containers compare element-wise.
func looseEqual(a, b Value) bool {
	if a.kind == KindNull || b.kind == KindNull {
		return a.kind == b.kind
	}
	if a.kind == KindNumber || b.kind == KindNumber {
		x, okX := classifyNumber(a)
		y, okY := classifyNumber(b)
		if !okX || !okY || a.kind == KindBool || b.kind == KindBool {
			if a.kind == KindBool || b.kind == KindBool {
				return a.Truthy() == b.Truthy()
			}
			return false
		}
		return x.floatValue == y.floatValue && (x.isFloat() || y.isFloat() || x.intValue == y.intValue)
	}
	if a.kind != b.kind {
		if a.kind == KindBool || b.kind == KindBool {
			return a.Truthy() == b.Truthy()
		}
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindSequence:
		if len(a.seq) != len(b.seq) {
			return false
		}
		for i := range a.seq {
			if !looseEqual(a.seq[i], b.seq[i]) {
				return false
			}
		}
		return true
	case KindMapping:
		if a.m.Len() != b.m.Len() {
			return false
		}
		equal := true
		a.m.Each(func(k string, v Value) bool {
			other, ok := b.m.Get(k)
			equal = ok && looseEqual(v, other)
			return equal
		})
		return equal
	case KindOpaque:
		return a.opaque == b.opaque
	}
	return false
}

// strictEqual implements the `same as` test: same kind and same payload.
func strictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindNumber && a.isFloat != b.isFloat {
		return false
	}
	return looseEqual(a, b)
}

// compare orders two values, returning -1, 0 or 1.
func compare(op string, a, b Value) (int, error) {
	if a.kind == KindString && b.kind == KindString {
		x, okX := parseNumeric(a.s)
		y, okY := parseNumeric(b.s)
		if !okX || !okY {
			return strings.Compare(a.s, b.s), nil
		}
		return compareNumbers(x, y), nil
	}
	scalar := func(v Value) bool {
		return v.kind == KindNull || v.kind == KindBool || v.kind == KindNumber || v.kind == KindString
	}
	if scalar(a) && scalar(b) {
		x, okX := classifyNumber(a)
		y, okY := classifyNumber(b)
		if okX && okY {
			return compareNumbers(x, y), nil
		}
	}
	return 0, fmt.Errorf("cannot compare %s %s %s", a.typeName(), op, b.typeName())
}

func compareNumbers(x, y numberValue) int {
	if !x.isFloat() && !y.isFloat() {
		switch {
		case x.intValue < y.intValue:
			return -1
		case x.intValue > y.intValue:
			return 1
		}
		return 0
	}
	switch {
	case x.floatValue < y.floatValue:
		return -1
	case x.floatValue > y.floatValue:
		return 1
	}
	return 0
}

// contains implements `in`.
func contains(needle, haystack Value) (bool, error) {
	switch haystack.kind {
	case KindNull:
		return false, nil
	case KindSequence:
		for _, item := range haystack.seq {
			if looseEqual(needle, item) {
				return true, nil
			}
		}
		return false, nil
	case KindMapping:
		if needle.kind == KindSequence || needle.kind == KindMapping {
			return false, nil
		}
		_, ok := haystack.m.Get(needle.String())
		return ok, nil
	case KindString:
		if needle.kind == KindSequence || needle.kind == KindMapping {
			return false, fmt.Errorf("cannot search for a %s in a string", needle.typeName())
		}
		return strings.Contains(haystack.s, needle.String()), nil
	}
	return false, fmt.Errorf("cannot search in %s", haystack.typeName())
}

// makeRange builds the inclusive sequence start..end. Single-character
// strings produce character ranges.
func makeRange(start, end Value, step int64) (Value, error) {
	if step == 0 {
		return Value{}, fmt.Errorf("range step cannot be zero")
	}
	if step == math.MinInt64 {
		return Value{}, fmt.Errorf("range step %d is out of bounds", step)
	}
	if step < 0 {
		step = -step
	}
	if start.kind == KindString && end.kind == KindString &&
		len([]rune(start.s)) == 1 && len([]rune(end.s)) == 1 {
		if _, ok := parseNumeric(start.s); !ok {
			from, to := int64([]rune(start.s)[0]), int64([]rune(end.s)[0])
			ints, err := intRange(from, to, step)
			if err != nil {
				return Value{}, err
			}
			items := make([]Value, len(ints))
			for i, r := range ints {
				items[i] = String(string(rune(r)))
			}
			return Sequence(items...), nil
		}
	}

	a, okA := classifyNumber(start)
	b, okB := classifyNumber(end)
	if !okA || !okB {
		return Value{}, operandError("..", start, end)
	}
	from, errA := rangeBound(a)
	to, errB := rangeBound(b)
	if errA != nil {
		return Value{}, errA
	}
	if errB != nil {
		return Value{}, errB
	}
	ints, err := intRange(from, to, step)
	if err != nil {
		return Value{}, err
	}
	items := make([]Value, len(ints))
	for i, n := range ints {
		items[i] = Int(n)
	}
	return Sequence(items...), nil
}

func rangeBound(n numberValue) (int64, error) {
	if !n.isFloat() {
		return n.intValue, nil
	}
	f := math.Floor(n.floatValue)
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("range bound %v is out of bounds", n.floatValue)
	}
	return int64(f), nil
}

// intRange counts in uint64 so spans wider than MaxInt64 cannot wrap.
// step must be positive.
func intRange(from, to, step int64) ([]int64, error) {
	lo, hi := from, to
	if lo > hi {
		lo, hi = hi, lo
	}
	count := (uint64(hi)-uint64(lo))/uint64(step) + 1
	if count > MaxRangeSize {
		return nil, fmt.Errorf("range of %d elements exceeds the limit of %d", count, MaxRangeSize)
	}
	out := make([]int64, count)
	for i := range out {
		if from <= to {
			out[i] = from + int64(i)*step
		} else {
			out[i] = from - int64(i)*step
		}
	}
	return out, nil
}

// addInt, subInt and mulInt report false when the result overflows int64.
func addInt(a, b int64) (int64, bool) {
	s := a + b
	return s, (a^s)&(b^s) >= 0
}

func subInt(a, b int64) (int64, bool) {
	d := a - b
	return d, (a^b)&(a^d) >= 0
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) || p/b != a {
		return p, false
	}
	return p, true
}

// compilePattern accepts PCRE style `/pattern/flags` as well as bare patterns.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if len(pattern) >= 2 {
		delim := pattern[0]
		if !isAlnum(delim) && delim != '\\' && delim != ' ' {
			if end := strings.LastIndexByte(pattern, delim); end > 0 {
				flags := pattern[end+1:]
				body := pattern[1:end]
				var prefix string
				for _, f := range flags {
					switch f {
					case 'i', 'm', 's':
						prefix += string(f)
					case 'x', 'u':
					default:
						return nil, fmt.Errorf("unsupported regular expression flag %q", f)
					}
				}
				if prefix != "" {
					body = "(?" + prefix + ")" + body
				}
				return regexp.Compile(body)
			}
		}
	}
	return regexp.Compile(pattern)
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
