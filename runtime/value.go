package runtime

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
	KindOpaque
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindNumber:   "number",
	KindString:   "string",
	KindSequence: "sequence",
	KindMapping:  "mapping",
	KindOpaque:   "opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Value is the runtime value every expression produces and consumes. The
// zero Value is Null. Values are immutable; Sequence and Mapping contents are
// shared between copies and must not be changed after construction.
type Value struct {
	kind      Kind
	undefined bool
	b         bool
	isFloat   bool
	i         int64
	f         float64
	s         string
	seq       []Value
	m         *Mapping
	opaque    interface{}
}

// Attributer can be implemented by opaque host objects to expose attributes
// to member access (`obj.name`).
type Attributer interface {
	Attr(name string) (Value, bool)
}

func Null() Value                { return Value{} }
func Undefined() Value           { return Value{undefined: true} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindNumber, i: i, f: float64(i)} }
func Float(f float64) Value      { return Value{kind: KindNumber, isFloat: true, f: f} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func Opaque(v interface{}) Value { return Value{kind: KindOpaque, opaque: v} }

// Sequence builds a sequence value from items.
func Sequence(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindSequence, seq: items}
}

// MappingValue wraps m. A nil mapping is treated as empty.
func MappingValue(m *Mapping) Value {
	if m == nil {
		m = NewMapping()
	}
	return Value{kind: KindMapping, m: m}
}

func (v Value) Kind() Kind { return v.kind }

// IsDefined is false only for the sentinel returned by failed lookups.
func (v Value) IsDefined() bool { return !v.undefined }

// IsNull reports whether v is Null or undefined.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) IsFloat() bool { return v.kind == KindNumber && v.isFloat }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Int returns the number as an integer, truncating floats.
func (v Value) Int() int64 {
	if v.isFloat {
		return int64(v.f)
	}
	return v.i
}

// Float returns the number as a float.
func (v Value) Float() float64 { return v.f }

// Str returns the string payload. Use String for the text form of any kind.
func (v Value) Str() string { return v.s }

// Items returns the sequence elements; nil for other kinds.
func (v Value) Items() []Value { return v.seq }

// Mapping returns the mapping payload; nil for other kinds.
func (v Value) Mapping() *Mapping { return v.m }

// Interface returns the opaque payload; nil for other kinds.
func (v Value) Interface() interface{} { return v.opaque }

// Truthy implements boolean coercion: Null, false, 0, "", empty Sequence and
// empty Mapping are false; everything else is true.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		if v.isFloat {
			return v.f != 0
		}
		return v.i != 0
	case KindString:
		return v.s != ""
	case KindSequence:
		return len(v.seq) > 0
	case KindMapping:
		return v.m.Len() > 0
	}
	return true
}

// String returns the canonical text form used when printing:
//
//	Null           ""
//	Bool           "1" for true, "" for false
//	Number         integers in decimal; floats rounded to 6 places, trailing zeros dropped
//	Sequence       elements joined by ", "
//	Mapping        "{key: value, ...}" in insertion order
//	Opaque         time.Time as RFC 3339, fmt.Stringer, else fmt.Sprint
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "1"
		}
		return ""
	case KindNumber:
		if v.isFloat {
			return formatFloat(v.f)
		}
		return strconv.FormatInt(v.i, 10)
	case KindString:
		return v.s
	case KindSequence:
		parts := make([]string, len(v.seq))
		for i, item := range v.seq {
			parts[i] = item.String()
		}
		return strings.Join(parts, ", ")
	case KindMapping:
		var b strings.Builder
		b.WriteByte('{')
		for i, key := range v.m.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(v.m.values[key].String())
		}
		b.WriteByte('}')
		return b.String()
	case KindOpaque:
		switch o := v.opaque.(type) {
		case time.Time:
			return o.Format(time.RFC3339)
		case fmt.Stringer:
			return o.String()
		}
		return fmt.Sprint(v.opaque)
	}
	return ""
}

// Len returns the length of strings (in runes), sequences and mappings.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case KindString:
		return utf8.RuneCountInString(v.s), true
	case KindSequence:
		return len(v.seq), true
	case KindMapping:
		return v.m.Len(), true
	case KindNull:
		return 0, true
	}
	return 0, false
}

// typeName describes v for error messages.
func (v Value) typeName() string {
	if v.undefined {
		return "undefined"
	}
	if v.kind == KindOpaque {
		return fmt.Sprintf("opaque %T", v.opaque)
	}
	return v.kind.String()
}

// ToGo converts v into plain Go values: nil, bool, int64, float64, string,
// []interface{}, map[string]interface{} or the opaque payload.
func (v Value) ToGo() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if v.isFloat {
			return v.f
		}
		return v.i
	case KindString:
		return v.s
	case KindSequence:
		out := make([]interface{}, len(v.seq))
		for i, item := range v.seq {
			out[i] = item.ToGo()
		}
		return out
	case KindMapping:
		out := make(map[string]interface{}, v.m.Len())
		for _, key := range v.m.keys {
			out[key] = v.m.values[key].ToGo()
		}
		return out
	case KindOpaque:
		return v.opaque
	}
	return nil
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if math.Abs(f) < 1e15 {
		f = math.Round(f*1e6) / 1e6
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

// Mapping is a string-keyed map that remembers insertion order.
type Mapping struct {
	keys   []string
	values map[string]Value
}

func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]Value)}
}

// Set stores value under key. Re-setting an existing key replaces the value
// and keeps the key's original position.
func (m *Mapping) Set(key string, value Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Mapping) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Each calls fn for every entry in insertion order until fn returns false.
func (m *Mapping) Each(fn func(key string, value Value) bool) {
	if m == nil {
		return
	}
	for _, key := range m.keys {
		if !fn(key, m.values[key]) {
			return
		}
	}
}

// Clone returns a shallow copy that can be modified independently.
func (m *Mapping) Clone() *Mapping {
	out := &Mapping{keys: m.Keys(), values: make(map[string]Value, m.Len())}
	m.Each(func(k string, v Value) bool {
		out.values[k] = v
		return true
	})
	return out
}

// FromGo converts host data into a Value. Go maps have no order, so their
// keys are sorted to keep output deterministic. Types without a natural
// mapping become Opaque.
func FromGo(in interface{}) Value {
	switch v := in.(type) {
	case nil:
		return Null()
	case Value:
		return v
	case *Mapping:
		return MappingValue(v)
	case bool:
		return Bool(v)
	case int:
		return Int(int64(v))
	case int8:
		return Int(int64(v))
	case int16:
		return Int(int64(v))
	case int32:
		return Int(int64(v))
	case int64:
		return Int(v)
	case uint:
		return fromUnsigned(uint64(v))
	case uint8:
		return Int(int64(v))
	case uint16:
		return Int(int64(v))
	case uint32:
		return Int(int64(v))
	case uint64:
		return fromUnsigned(v)
	case float32:
		return Float(float64(v))
	case float64:
		return Float(v)
	case string:
		return String(v)
	case []byte:
		return String(string(v))
	case []string:
		items := make([]Value, len(v))
		for i, s := range v {
			items[i] = String(s)
		}
		return Sequence(items...)
	case []interface{}:
		items := make([]Value, len(v))
		for i, item := range v {
			items[i] = FromGo(item)
		}
		return Sequence(items...)
	case map[string]interface{}:
		return MappingValue(MappingFromGo(v))
	case map[string]string:
		m := NewMapping()
		for _, k := range sortedKeys(v) {
			m.Set(k, String(v[k]))
		}
		return MappingValue(m)
	case time.Time:
		return Opaque(v)
	}
	return fromReflect(in)
}

func fromUnsigned(u uint64) Value {
	if u <= math.MaxInt64 {
		return Int(int64(u))
	}
	return Float(float64(u))
}

// MappingFromGo converts a render context. Keys are inserted in sorted order.
func MappingFromGo(in map[string]interface{}) *Mapping {
	m := NewMapping()
	for _, k := range sortedKeys(in) {
		m.Set(k, FromGo(in[k]))
	}
	return m
}

func sortedKeys[V any](in map[string]V) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fromReflect handles typed slices and maps that the type switch misses.
func fromReflect(in interface{}) Value {
	rv := reflect.ValueOf(in)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			items[i] = FromGo(rv.Index(i).Interface())
		}
		return Sequence(items...)
	case reflect.Map:
		keys := rv.MapKeys()
		pairs := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			pairs[fmt.Sprint(k.Interface())] = rv.MapIndex(k).Interface()
		}
		return MappingValue(MappingFromGo(pairs))
	case reflect.Pointer:
		if rv.IsNil() {
			return Null()
		}
	}
	return Opaque(in)
}
