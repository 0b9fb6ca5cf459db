package runtime

import (
	"testing"
	"time"
)

func TestValueString(t *testing.T) {
	m := NewMapping()
	m.Set("b", Int(1))
	m.Set("a", Sequence(String("x"), Null()))

	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"null", Null(), ""},
		{"undefined", Undefined(), ""},
		{"true", Bool(true), "1"},
		{"false", Bool(false), ""},
		{"int", Int(-42), "-42"},
		{"float", Float(2.5), "2.5"},
		{"whole float", Float(3), "3"},
		{"rounded float", Float(2.0000004), "2"},
		{"negative zero", Float(-0.0000001), "0"},
		{"string", String("héllo"), "héllo"},
		{"sequence", Sequence(Int(1), String("a"), Bool(true)), "1, a, 1"},
		{"mapping", MappingValue(m), "{b: 1, a: x, }"},
		{"time", Opaque(time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC)), "2021-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		if got := tt.value.String(); got != tt.expected {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.expected, got)
		}
	}
}

func TestValueTruthy(t *testing.T) {
	falsy := []Value{Null(), Undefined(), Bool(false), Int(0), Float(0), String(""), Sequence(), MappingValue(NewMapping())}
	for _, v := range falsy {
		if v.Truthy() {
			t.Errorf("expected %s %q to be falsy", v.typeName(), v.String())
		}
	}
	truthy := []Value{Bool(true), Int(-1), Float(0.1), String("0"), String(" "), Sequence(Null()), Opaque(struct{}{})}
	for _, v := range truthy {
		if !v.Truthy() {
			t.Errorf("expected %s %q to be truthy", v.typeName(), v.String())
		}
	}
}

func TestMappingKeepsInsertionOrder(t *testing.T) {
	m := NewMapping()
	m.Set("z", Int(1))
	m.Set("a", Int(2))
	m.Set("z", Int(3))

	keys := m.Keys()
	if len(keys) != 2 || keys[0] != "z" || keys[1] != "a" {
		t.Fatalf("unexpected key order %v", keys)
	}
	if v, _ := m.Get("z"); v.Int() != 3 {
		t.Fatalf("expected overwritten value 3, got %s", v)
	}

	clone := m.Clone()
	clone.Set("new", Null())
	if m.Len() != 2 || clone.Len() != 3 {
		t.Fatalf("clone is not independent: %d/%d", m.Len(), clone.Len())
	}
}

type point struct{ X, Y int }

func TestFromGo(t *testing.T) {
	v := FromGo(map[string]interface{}{"c": 1, "a": []int{1, 2}, "b": map[int]string{2: "two"}})
	if v.Kind() != KindMapping {
		t.Fatalf("expected mapping, got %s", v.Kind())
	}
	if got := v.String(); got != "{a: 1, 2, b: {2: two}, c: 1}" {
		t.Fatalf("unexpected conversion %q", got)
	}

	if FromGo(uint8(7)).Int() != 7 {
		t.Fatal("expected uint8 to convert to an integer")
	}
	if !FromGo(float32(1.5)).IsFloat() {
		t.Fatal("expected float32 to stay a float")
	}
	if !FromGo((*point)(nil)).IsNull() {
		t.Fatal("expected nil pointer to convert to null")
	}
	if k := FromGo(point{1, 2}).Kind(); k != KindOpaque {
		t.Fatalf("expected struct to be opaque, got %s", k)
	}

	goValue := FromGo(map[string]interface{}{"n": 1, "s": []interface{}{"x", nil}}).ToGo()
	out, ok := goValue.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map, got %T", goValue)
	}
	if out["n"] != int64(1) {
		t.Fatalf("expected int64 1, got %#v", out["n"])
	}
	if s, ok := out["s"].([]interface{}); !ok || len(s) != 2 || s[1] != nil {
		t.Fatalf("unexpected sequence %#v", out["s"])
	}
}

func TestValueLen(t *testing.T) {
	if n, ok := String("héllo").Len(); !ok || n != 5 {
		t.Fatalf("expected 5 runes, got %d", n)
	}
	if _, ok := Int(3).Len(); ok {
		t.Fatal("numbers have no length")
	}
}
