package runtime

import (
	"strings"
	"testing"
)

func identity(v Value, _ []Value) (Value, error) { return v, nil }

func TestRegisterValidation(t *testing.T) {
	r := NewFilterRegistry()

	tests := []struct {
		name   string
		arity  Arity
		fn     FilterFunc
		errMsg string
	}{
		{"9lives", Exactly(0), identity, "invalid filter name"},
		{"", Exactly(0), identity, "invalid filter name"},
		{"with space", Exactly(0), identity, "invalid filter name"},
		{"nofn", Exactly(0), nil, "has no implementation"},
		{"neg", Arity{Min: -1, Max: 0}, identity, "negative"},
		{"inverted", Between(2, 1), identity, "below minimum"},
	}
	for _, tt := range tests {
		err := r.Register(tt.name, tt.arity, tt.fn)
		if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
			t.Errorf("%q: expected error containing %q, got %v", tt.name, tt.errMsg, err)
		}
	}

	if err := r.Register("ok", Exactly(0), identity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("ok", Exactly(1), identity); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := r.Replace("ok", Exactly(1), identity); err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	e, ok := r.lookup("ok")
	if !ok || e.arity != Exactly(1) {
		t.Fatalf("expected replaced arity, got %+v", e.arity)
	}
}

func TestArity(t *testing.T) {
	tests := []struct {
		arity    Arity
		n        int
		accepts  bool
		describe string
	}{
		{Exactly(1), 1, true, "exactly 1"},
		{Exactly(1), 2, false, "exactly 1"},
		{Between(0, 2), 2, true, "0 to 2"},
		{Between(0, 2), 3, false, "0 to 2"},
		{AtLeast(1), 9, true, "at least 1"},
		{AtLeast(1), 0, false, "at least 1"},
	}
	for _, tt := range tests {
		if got := tt.arity.Accepts(tt.n); got != tt.accepts {
			t.Errorf("%s accepts %d: expected %v", tt.arity, tt.n, tt.accepts)
		}
		if got := tt.arity.String(); got != tt.describe {
			t.Errorf("expected %q, got %q", tt.describe, got)
		}
	}
}

func TestRegistryClone(t *testing.T) {
	base := DefaultFunctions()
	clone := base.Clone()
	if err := clone.Register("extra", Exactly(0), func([]Value) (Value, error) { return Null(), nil }); err != nil {
		t.Fatalf("register: %v", err)
	}
	if base.Has("extra") {
		t.Fatal("clone shares entries with its source")
	}
	if !clone.Has("range") {
		t.Fatal("clone lost built-ins")
	}
}

func TestTwoWordTests(t *testing.T) {
	r := DefaultTests()
	for _, name := range []string{"divisible by", "same as", "defined", "empty"} {
		if !r.Has(name) {
			t.Errorf("expected test %q", name)
		}
	}
	if testKey("divisible by") != "divisible_by" {
		t.Fatalf("unexpected key %q", testKey("divisible by"))
	}
	if err := r.Register("starts with x", Exactly(0), func(Value, []Value) (bool, error) { return true, nil }); err != nil {
		t.Fatalf("three-word test: %v", err)
	}
}

func TestDefaultRegistriesAreIndependent(t *testing.T) {
	a := NewEnvironment()
	b := NewEnvironment()
	if err := a.AddFilter("upper", Exactly(0), identity); err != nil {
		t.Fatalf("override: %v", err)
	}
	out, err := b.RenderString("t", `{{ "x"|upper }}`, nil)
	if err != nil || out != "X" {
		t.Fatalf("override leaked between environments: %q, %v", out, err)
	}
}
