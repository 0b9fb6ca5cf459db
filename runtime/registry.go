package runtime

import (
	"fmt"
	"sort"
	"sync"

	"github.com/deicod/gotwig/lexer"
)

// Variadic marks an Arity without an upper bound.
const Variadic = -1

// Arity is the accepted argument count of a filter, function or test. For
// filters and tests the piped value is not counted.
type Arity struct {
	Min int
	Max int
}

func Exactly(n int) Arity       { return Arity{Min: n, Max: n} }
func Between(min, max int) Arity { return Arity{Min: min, Max: max} }
func AtLeast(n int) Arity       { return Arity{Min: n, Max: Variadic} }

func (a Arity) validate() error {
	if a.Min < 0 {
		return fmt.Errorf("minimum arity %d is negative", a.Min)
	}
	if a.Max != Variadic && a.Max < a.Min {
		return fmt.Errorf("maximum arity %d is below minimum %d", a.Max, a.Min)
	}
	return nil
}

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max == Variadic || n <= a.Max)
}

func (a Arity) String() string {
	switch {
	case a.Max == Variadic:
		return fmt.Sprintf("at least %d", a.Min)
	case a.Min == a.Max:
		return fmt.Sprintf("exactly %d", a.Min)
	}
	return fmt.Sprintf("%d to %d", a.Min, a.Max)
}

// FilterFunc transforms the piped value using the filter's own arguments.
type FilterFunc func(value Value, args []Value) (Value, error)

// FunctionFunc implements a function callable as `name(args)`.
type FunctionFunc func(args []Value) (Value, error)

// TestFunc implements an `is name(args)` check.
type TestFunc func(value Value, args []Value) (bool, error)

type entry[F any] struct {
	arity Arity
	impl  F
}

// registry maps names to implementations. It is safe for concurrent use;
// lookups take a read lock only.
type registry[F any] struct {
	kind    string
	mu      sync.RWMutex
	entries map[string]entry[F]
}

func (r *registry[F]) init(kind string) {
	r.kind = kind
	r.entries = make(map[string]entry[F])
}

func (r *registry[F]) add(name string, arity Arity, impl F, isNil bool, replace bool) error {
	if m := lexer.NameRegex.FindString(name); m != name || name == "" {
		return fmt.Errorf("invalid %s name %q", r.kind, name)
	}
	if isNil {
		return fmt.Errorf("%s %q has no implementation", r.kind, name)
	}
	if err := arity.validate(); err != nil {
		return fmt.Errorf("%s %q: %w", r.kind, name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists && !replace {
		return fmt.Errorf("%s %q is already registered", r.kind, name)
	}
	r.entries[name] = entry[F]{arity: arity, impl: impl}
	return nil
}

func (r *registry[F]) lookup(name string) (entry[F], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e, ok
}

// Has reports whether name is registered.
func (r *registry[F]) Has(name string) bool {
	_, ok := r.lookup(name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *registry[F]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *registry[F]) copyInto(dst *registry[F]) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, e := range r.entries {
		dst.entries[name] = e
	}
}

// FilterRegistry holds the filters available to templates.
type FilterRegistry struct {
	registry[FilterFunc]
}

func NewFilterRegistry() *FilterRegistry {
	r := &FilterRegistry{}
	r.init("filter")
	return r
}

// Register adds a filter. It fails for invalid names, nil implementations,
// inconsistent arities and names that are already taken.
func (r *FilterRegistry) Register(name string, arity Arity, fn FilterFunc) error {
	return r.add(name, arity, fn, fn == nil, false)
}

// Replace adds or overrides a filter.
func (r *FilterRegistry) Replace(name string, arity Arity, fn FilterFunc) error {
	return r.add(name, arity, fn, fn == nil, true)
}

// Clone returns an independent copy.
func (r *FilterRegistry) Clone() *FilterRegistry {
	out := NewFilterRegistry()
	r.copyInto(&out.registry)
	return out
}

// FunctionRegistry holds the functions available to templates.
type FunctionRegistry struct {
	registry[FunctionFunc]
}

func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{}
	r.init("function")
	return r
}

func (r *FunctionRegistry) Register(name string, arity Arity, fn FunctionFunc) error {
	return r.add(name, arity, fn, fn == nil, false)
}

func (r *FunctionRegistry) Replace(name string, arity Arity, fn FunctionFunc) error {
	return r.add(name, arity, fn, fn == nil, true)
}

func (r *FunctionRegistry) Clone() *FunctionRegistry {
	out := NewFunctionRegistry()
	r.copyInto(&out.registry)
	return out
}

// TestRegistry holds the tests usable with `is`. Two-word tests such as
// "divisible by" are registered with a single space.
type TestRegistry struct {
	registry[TestFunc]
}

func NewTestRegistry() *TestRegistry {
	r := &TestRegistry{}
	r.init("test")
	return r
}

func (r *TestRegistry) Register(name string, arity Arity, fn TestFunc) error {
	return r.add(testKey(name), arity, fn, fn == nil, false)
}

func (r *TestRegistry) Replace(name string, arity Arity, fn TestFunc) error {
	return r.add(testKey(name), arity, fn, fn == nil, true)
}

func (r *TestRegistry) Clone() *TestRegistry {
	out := NewTestRegistry()
	r.copyInto(&out.registry)
	return out
}

// testKey stores "divisible by" as "divisible_by" so that names stay valid
// identifiers in the shared registry.
func testKey(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}

// Has reports whether a test is registered, accepting either spelling.
func (r *TestRegistry) Has(name string) bool {
	return r.registry.Has(testKey(name))
}
