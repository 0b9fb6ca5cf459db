package runtime

// LoopContext describes the current iteration of a for loop. It is exposed
// to templates as the `loop` variable.
type LoopContext struct {
	Index     int
	Index0    int
	Revindex  int
	Revindex0 int
	First     bool
	Last      bool
	Length    int
	Parent    Value
}

func newLoopContext(i, length int, parent Value) LoopContext {
	return LoopContext{
		Index:     i + 1,
		Index0:    i,
		Revindex:  length - i,
		Revindex0: length - i - 1,
		First:     i == 0,
		Last:      i == length-1,
		Length:    length,
		Parent:    parent,
	}
}

// Value converts the loop context into the mapping seen by templates.
func (l LoopContext) Value() Value {
	m := NewMapping()
	m.Set("index", Int(int64(l.Index)))
	m.Set("index0", Int(int64(l.Index0)))
	m.Set("revindex", Int(int64(l.Revindex)))
	m.Set("revindex0", Int(int64(l.Revindex0)))
	m.Set("first", Bool(l.First))
	m.Set("last", Bool(l.Last))
	m.Set("length", Int(int64(l.Length)))
	if l.Parent.IsDefined() && !l.Parent.IsNull() {
		m.Set("parent", l.Parent)
	}
	return MappingValue(m)
}

// Scope is one layer of the variable chain. Lookups search innermost to
// outermost. A scope belongs to a single render and is never shared.
type Scope struct {
	parent *Scope
	vars   map[string]Value
	// isolated scopes (blocks, includes) take a private copy of any outer
	// variable assigned inside them instead of writing through.
	isolated bool
}

// NewScope creates a root scope holding the given bindings.
func NewScope(bindings *Mapping) *Scope {
	s := &Scope{vars: make(map[string]Value, bindings.Len())}
	bindings.Each(func(k string, v Value) bool {
		s.vars[k] = v
		return true
	})
	return s
}

// Push returns a new innermost scope over s.
func (s *Scope) Push(bindings map[string]Value) *Scope {
	if bindings == nil {
		bindings = make(map[string]Value)
	}
	return &Scope{parent: s, vars: bindings}
}

// PushIsolated returns a new innermost scope that keeps assignments to
// outer variables local to itself.
func (s *Scope) PushIsolated(bindings map[string]Value) *Scope {
	child := s.Push(bindings)
	child.isolated = true
	return child
}

// Pop discards the innermost scope and returns its parent.
func (s *Scope) Pop() *Scope {
	return s.parent
}

// Lookup returns the innermost binding for name, or the undefined sentinel.
func (s *Scope) Lookup(name string) Value {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v
		}
	}
	return Undefined()
}

// Has checks if a variable exists in any scope
func (s *Scope) Has(name string) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			return true
		}
	}
	return false
}

// Set assigns name. An existing binding is updated where it lives unless an
// isolated scope lies in between, in which case the isolated scope gets its
// own copy. New names are bound in the innermost scope.
func (s *Scope) Set(name string, value Value) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = value
			return
		}
		if cur.isolated {
			if cur.parent.Has(name) {
				cur.vars[name] = value
				return
			}
			break
		}
	}
	s.vars[name] = value
}

// Depth returns the number of scopes in the chain.
func (s *Scope) Depth() int {
	n := 0
	for cur := s; cur != nil; cur = cur.parent {
		n++
	}
	return n
}

// Flatten returns every visible binding, inner bindings shadowing outer ones.
func (s *Scope) Flatten() *Mapping {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	m := NewMapping()
	for i := len(chain) - 1; i >= 0; i-- {
		for _, k := range sortedKeys(chain[i].vars) {
			m.Set(k, chain[i].vars[k])
		}
	}
	return m
}
