package runtime

import (
	"fmt"
	"strings"

	"github.com/deicod/gotwig/nodes"
)

// ResolvedTemplate is a template with its extends chain applied: the body of
// the root ancestor with every block slot replaced by its nearest override.
// Overridden bodies are kept per level so parent() can render them.
type ResolvedTemplate struct {
	name     string
	rootName string
	chain    []string
	body     []nodes.Stmt
	// prelude holds the top-level set statements of the extending templates,
	// most derived first. They run before body.
	prelude []preludeStmt
	// levels maps a block name to its resolved declarations, most derived
	// first.
	levels  map[string][]*nodes.Block
	levelOf map[*nodes.Block]int
	// origin names the template each resolved block was declared in.
	origin map[*nodes.Block]string
}

type preludeStmt struct {
	template string
	stmt     nodes.Stmt
}

// Name returns the name of the template that was resolved.
func (rt *ResolvedTemplate) Name() string { return rt.name }

// Chain returns the extends chain starting with the template itself.
func (rt *ResolvedTemplate) Chain() []string { return append([]string(nil), rt.chain...) }

// Body returns the resolved top-level statements.
func (rt *ResolvedTemplate) Body() []nodes.Stmt { return rt.body }

// block returns the resolved declaration of name at the given level.
func (rt *ResolvedTemplate) block(name string, level int) (*nodes.Block, bool) {
	decls := rt.levels[name]
	if level < 0 || level >= len(decls) {
		return nil, false
	}
	return decls[level], true
}

// Resolve applies the extends chain of t, compiling parents read from loader.
func Resolve(t *Template, loader Loader) (*ResolvedTemplate, error) {
	return resolve(t, func(name string) (*Template, error) {
		src, err := loader.Load(name)
		if err != nil {
			return nil, err
		}
		return Compile(name, string(src))
	})
}

type templateFetcher func(name string) (*Template, error)

func resolve(t *Template, fetch templateFetcher) (*ResolvedTemplate, error) {
	chain := []*Template{t}
	seen := map[string]bool{t.name: true}
	for cur := t; cur.extends != nil; {
		parentName := cur.extends.Template
		if seen[parentName] {
			names := make([]string, 0, len(chain)+1)
			for _, c := range chain {
				names = append(names, c.name)
			}
			names = append(names, parentName)
			return nil, &Error{
				Type:     ErrorTypeComposition,
				Message:  "circular extends chain: " + strings.Join(names, " -> "),
				Template: cur.name,
				Position: cur.extends.Pos,
			}
		}
		parent, err := fetch(parentName)
		if err != nil {
			if IsNotFound(err) {
				return nil, &Error{
					Type:     ErrorTypeComposition,
					Message:  fmt.Sprintf("parent template %q not found", parentName),
					Template: cur.name,
					Position: cur.extends.Pos,
					Cause:    err,
				}
			}
			return nil, err
		}
		seen[parentName] = true
		chain = append(chain, parent)
		cur = parent
	}

	r := &slotResolver{
		raw:   make(map[string][]declaration),
		built: make(map[blockLevel]*nodes.Block),
		rt: &ResolvedTemplate{
			name:    t.name,
			levels:  make(map[string][]*nodes.Block),
			levelOf: make(map[*nodes.Block]int),
			origin:  make(map[*nodes.Block]string),
		},
	}
	for _, c := range chain {
		r.rt.chain = append(r.rt.chain, c.name)
		for _, name := range c.BlockNames() {
			r.raw[name] = append(r.raw[name], declaration{template: c.name, block: c.blocks[name]})
		}
	}

	for _, name := range sortedKeys(r.raw) {
		for level := range r.raw[name] {
			b, err := r.block(name, level)
			if err != nil {
				return nil, err
			}
			r.rt.levels[name] = append(r.rt.levels[name], b)
		}
	}

	root := chain[len(chain)-1]
	body, err := r.stmts(root.ast.Body)
	if err != nil {
		return nil, err
	}
	r.rt.body = body
	r.rt.rootName = root.name
	for _, c := range chain[:len(chain)-1] {
		for _, set := range c.sets {
			s, err := r.stmt(set)
			if err != nil {
				return nil, err
			}
			r.rt.prelude = append(r.rt.prelude, preludeStmt{template: c.name, stmt: s})
		}
	}
	return r.rt, nil
}

type declaration struct {
	template string
	block    *nodes.Block
}

type blockLevel struct {
	name  string
	level int
}

// slotResolver rebuilds statement trees with block slots substituted. Only
// the containers on the path to a block are copied; leaves are shared with
// the compiled templates.
type slotResolver struct {
	raw   map[string][]declaration
	built map[blockLevel]*nodes.Block
	rt    *ResolvedTemplate
}

var blockInProgress = &nodes.Block{}

func (r *slotResolver) block(name string, level int) (*nodes.Block, error) {
	key := blockLevel{name, level}
	if b, ok := r.built[key]; ok {
		if b == blockInProgress {
			decl := r.raw[name][level]
			return nil, &Error{
				Type:     ErrorTypeComposition,
				Message:  fmt.Sprintf("block %q is nested inside itself", name),
				Template: decl.template,
				Position: decl.block.Pos,
			}
		}
		return b, nil
	}
	r.built[key] = blockInProgress

	decl := r.raw[name][level]
	body, err := r.stmts(decl.block.Body)
	if err != nil {
		return nil, err
	}
	b := &nodes.Block{BaseStmt: decl.block.BaseStmt, Name: name, Body: body}
	r.built[key] = b
	r.rt.levelOf[b] = level
	r.rt.origin[b] = decl.template
	return b, nil
}

func (r *slotResolver) stmts(list []nodes.Stmt) ([]nodes.Stmt, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]nodes.Stmt, 0, len(list))
	for _, s := range list {
		if _, ok := s.(*nodes.Extends); ok {
			continue
		}
		resolved, err := r.stmt(s)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}

func (r *slotResolver) stmt(s nodes.Stmt) (nodes.Stmt, error) {
	var err error
	switch n := s.(type) {
	case *nodes.Block:
		return r.block(n.Name, 0)
	case *nodes.If:
		out := &nodes.If{BaseStmt: n.BaseStmt, Branches: make([]*nodes.IfBranch, len(n.Branches))}
		for i, br := range n.Branches {
			body, err := r.stmts(br.Body)
			if err != nil {
				return nil, err
			}
			out.Branches[i] = &nodes.IfBranch{BaseNode: br.BaseNode, Test: br.Test, Body: body}
		}
		if out.Else, err = r.stmts(n.Else); err != nil {
			return nil, err
		}
		return out, nil
	case *nodes.For:
		out := *n
		if out.Body, err = r.stmts(n.Body); err != nil {
			return nil, err
		}
		if out.Else, err = r.stmts(n.Else); err != nil {
			return nil, err
		}
		return &out, nil
	case *nodes.Set:
		if n.Body == nil {
			return n, nil
		}
		out := *n
		if out.Body, err = r.stmts(n.Body); err != nil {
			return nil, err
		}
		return &out, nil
	}
	return s, nil
}
