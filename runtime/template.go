package runtime

import (
	"github.com/deicod/gotwig/nodes"
	"github.com/deicod/gotwig/parser"
)

// Template is a compiled, not yet composed template. It is immutable and may
// be shared between goroutines.
type Template struct {
	name    string
	ast     *nodes.Template
	blocks  map[string]*nodes.Block
	extends *nodes.Extends
	sets    []*nodes.Set
}

// Compile parses source with the default settings.
func Compile(name, source string) (*Template, error) {
	return compileWith(&parser.Environment{}, name, source)
}

func compileWith(cfg *parser.Environment, name, source string) (*Template, error) {
	ast, err := parser.ParseTemplateWithEnv(cfg, source, name)
	if err != nil {
		return nil, wrapParseError(err, name)
	}
	return newTemplate(name, ast), nil
}

// newTemplate collects the block map, the parent name and the top-level set
// statements from ast.
func newTemplate(name string, ast *nodes.Template) *Template {
	t := &Template{
		name:   name,
		ast:    ast,
		blocks: make(map[string]*nodes.Block),
	}
	nodes.Walk(nodes.NodeVisitorFunc(func(node nodes.Node) interface{} {
		if b, ok := node.(*nodes.Block); ok {
			t.blocks[b.Name] = b
		}
		return nil
	}), ast)

	for _, stmt := range ast.Body {
		switch n := stmt.(type) {
		case *nodes.Extends:
			t.extends = n
		case *nodes.Set:
			t.sets = append(t.sets, n)
		}
	}
	return t
}

// Name returns the template name.
func (t *Template) Name() string { return t.name }

// AST returns the parsed template.
func (t *Template) AST() *nodes.Template { return t.ast }

// Parent returns the name of the extended template, or "".
func (t *Template) Parent() string {
	if t.extends == nil {
		return ""
	}
	return t.extends.Template
}

// BlockNames lists the blocks declared in this template, nested ones included.
func (t *Template) BlockNames() []string { return sortedKeys(t.blocks) }

// Block returns the declaration of a block.
func (t *Template) Block(name string) (*nodes.Block, bool) {
	b, ok := t.blocks[name]
	return b, ok
}
