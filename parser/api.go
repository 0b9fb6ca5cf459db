package parser

import (
	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
)

// ParseTemplate is a simple one-line API for parsing templates
// It creates a default environment and parses the given template string
// Returns the AST or an error with position information
func ParseTemplate(template string) (*nodes.Template, error) {
	return ParseTemplateWithEnv(&Environment{}, template, "template")
}

// ParseTemplateWithEnv parses a template using the given environment.
// Errors are either *lexer.LexError or *SyntaxError.
func ParseTemplateWithEnv(env *Environment, template, name string) (*nodes.Template, error) {
	parser, err := NewParser(env, template, name)
	if err != nil {
		return nil, err
	}
	return parser.Parse()
}

// ParseExpression parses a standalone expression such as `a.b|upper`.
func ParseExpression(source string) (nodes.Expr, error) {
	stream, err := lexer.Tokenize("{{ "+source+" }}", "expression")
	if err != nil {
		return nil, err
	}
	p := newParser(&Environment{}, stream, "expression")
	p.stream.Next()
	expr, err := p.ParseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.stream.Peek(); tok.Type != lexer.TokenVariableEnd {
		return nil, p.failUnexpected(tok, "expression")
	}
	return expr, nil
}
