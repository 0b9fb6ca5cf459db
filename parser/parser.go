package parser

import (
	"fmt"

	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
)

// DefaultMaxDepth bounds expression and tag nesting.
const DefaultMaxDepth = 256

// SyntaxError represents a syntax error in a template
type SyntaxError struct {
	Message string
	Line    int
	Column  int
	Name    string
}

func (e *SyntaxError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s at line %d, column %d in %s", e.Message, e.Line, e.Column, e.Name)
	}
	return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
}

// Environment carries the parse-time settings.
type Environment struct {
	TrimBlocks   bool
	LstripBlocks bool
	Delimiters   lexer.Delimiters
	MaxDepth     int
}

type openTag struct {
	name string
	pos  nodes.Position
}

// Parser builds a template AST from a token stream. A Parser is used for a
// single template and is not safe for concurrent use.
type Parser struct {
	environment *Environment
	stream      *lexer.TokenStream
	name        string
	maxDepth    int
	depth       int
	tagStack    []openTag
	blocks      map[string]nodes.Position
	extends     *nodes.Extends
	// content is set once anything other than whitespace has been parsed at
	// the top level, after which extends is rejected.
	content bool
}

// NewParser tokenizes source and returns a parser positioned at its start.
func NewParser(env *Environment, source, name string) (*Parser, error) {
	if env == nil {
		env = &Environment{}
	}
	config := lexer.DefaultLexerConfig()
	config.TrimBlocks = env.TrimBlocks
	config.LstripBlocks = env.LstripBlocks
	if env.Delimiters.BlockStart != "" {
		config.Delimiters = env.Delimiters
	}

	stream, err := lexer.NewLexer(config).Tokenize(source, name)
	if err != nil {
		return nil, err
	}
	return newParser(env, stream, name), nil
}

func newParser(env *Environment, stream *lexer.TokenStream, name string) *Parser {
	maxDepth := env.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Parser{
		environment: env,
		stream:      stream,
		name:        name,
		maxDepth:    maxDepth,
		blocks:      make(map[string]nodes.Position),
	}
}

// Parse parses the whole template.
func (p *Parser) Parse() (*nodes.Template, error) {
	body, _, err := p.subparse(nil)
	if err != nil {
		return nil, err
	}
	return &nodes.Template{
		BaseNode: nodes.BaseNode{Pos: nodes.NewPosition(1, 1)},
		Name:     p.name,
		Body:     body,
	}, nil
}

// Fail creates a syntax error located at the given token.
func (p *Parser) Fail(tok lexer.Token, format string, args ...interface{}) error {
	return &SyntaxError{
		Message: fmt.Sprintf(format, args...),
		Line:    tok.Line,
		Column:  tok.Column,
		Name:    p.name,
	}
}

func (p *Parser) failUnexpected(tok lexer.Token, context string) error {
	if tok.Type == lexer.TokenEOF {
		return p.Fail(tok, "unexpected end of template while parsing %s", context)
	}
	return p.Fail(tok, "unexpected %s while parsing %s", tok.Describe(), context)
}

func pos(tok lexer.Token) nodes.Position {
	return nodes.NewPosition(tok.Line, tok.Column)
}

// expectPunct consumes a punctuation token with the given value.
func (p *Parser) expectPunct(value, context string) (lexer.Token, error) {
	tok := p.stream.Peek()
	if !tok.Is(lexer.TokenPunct, value) {
		if tok.Type == lexer.TokenEOF {
			return tok, p.Fail(tok, "unexpected end of template, expected %q in %s", value, context)
		}
		return tok, p.Fail(tok, "unexpected %s, expected %q in %s", tok.Describe(), value, context)
	}
	return p.stream.Next(), nil
}

func (p *Parser) expectName(context string) (lexer.Token, error) {
	tok := p.stream.Peek()
	if tok.Type != lexer.TokenName {
		return tok, p.failUnexpected(tok, context)
	}
	return p.stream.Next(), nil
}

func (p *Parser) expectKeyword(word, context string) error {
	tok := p.stream.Peek()
	if !tok.Is(lexer.TokenName, word) {
		return p.Fail(tok, "unexpected %s, expected %q in %s", tok.Describe(), word, context)
	}
	p.stream.Next()
	return nil
}

func (p *Parser) expectBlockEnd(context string) error {
	tok := p.stream.Peek()
	if tok.Type != lexer.TokenBlockEnd {
		return p.failUnexpected(tok, context)
	}
	p.stream.Next()
	return nil
}

// enter tracks recursion depth, failing once it exceeds the configured limit.
func (p *Parser) enter(tok lexer.Token) error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.Fail(tok, "expression too deeply nested (limit %d)", p.maxDepth)
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}
