package parser

import (
	"strings"

	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
)

// closingTags maps a tag to the tags that may continue or close it.
var closingTags = map[string][]string{
	"if":    {"elseif", "else", "endif"},
	"for":   {"else", "endfor"},
	"block": {"endblock"},
	"set":   {"endset"},
}

// isClosingWord reports whether a tag name can only continue or close another tag.
func isClosingWord(name string) bool {
	return strings.HasPrefix(name, "end") || name == "else" || name == "elseif"
}

// subparse collects statements until one of endTags is found. The returned
// string is the end tag that stopped parsing; the stream is left on the
// token after the tag name.
func (p *Parser) subparse(endTags []string) ([]nodes.Stmt, string, error) {
	var body []nodes.Stmt
	topLevel := len(p.tagStack) == 0

	for {
		tok := p.stream.Peek()
		switch tok.Type {
		case lexer.TokenEOF:
			if endTags != nil {
				return nil, "", p.failUnclosed(tok)
			}
			return body, "", nil

		case lexer.TokenText:
			p.stream.Next()
			if topLevel && strings.TrimSpace(tok.Value) != "" {
				p.content = true
			}
			body = append(body, &nodes.TemplateData{
				BaseStmt: nodes.BaseStmt{BaseNode: nodes.BaseNode{Pos: pos(tok)}},
				Data:     tok.Value,
			})

		case lexer.TokenVariableStart:
			p.stream.Next()
			expr, err := p.ParseExpression()
			if err != nil {
				return nil, "", err
			}
			if end := p.stream.Peek(); end.Type != lexer.TokenVariableEnd {
				return nil, "", p.failUnexpected(end, "print statement")
			}
			p.stream.Next()
			if topLevel {
				p.content = true
			}
			body = append(body, &nodes.Output{
				BaseStmt: nodes.BaseStmt{BaseNode: nodes.BaseNode{Pos: pos(tok)}},
				Node:     expr,
			})

		case lexer.TokenBlockStart:
			nameTok := p.stream.PeekN(1)
			if nameTok.Type != lexer.TokenName {
				return nil, "", p.failUnexpected(nameTok, "tag")
			}
			if contains(endTags, nameTok.Value) {
				p.stream.Next()
				p.stream.Next()
				return body, nameTok.Value, nil
			}
			if isClosingWord(nameTok.Value) {
				return nil, "", p.failMismatch(nameTok)
			}
			p.stream.Next()
			stmt, err := p.ParseStatement()
			if err != nil {
				return nil, "", err
			}
			if stmt != nil {
				body = append(body, stmt)
			}

		default:
			return nil, "", p.failUnexpected(tok, "template")
		}
	}
}

// ParseStatement parses a tag. The stream is positioned on the tag name.
func (p *Parser) ParseStatement() (nodes.Stmt, error) {
	tok := p.stream.Next()
	if tok.Value != "extends" && len(p.tagStack) == 0 {
		p.content = true
	}

	p.tagStack = append(p.tagStack, openTag{name: tok.Value, pos: pos(tok)})
	defer func() { p.tagStack = p.tagStack[:len(p.tagStack)-1] }()
	if len(p.tagStack) > p.maxDepth {
		return nil, p.Fail(tok, "tags nested too deeply (limit %d)", p.maxDepth)
	}

	switch tok.Value {
	case "if":
		return p.parseIf(tok)
	case "for":
		return p.parseFor(tok)
	case "block":
		return p.parseBlock(tok)
	case "extends":
		return p.parseExtends(tok)
	case "include":
		return p.parseInclude(tok)
	case "set":
		return p.parseSet(tok)
	}
	return nil, p.Fail(tok, "Encountered unknown tag %q", tok.Value)
}

// failMismatch reports an end or continuation tag that does not belong to
// the innermost open tag.
func (p *Parser) failMismatch(tok lexer.Token) error {
	if len(p.tagStack) == 0 {
		return p.Fail(tok, "Encountered %q at %s but no tag is open", tok.Value, pos(tok))
	}
	open := p.tagStack[len(p.tagStack)-1]
	want := "end" + open.name
	if expected := closingTags[open.name]; len(expected) > 0 {
		want = expected[len(expected)-1]
	}
	return p.Fail(tok, "Encountered %q at %s but expected %q to close %q opened at %s",
		tok.Value, pos(tok), want, open.name, open.pos)
}

func (p *Parser) failUnclosed(tok lexer.Token) error {
	if len(p.tagStack) == 0 {
		return p.Fail(tok, "Unexpected end of template")
	}
	open := p.tagStack[len(p.tagStack)-1]
	return p.Fail(tok, "Unexpected end of template: %q opened at %s was never closed", open.name, open.pos)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
