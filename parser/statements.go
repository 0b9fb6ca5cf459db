package parser

import (
	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
)

func stmtBase(tok lexer.Token) nodes.BaseStmt {
	return nodes.BaseStmt{BaseNode: nodes.BaseNode{Pos: pos(tok)}}
}

// parseIf parses `if`, any number of `elseif`, an optional `else` and `endif`.
func (p *Parser) parseIf(tok lexer.Token) (nodes.Stmt, error) {
	node := &nodes.If{BaseStmt: stmtBase(tok)}
	branchTok := tok
	for {
		test, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectBlockEnd("if condition"); err != nil {
			return nil, err
		}
		body, end, err := p.subparse(closingTags["if"])
		if err != nil {
			return nil, err
		}
		node.Branches = append(node.Branches, &nodes.IfBranch{
			BaseNode: nodes.BaseNode{Pos: pos(branchTok)},
			Test:     test,
			Body:     body,
		})

		switch end {
		case "elseif":
			branchTok = p.stream.Peek()
			continue
		case "else":
			if err := p.expectBlockEnd("else"); err != nil {
				return nil, err
			}
			elseBody, _, err := p.subparse([]string{"endif"})
			if err != nil {
				return nil, err
			}
			if elseBody == nil {
				elseBody = []nodes.Stmt{}
			}
			node.Else = elseBody
		}
		return node, p.expectBlockEnd("endif")
	}
}

// parseFor parses `for [key,] value in expr`, with an optional `else` body
// rendered when the collection is empty.
func (p *Parser) parseFor(tok lexer.Token) (nodes.Stmt, error) {
	node := &nodes.For{BaseStmt: stmtBase(tok)}

	first, err := p.expectName("for loop target")
	if err != nil {
		return nil, err
	}
	node.ValueVar = first.Value
	if p.stream.SkipIf(lexer.TokenPunct, ",") {
		second, err := p.expectName("for loop target")
		if err != nil {
			return nil, err
		}
		node.KeyVar, node.ValueVar = first.Value, second.Value
	}
	if err := p.expectKeyword("in", "for loop"); err != nil {
		return nil, err
	}
	if node.Iter, err = p.ParseExpression(); err != nil {
		return nil, err
	}
	if err := p.expectBlockEnd("for loop"); err != nil {
		return nil, err
	}

	body, end, err := p.subparse(closingTags["for"])
	if err != nil {
		return nil, err
	}
	node.Body = body
	if end == "else" {
		if err := p.expectBlockEnd("else"); err != nil {
			return nil, err
		}
		elseBody, _, err := p.subparse([]string{"endfor"})
		if err != nil {
			return nil, err
		}
		if elseBody == nil {
			elseBody = []nodes.Stmt{}
		}
		node.Else = elseBody
	}
	return node, p.expectBlockEnd("endfor")
}

// parseBlock parses `block name ... endblock [name]` and the shorthand
// `block name expr`.
func (p *Parser) parseBlock(tok lexer.Token) (nodes.Stmt, error) {
	nameTok, err := p.expectName("block name")
	if err != nil {
		return nil, err
	}
	if prev, ok := p.blocks[nameTok.Value]; ok {
		return nil, p.Fail(nameTok, "block %q defined twice: first at %s, again at %s",
			nameTok.Value, prev, pos(nameTok))
	}
	p.blocks[nameTok.Value] = pos(nameTok)

	node := &nodes.Block{BaseStmt: stmtBase(tok), Name: nameTok.Value}

	if next := p.stream.Peek(); next.Type != lexer.TokenBlockEnd {
		expr, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expectBlockEnd("block"); err != nil {
			return nil, err
		}
		node.Body = []nodes.Stmt{&nodes.Output{BaseStmt: stmtBase(next), Node: expr}}
		return node, nil
	}
	p.stream.Next()

	body, _, err := p.subparse(closingTags["block"])
	if err != nil {
		return nil, err
	}
	node.Body = body

	if endName := p.stream.Peek(); endName.Type == lexer.TokenName {
		if endName.Value != node.Name {
			return nil, p.Fail(endName, "endblock name %q does not match block %q opened at %s",
				endName.Value, node.Name, node.Pos)
		}
		p.stream.Next()
	}
	return node, p.expectBlockEnd("endblock")
}

// parseExtends parses `extends "name"`. It must be the first statement of
// the template.
func (p *Parser) parseExtends(tok lexer.Token) (nodes.Stmt, error) {
	if len(p.tagStack) > 1 {
		return nil, p.Fail(tok, "extends cannot be used inside %q", p.tagStack[len(p.tagStack)-2].name)
	}
	if p.extends != nil {
		return nil, p.Fail(tok, "template already extends %q at %s", p.extends.Template, p.extends.Pos)
	}
	if p.content {
		return nil, p.Fail(tok, "extends must be the first statement of the template")
	}

	nameTok := p.stream.Peek()
	if nameTok.Type != lexer.TokenString {
		return nil, p.Fail(nameTok, "extends expects a template name string, got %s", nameTok.Describe())
	}
	p.stream.Next()
	if err := p.expectBlockEnd("extends"); err != nil {
		return nil, err
	}
	p.extends = &nodes.Extends{BaseStmt: stmtBase(tok), Template: nameTok.Value}
	return p.extends, nil
}

// parseInclude parses `include expr [ignore missing] [with expr] [only]`.
func (p *Parser) parseInclude(tok lexer.Token) (nodes.Stmt, error) {
	node := &nodes.Include{BaseStmt: stmtBase(tok)}
	var err error
	if node.Template, err = p.ParseExpression(); err != nil {
		return nil, err
	}

	if p.stream.SkipIf(lexer.TokenName, "ignore") {
		if err := p.expectKeyword("missing", "include"); err != nil {
			return nil, err
		}
		node.IgnoreMissing = true
	}
	if p.stream.SkipIf(lexer.TokenName, "with") {
		if node.With, err = p.ParseExpression(); err != nil {
			return nil, err
		}
	}
	if p.stream.SkipIf(lexer.TokenName, "only") {
		node.Only = true
	}
	return node, p.expectBlockEnd("include")
}

// parseSet parses `set name = expr` and the capturing `set name ... endset`.
func (p *Parser) parseSet(tok lexer.Token) (nodes.Stmt, error) {
	nameTok, err := p.expectName("set target")
	if err != nil {
		return nil, err
	}
	node := &nodes.Set{BaseStmt: stmtBase(tok), Name: nameTok.Value}

	if p.stream.SkipIf(lexer.TokenOperator, "=") {
		if node.Value, err = p.ParseExpression(); err != nil {
			return nil, err
		}
		return node, p.expectBlockEnd("set")
	}

	if err := p.expectBlockEnd("set"); err != nil {
		return nil, err
	}
	body, _, err := p.subparse(closingTags["set"])
	if err != nil {
		return nil, err
	}
	if body == nil {
		body = []nodes.Stmt{}
	}
	node.Body = body
	return node, p.expectBlockEnd("endset")
}
