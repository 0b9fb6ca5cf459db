package parser

import (
	"strconv"
	"strings"

	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
)

func exprBase(tok lexer.Token) nodes.BaseExpr {
	return nodes.BaseExpr{BaseNode: nodes.BaseNode{Pos: pos(tok)}}
}

func binary(tok lexer.Token, op string, left, right nodes.Expr) nodes.Expr {
	return &nodes.BinExpr{BaseExpr: exprBase(tok), Op: op, Left: left, Right: right}
}

func (p *Parser) isOperator(values ...string) (lexer.Token, bool) {
	tok := p.stream.Peek()
	if tok.Type != lexer.TokenOperator {
		return tok, false
	}
	for _, v := range values {
		if tok.Value == v {
			return tok, true
		}
	}
	return tok, false
}

func (p *Parser) isWord(word string) bool {
	return p.stream.Peek().Is(lexer.TokenName, word)
}

// ParseExpression parses an expression
func (p *Parser) ParseExpression() (nodes.Expr, error) {
	return p.ParseConditionalExpr()
}

// ParseConditionalExpr parses `a ? b : c` and `a ?: b`.
func (p *Parser) ParseConditionalExpr() (nodes.Expr, error) {
	test, err := p.parseCoalesce()
	if err != nil {
		return nil, err
	}
	tok := p.stream.Peek()
	if !tok.Is(lexer.TokenPunct, "?") {
		return test, nil
	}
	p.stream.Next()

	node := &nodes.CondExpr{BaseExpr: exprBase(tok), Test: test}
	if !p.stream.SkipIf(lexer.TokenPunct, ":") {
		if node.Expr1, err = p.ParseConditionalExpr(); err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":", "conditional expression"); err != nil {
			return nil, err
		}
	}
	if node.Expr2, err = p.ParseConditionalExpr(); err != nil {
		return nil, err
	}
	return node, nil
}

// parseCoalesce parses the right-associative `??` operator.
func (p *Parser) parseCoalesce() (nodes.Expr, error) {
	left, err := p.ParseOr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.isOperator("??"); ok {
		p.stream.Next()
		right, err := p.parseCoalesce()
		if err != nil {
			return nil, err
		}
		return binary(tok, "??", left, right), nil
	}
	return left, nil
}

// ParseOr parses logical OR expressions
func (p *Parser) ParseOr() (nodes.Expr, error) {
	left, err := p.ParseAnd()
	if err != nil {
		return nil, err
	}
	for p.isWord("or") {
		tok := p.stream.Next()
		right, err := p.ParseAnd()
		if err != nil {
			return nil, err
		}
		left = binary(tok, "or", left, right)
	}
	return left, nil
}

// ParseAnd parses logical AND expressions
func (p *Parser) ParseAnd() (nodes.Expr, error) {
	left, err := p.ParseCompare()
	if err != nil {
		return nil, err
	}
	for p.isWord("and") {
		tok := p.stream.Next()
		right, err := p.ParseCompare()
		if err != nil {
			return nil, err
		}
		left = binary(tok, "and", left, right)
	}
	return left, nil
}

// ParseCompare parses equality, ordering, containment, string matching and
// `is` tests. Chains associate to the left.
func (p *Parser) ParseCompare() (nodes.Expr, error) {
	left, err := p.parseRange()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.stream.Peek()
		var op string
		switch {
		case tok.Type == lexer.TokenOperator:
			switch tok.Value {
			case "==", "!=", "<", ">", "<=", ">=":
				op = tok.Value
				p.stream.Next()
			}
		case tok.Is(lexer.TokenName, "in"):
			op = "in"
			p.stream.Next()
		case tok.Is(lexer.TokenName, "not") && p.stream.PeekN(1).Is(lexer.TokenName, "in"):
			op = "not in"
			p.stream.Next()
			p.stream.Next()
		case tok.Is(lexer.TokenName, "matches"):
			op = "matches"
			p.stream.Next()
		case (tok.Is(lexer.TokenName, "starts") || tok.Is(lexer.TokenName, "ends")) &&
			p.stream.PeekN(1).Is(lexer.TokenName, "with"):
			op = tok.Value + " with"
			p.stream.Next()
			p.stream.Next()
		case tok.Is(lexer.TokenName, "is"):
			p.stream.Next()
			if left, err = p.parseTest(tok, left); err != nil {
				return nil, err
			}
			continue
		}
		if op == "" {
			return left, nil
		}
		right, err := p.parseRange()
		if err != nil {
			return nil, err
		}
		left = binary(tok, op, left, right)
	}
}

// multiWordTests are test names spelled with two words.
var multiWordTests = map[string]string{
	"divisible": "by",
	"same":      "as",
}

// parseTest parses the part after `is`: `[not] name[(args)]`.
func (p *Parser) parseTest(isTok lexer.Token, node nodes.Expr) (nodes.Expr, error) {
	test := &nodes.Test{BaseExpr: exprBase(isTok), Node: node}
	if p.stream.SkipIf(lexer.TokenName, "not") {
		test.Negated = true
	}
	nameTok, err := p.expectName("test")
	if err != nil {
		return nil, err
	}
	test.Name = strings.ToLower(nameTok.Value)
	if second, ok := multiWordTests[test.Name]; ok {
		if err := p.expectKeyword(second, "test "+test.Name); err != nil {
			return nil, err
		}
		test.Name += " " + second
	}
	if p.stream.Peek().Is(lexer.TokenPunct, "(") {
		if test.Args, err = p.parseArgs("test " + test.Name); err != nil {
			return nil, err
		}
	}
	return test, nil
}

// parseRange parses the inclusive `..` range operator.
func (p *Parser) parseRange() (nodes.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.isOperator(".."); ok {
		p.stream.Next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return binary(tok, "..", left, right), nil
	}
	return left, nil
}

// parseAdditive parses `+`, `-` and the concatenation operator `~`, which
// share one precedence level.
func (p *Parser) parseAdditive() (nodes.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.isOperator("+", "-", "~")
		if !ok {
			return left, nil
		}
		p.stream.Next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = binary(tok, tok.Value, left, right)
	}
}

func (p *Parser) parseMultiplicative() (nodes.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.isOperator("*", "/", "//", "%")
		if !ok {
			return left, nil
		}
		p.stream.Next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binary(tok, tok.Value, left, right)
	}
}

func (p *Parser) parseUnary() (nodes.Expr, error) {
	tok := p.stream.Peek()
	if err := p.enter(tok); err != nil {
		return nil, err
	}
	defer p.leave()

	var op string
	switch {
	case tok.Is(lexer.TokenName, "not"):
		op = "not"
	case tok.Is(lexer.TokenOperator, "-"), tok.Is(lexer.TokenOperator, "+"):
		op = tok.Value
	default:
		return p.parsePower()
	}
	p.stream.Next()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &nodes.UnaryExpr{BaseExpr: exprBase(tok), Op: op, Node: operand}, nil
}

// parsePower parses the right-associative `**` operator, which binds tighter
// than unary minus.
func (p *Parser) parsePower() (nodes.Expr, error) {
	base, err := p.parsePostfix()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.isOperator("**"); ok {
		p.stream.Next()
		exp, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binary(tok, "**", base, exp), nil
	}
	return base, nil
}

// parsePostfix parses a primary expression followed by member access,
// subscripts and filters.
func (p *Parser) parsePostfix() (nodes.Expr, error) {
	node, err := p.ParsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.stream.Peek()
		switch {
		case tok.Is(lexer.TokenPunct, "."):
			p.stream.Next()
			attr := p.stream.Peek()
			if attr.Type != lexer.TokenName && attr.Type != lexer.TokenNumber {
				return nil, p.failUnexpected(attr, "attribute access")
			}
			p.stream.Next()
			node = &nodes.Getattr{BaseExpr: exprBase(tok), Node: node, Attr: attr.Value}

		case tok.Is(lexer.TokenPunct, "["):
			p.stream.Next()
			arg, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("]", "subscript"); err != nil {
				return nil, err
			}
			node = &nodes.Getitem{BaseExpr: exprBase(tok), Node: node, Arg: arg}

		case tok.Is(lexer.TokenPunct, "|"):
			p.stream.Next()
			nameTok, err := p.expectName("filter")
			if err != nil {
				return nil, err
			}
			filter := &nodes.Filter{BaseExpr: exprBase(nameTok), Node: node, Name: nameTok.Value}
			if p.stream.Peek().Is(lexer.TokenPunct, "(") {
				if filter.Args, err = p.parseArgs("filter " + nameTok.Value); err != nil {
					return nil, err
				}
			}
			node = filter

		default:
			return node, nil
		}
	}
}

// ParsePrimary parses literals, names, function calls and bracketed expressions.
func (p *Parser) ParsePrimary() (nodes.Expr, error) {
	tok := p.stream.Peek()

	switch tok.Type {
	case lexer.TokenName:
		p.stream.Next()
		switch strings.ToLower(tok.Value) {
		case "true":
			return &nodes.Const{BaseExpr: exprBase(tok), Value: true}, nil
		case "false":
			return &nodes.Const{BaseExpr: exprBase(tok), Value: false}, nil
		case "null", "none":
			return &nodes.Const{BaseExpr: exprBase(tok), Value: nil}, nil
		}
		if p.stream.Peek().Is(lexer.TokenPunct, "(") {
			args, err := p.parseArgs("call to " + tok.Value)
			if err != nil {
				return nil, err
			}
			return &nodes.Call{BaseExpr: exprBase(tok), Name: tok.Value, Args: args}, nil
		}
		return &nodes.Name{BaseExpr: exprBase(tok), Name: tok.Value}, nil

	case lexer.TokenString:
		p.stream.Next()
		// Concatenate adjacent strings
		value := tok.Value
		for p.stream.Peek().Type == lexer.TokenString {
			value += p.stream.Next().Value
		}
		return &nodes.Const{BaseExpr: exprBase(tok), Value: value}, nil

	case lexer.TokenNumber:
		p.stream.Next()
		value, err := parseNumber(tok.Value)
		if err != nil {
			return nil, p.Fail(tok, "invalid number %q", tok.Value)
		}
		return &nodes.Const{BaseExpr: exprBase(tok), Value: value}, nil

	case lexer.TokenPunct:
		switch tok.Value {
		case "(":
			p.stream.Next()
			expr, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")", "parenthesized expression"); err != nil {
				return nil, err
			}
			return expr, nil
		case "[":
			return p.parseList()
		case "{":
			return p.parseDict()
		}
	}
	return nil, p.failUnexpected(tok, "expression")
}

// parseNumber returns an int64 for integer literals, falling back to float64
// for decimals, exponents and integers that overflow.
func parseNumber(s string) (interface{}, error) {
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

// parseArgs parses a parenthesized, comma separated argument list.
func (p *Parser) parseArgs(context string) ([]nodes.Expr, error) {
	if _, err := p.expectPunct("(", context); err != nil {
		return nil, err
	}
	args := []nodes.Expr{}
	for !p.stream.Peek().Is(lexer.TokenPunct, ")") {
		if len(args) > 0 {
			if _, err := p.expectPunct(",", context); err != nil {
				return nil, err
			}
		}
		arg, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.stream.Next()
	return args, nil
}

// parseList parses `[a, b, c]`; a trailing comma is allowed.
func (p *Parser) parseList() (nodes.Expr, error) {
	open := p.stream.Next()
	list := &nodes.List{BaseExpr: exprBase(open), Items: []nodes.Expr{}}
	for !p.stream.Peek().Is(lexer.TokenPunct, "]") {
		if len(list.Items) > 0 {
			if _, err := p.expectPunct(",", "array literal"); err != nil {
				return nil, err
			}
			if p.stream.Peek().Is(lexer.TokenPunct, "]") {
				break
			}
		}
		item, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, item)
	}
	p.stream.Next()
	return list, nil
}

// parseDict parses `{key: value, ...}`. Keys are bare names, strings,
// numbers or parenthesized expressions.
func (p *Parser) parseDict() (nodes.Expr, error) {
	open := p.stream.Next()
	dict := &nodes.Dict{BaseExpr: exprBase(open), Items: []*nodes.Pair{}}
	for !p.stream.Peek().Is(lexer.TokenPunct, "}") {
		if len(dict.Items) > 0 {
			if _, err := p.expectPunct(",", "hash literal"); err != nil {
				return nil, err
			}
			if p.stream.Peek().Is(lexer.TokenPunct, "}") {
				break
			}
		}

		keyTok := p.stream.Peek()
		var key nodes.Expr
		switch {
		case keyTok.Type == lexer.TokenName, keyTok.Type == lexer.TokenString:
			p.stream.Next()
			key = &nodes.Const{BaseExpr: exprBase(keyTok), Value: keyTok.Value}
		case keyTok.Type == lexer.TokenNumber:
			p.stream.Next()
			value, err := parseNumber(keyTok.Value)
			if err != nil {
				return nil, p.Fail(keyTok, "invalid number %q", keyTok.Value)
			}
			key = &nodes.Const{BaseExpr: exprBase(keyTok), Value: value}
		case keyTok.Is(lexer.TokenPunct, "("):
			p.stream.Next()
			expr, err := p.ParseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")", "hash key"); err != nil {
				return nil, err
			}
			key = expr
		default:
			return nil, p.failUnexpected(keyTok, "hash key")
		}

		if _, err := p.expectPunct(":", "hash literal"); err != nil {
			return nil, err
		}
		value, err := p.ParseExpression()
		if err != nil {
			return nil, err
		}
		dict.Items = append(dict.Items, &nodes.Pair{BaseExpr: exprBase(keyTok), Key: key, Value: value})
	}
	p.stream.Next()
	return dict, nil
}
