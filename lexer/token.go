package lexer

import "fmt"

// TokenType represents the type of a token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenText
	TokenVariableStart
	TokenVariableEnd
	TokenBlockStart
	TokenBlockEnd
	TokenName
	TokenNumber
	TokenString
	TokenOperator
	TokenPunct
)

var tokenNames = map[TokenType]string{
	TokenEOF:           "EOF",
	TokenText:          "TEXT",
	TokenVariableStart: "EXPR_START",
	TokenVariableEnd:   "EXPR_END",
	TokenBlockStart:    "TAG_START",
	TokenBlockEnd:      "TAG_END",
	TokenName:          "IDENTIFIER",
	TokenNumber:        "NUMBER",
	TokenString:        "STRING",
	TokenOperator:      "OPERATOR",
	TokenPunct:         "PUNCTUATION",
}

func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", tt)
}

// Token represents a single token in the template. Tokens are values and are
// never modified after the lexer emits them.
type Token struct {
	Type     TokenType
	Value    string
	Line     int
	Column   int
	Position int
}

func (t Token) String() string {
	return fmt.Sprintf("%s('%s') at %d:%d", t.Type, t.Value, t.Line, t.Column)
}

// Is reports whether the token has the given type and value.
func (t Token) Is(tt TokenType, value string) bool {
	return t.Type == tt && t.Value == value
}

// Describe returns a short human readable description used in error messages.
func (t Token) Describe() string {
	switch t.Type {
	case TokenEOF:
		return "end of template"
	case TokenVariableStart, TokenVariableEnd, TokenBlockStart, TokenBlockEnd,
		TokenOperator, TokenPunct, TokenName:
		return fmt.Sprintf("%q", t.Value)
	case TokenString:
		return fmt.Sprintf("string %q", t.Value)
	case TokenNumber:
		return "number " + t.Value
	case TokenText:
		return "template text"
	}
	return t.Type.String()
}

// TokenStream represents a stream of tokens
type TokenStream struct {
	tokens []Token
	pos    int
}

func NewTokenStream(tokens []Token) *TokenStream {
	return &TokenStream{
		tokens: tokens,
		pos:    0,
	}
}

// eof returns an EOF token positioned after the last real token.
func (ts *TokenStream) eof() Token {
	if n := len(ts.tokens); n > 0 {
		last := ts.tokens[n-1]
		if last.Type == TokenEOF {
			return last
		}
		return Token{Type: TokenEOF, Line: last.Line, Column: last.Column, Position: last.Position}
	}
	return Token{Type: TokenEOF, Line: 1, Column: 1}
}

func (ts *TokenStream) Next() Token {
	if ts.pos >= len(ts.tokens) {
		return ts.eof()
	}
	token := ts.tokens[ts.pos]
	ts.pos++
	return token
}

func (ts *TokenStream) Peek() Token {
	if ts.pos >= len(ts.tokens) {
		return ts.eof()
	}
	return ts.tokens[ts.pos]
}

func (ts *TokenStream) PeekN(n int) Token {
	if ts.pos+n >= len(ts.tokens) {
		return ts.eof()
	}
	return ts.tokens[ts.pos+n]
}

func (ts *TokenStream) Eof() bool {
	return ts.Peek().Type == TokenEOF
}

// Tokens returns a copy of the underlying token slice.
func (ts *TokenStream) Tokens() []Token {
	out := make([]Token, len(ts.tokens))
	copy(out, ts.tokens)
	return out
}

// SkipIf consumes the next token if it matches type and value.
func (ts *TokenStream) SkipIf(tt TokenType, value string) bool {
	if ts.Peek().Is(tt, value) {
		ts.pos++
		return true
	}
	return false
}

// Consume returns the next token, failing if it doesn't match the expected type
func (ts *TokenStream) Consume(expected TokenType) (Token, error) {
	token := ts.Peek()
	if token.Type != expected {
		return token, fmt.Errorf("expected %s, got %s", expected, token.Describe())
	}
	ts.pos++
	return token, nil
}

// ExpectNamed consumes and returns a token, failing if it doesn't match the expected type and value
func (ts *TokenStream) ExpectNamed(expectedType TokenType, expectedValue string) (Token, error) {
	token := ts.Peek()
	if token.Is(expectedType, expectedValue) {
		ts.pos++
		return token, nil
	}
	return token, fmt.Errorf("expected %q, got %s", expectedValue, token.Describe())
}
