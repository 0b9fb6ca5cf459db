package lexer

import (
	"errors"
	"strings"
	"testing"
)

func tokenize(t *testing.T, config LexerConfig, template string) []Token {
	t.Helper()
	stream, err := NewLexer(config).Tokenize(template, "test")
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", template, err)
	}
	return stream.Tokens()
}

func describe(tokens []Token) string {
	parts := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.Type == TokenEOF {
			break
		}
		parts = append(parts, tok.Type.String()+":"+tok.Value)
	}
	return strings.Join(parts, " ")
}

func TestBasicLexing(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "simple text",
			template: "Hello, World!",
			expected: "TEXT:Hello, World!",
		},
		{
			name:     "simple variable",
			template: "Hello, {{ name }}!",
			expected: "TEXT:Hello,  EXPR_START:{{ IDENTIFIER:name EXPR_END:}} TEXT:!",
		},
		{
			name:     "simple block",
			template: "{% if condition %}content{% endif %}",
			expected: "TAG_START:{% IDENTIFIER:if IDENTIFIER:condition TAG_END:%} TEXT:content TAG_START:{% IDENTIFIER:endif TAG_END:%}",
		},
		{
			name:     "comment",
			template: "Hello{# this is a comment #} World!",
			expected: "TEXT:Hello TEXT: World!",
		},
		{
			name:     "verbatim block",
			template: "{% verbatim %}{{ untouched }}{% endverbatim %}",
			expected: "TEXT:{{ untouched }}",
		},
		{
			name:     "verbatim block with whitespace control",
			template: "a {%- verbatim -%} {{ x }} {%- endverbatim -%} b",
			expected: "TEXT:a TEXT:{{ x }} TEXT:b",
		},
		{
			name:     "no spaces",
			template: "{{name}}",
			expected: "EXPR_START:{{ IDENTIFIER:name EXPR_END:}}",
		},
		{
			name:     "hash literal closing braces",
			template: `{{ {"a": {"b": 1}} }}`,
			expected: `EXPR_START:{{ PUNCTUATION:{ STRING:a PUNCTUATION:: PUNCTUATION:{ STRING:b PUNCTUATION:: NUMBER:1 PUNCTUATION:} PUNCTUATION:} EXPR_END:}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describe(tokenize(t, DefaultLexerConfig(), tt.template))
			if got != tt.expected {
				t.Errorf("tokens:\n got: %s\nwant: %s", got, tt.expected)
			}
		})
	}
}

func TestTextIsPreservedVerbatim(t *testing.T) {
	template := "  line 1\n\tline 2 { } % # \n"
	tokens := tokenize(t, DefaultLexerConfig(), template)
	if len(tokens) != 2 || tokens[0].Type != TokenText || tokens[0].Value != template {
		t.Fatalf("expected a single text token, got %s", describe(tokens))
	}
	if tokens[1].Type != TokenEOF {
		t.Fatalf("expected EOF last, got %s", tokens[1])
	}
}

func TestLStripBlocks(t *testing.T) {
	config := DefaultLexerConfig()
	config.LstripBlocks = true

	template := "<ul>\n    {% if condition %}\n    <li>{{ x }}</li>\n    {% endif %}\n</ul>"
	got := describe(tokenize(t, config, template))
	expected := "TEXT:<ul>\n TAG_START:{% IDENTIFIER:if IDENTIFIER:condition TAG_END:%} " +
		"TEXT:\n    <li> EXPR_START:{{ IDENTIFIER:x EXPR_END:}} TEXT:</li>\n " +
		"TAG_START:{% IDENTIFIER:endif TAG_END:%} TEXT:\n</ul>"
	if got != expected {
		t.Errorf("tokens:\n got: %q\nwant: %q", got, expected)
	}
}

func TestTrimBlocks(t *testing.T) {
	config := DefaultLexerConfig()
	config.TrimBlocks = true

	template := "content{% if condition %}\nmore content\n{% endif %}\n{{ x }}\nend"
	var texts []string
	for _, tok := range tokenize(t, config, template) {
		if tok.Type == TokenText {
			texts = append(texts, tok.Value)
		}
	}
	expected := []string{"content", "more content\n", "\nend"}
	if strings.Join(texts, "|") != strings.Join(expected, "|") {
		t.Errorf("expected text tokens %q, got %q", expected, texts)
	}
}

func TestPositionTracking(t *testing.T) {
	template := "line 1\nline 2 {{ variable }}\nline 3 {% block b %}content{% endblock %}\nlíne 4 {{ x }}"
	tokens := tokenize(t, DefaultLexerConfig(), template)

	find := func(tt TokenType, value string, nth int) Token {
		for _, tok := range tokens {
			if tok.Is(tt, value) {
				if nth == 0 {
					return tok
				}
				nth--
			}
		}
		t.Fatalf("token %s %q not found", tt, value)
		return Token{}
	}

	tests := []struct {
		token        Token
		line, column int
	}{
		{find(TokenVariableStart, "{{", 0), 2, 8},
		{find(TokenName, "variable", 0), 2, 11},
		{find(TokenBlockStart, "{%", 0), 3, 8},
		{find(TokenName, "endblock", 0), 3, 31},
		{find(TokenName, "x", 0), 4, 11},
	}
	for _, tt := range tests {
		if tt.token.Line != tt.line || tt.token.Column != tt.column {
			t.Errorf("%s: expected %d:%d, got %d:%d", tt.token, tt.line, tt.column, tt.token.Line, tt.token.Column)
		}
	}
}

func TestStringTokenization(t *testing.T) {
	tests := []struct {
		template string
		expected string
	}{
		{`{{ "double" }}`, "double"},
		{`{{ 'single' }}`, "single"},
		{`{{ "it's" }}`, "it's"},
		{`{{ 'say \'hi\'' }}`, "say 'hi'"},
		{`{{ "tab\tnew\nline" }}`, "tab\tnew\nline"},
		{`{{ "back\\slash" }}`, `back\slash`},
		{`{{ "keep \d" }}`, `keep \d`},
		{`{{ "%} and }}" }}`, "%} and }}"},
	}
	for _, tt := range tests {
		tokens := tokenize(t, DefaultLexerConfig(), tt.template)
		if tokens[1].Type != TokenString || tokens[1].Value != tt.expected {
			t.Errorf("%s: expected string %q, got %s", tt.template, tt.expected, tokens[1])
		}
	}
}

func TestNumberTokenization(t *testing.T) {
	tests := []struct {
		template string
		expected string
	}{
		{"{{ 42 }}", "NUMBER:42"},
		{"{{ 3.14 }}", "NUMBER:3.14"},
		{"{{ 1e3 }}", "NUMBER:1e3"},
		{"{{ 2.5E-2 }}", "NUMBER:2.5E-2"},
		{"{{ 1..5 }}", "NUMBER:1 OPERATOR:.. NUMBER:5"},
		{"{{ -7 }}", "OPERATOR:- NUMBER:7"},
		{"{{ a.0 }}", "IDENTIFIER:a PUNCTUATION:. NUMBER:0"},
	}
	for _, tt := range tests {
		tokens := tokenize(t, DefaultLexerConfig(), tt.template)
		got := describe(tokens[1 : len(tokens)-2])
		if got != tt.expected {
			t.Errorf("%s: expected %s, got %s", tt.template, tt.expected, got)
		}
	}
}

func TestOperatorTokenization(t *testing.T) {
	template := "{{ a == b != c <= d >= e // f ** g ?? h ~ i < j > k + l - m * n / o % p }}"
	var ops []string
	for _, tok := range tokenize(t, DefaultLexerConfig(), template) {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Value)
		}
	}
	expected := "== != <= >= // ** ?? ~ < > + - * / %"
	if got := strings.Join(ops, " "); got != expected {
		t.Errorf("expected operators %q, got %q", expected, got)
	}

	// Word operators are plain names; the parser gives them meaning.
	tokens := tokenize(t, DefaultLexerConfig(), "{{ a not in b and c is divisible by(3) }}")
	for _, tok := range tokens[1 : len(tokens)-2] {
		if tok.Type == TokenOperator {
			t.Errorf("unexpected operator token %s", tok)
		}
	}
}

func TestErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		template string
		errMsg   string
		line     int
		column   int
	}{
		{"unclosed variable", "{{ name", `missing "}}"`, 1, 1},
		{"unclosed block", "text\n{% if condition", `missing "%}"`, 2, 1},
		{"unclosed comment", "a {# comment", `missing "#}"`, 1, 3},
		{"unclosed braces", "{{ func({})", "unclosed construct", 1, 1},
		{"unterminated string", `{{ "abc }}`, "unterminated string", 1, 4},
		{"unexpected character", "{{ a @ b }}", "unexpected character '@'", 1, 6},
		{"unclosed verbatim", "{% verbatim %}abc", "unclosed verbatim", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.template, "broken.twig")
			if err == nil {
				t.Fatalf("expected an error")
			}
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *LexError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error message to contain %q, got: %v", tt.errMsg, err)
			}
			if lexErr.Line != tt.line || lexErr.Column != tt.column {
				t.Errorf("expected error at %d:%d, got %d:%d", tt.line, tt.column, lexErr.Line, lexErr.Column)
			}
			if lexErr.Name != "broken.twig" {
				t.Errorf("expected template name in error, got %q", lexErr.Name)
			}
		})
	}
}

func TestWhitespaceControlSigns(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected string
	}{
		{"dash trims both sides", "a \n {{- x -}} \n b", "TEXT:a EXPR_START:{{ IDENTIFIER:x EXPR_END:}} TEXT:b"},
		{"dash on one side", "a  {{- x }}  b", "TEXT:a EXPR_START:{{ IDENTIFIER:x EXPR_END:}} TEXT:  b"},
		{"tilde keeps newlines", "a \n {{~ x ~}} \n b", "TEXT:a \n EXPR_START:{{ IDENTIFIER:x EXPR_END:}} TEXT:\n b"},
		{"block tags", "a  {%- if x -%}  b  {%- endif %}", "TEXT:a TAG_START:{% IDENTIFIER:if IDENTIFIER:x TAG_END:%} TEXT:b TAG_START:{% IDENTIFIER:endif TAG_END:%}"},
		{"comments", "a  {#- c -#}  b", "TEXT:a TEXT:b"},
		{"minus operator is not a modifier", "{{ 1 - 2 }}", "EXPR_START:{{ NUMBER:1 OPERATOR:- NUMBER:2 EXPR_END:}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describe(tokenize(t, DefaultLexerConfig(), tt.template))
			if got != tt.expected {
				t.Errorf("tokens:\n got: %q\nwant: %q", got, tt.expected)
			}
		})
	}
}

func TestCustomDelimiters(t *testing.T) {
	config := DefaultLexerConfig()
	config.Delimiters = Delimiters{
		BlockStart: "<%", BlockEnd: "%>",
		VariableStart: "${", VariableEnd: "}",
		CommentStart: "<#", CommentEnd: "#>",
	}
	got := describe(tokenize(t, config, "{{ a }}<% if x %>${ y }<# c #>"))
	expected := "TEXT:{{ a }} TAG_START:<% IDENTIFIER:if IDENTIFIER:x TAG_END:%> EXPR_START:${ IDENTIFIER:y EXPR_END:}"
	if got != expected {
		t.Errorf("tokens:\n got: %q\nwant: %q", got, expected)
	}
}

func TestTokenStream(t *testing.T) {
	stream, err := Tokenize("{{ a }}", "t")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if stream.Peek().Type != TokenVariableStart || stream.PeekN(1).Value != "a" {
		t.Fatalf("unexpected lookahead %s %s", stream.Peek(), stream.PeekN(1))
	}
	if _, err := stream.Consume(TokenBlockStart); err == nil {
		t.Fatal("expected Consume to reject the wrong token type")
	}
	stream.Next()
	if !stream.SkipIf(TokenName, "a") {
		t.Fatal("expected SkipIf to consume the name")
	}
	if _, err := stream.ExpectNamed(TokenVariableEnd, "}}"); err != nil {
		t.Fatalf("ExpectNamed: %v", err)
	}
	if !stream.Eof() {
		t.Fatal("expected end of stream")
	}
	for i := 0; i < 3; i++ {
		if stream.Next().Type != TokenEOF {
			t.Fatal("reading past the end must keep returning EOF")
		}
	}
}
