package lexer

import (
	"regexp"
	"sort"
)

// Precompiled regular expressions for tokenizing
var (
	// Number literals: integers, decimals and exponents. A dot must be
	// followed by a digit so that `1..5` lexes as a range.
	NumberRegex = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)?(?:[eE][+\-]?[0-9]+)?`)

	// Identifier/names
	NameRegex = regexp.MustCompile(`^[a-zA-Z_\x{80}-\x{10FFFF}][a-zA-Z0-9_\x{80}-\x{10FFFF}]*`)

	// Operators (sorted by length for correct matching)
	OperatorPatterns = sortByLength([]string{
		"==", "!=", "<=", ">=", "//", "**", "..", "??",
		"+", "-", "*", "/", "%", "~", "<", ">", "=",
	})

	// Punctuation
	PunctPatterns = []string{"(", ")", "[", "]", "{", "}", ",", ":", ".", "|", "?"}
)

func sortByLength(ops []string) []string {
	sort.SliceStable(ops, func(i, j int) bool { return len(ops[i]) > len(ops[j]) })
	return ops
}

// Delimiters holds the opening and closing markers for the three embedded syntaxes.
type Delimiters struct {
	BlockStart    string
	BlockEnd      string
	VariableStart string
	VariableEnd   string
	CommentStart  string
	CommentEnd    string
}

func DefaultDelimiters() Delimiters {
	return Delimiters{
		BlockStart:    "{%",
		BlockEnd:      "%}",
		VariableStart: "{{",
		VariableEnd:   "}}",
		CommentStart:  "{#",
		CommentEnd:    "#}",
	}
}
