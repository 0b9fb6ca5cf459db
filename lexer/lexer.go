package lexer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// LexError represents a lexing error: a delimiter that is never closed, an
// unterminated string, or a character that cannot start a token.
type LexError struct {
	Message string
	Name    string
	Line    int
	Column  int
	Pos     int
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%s at line %d, column %d", e.Message, e.Line, e.Column)
}

// LexerConfig holds configuration for the lexer
type LexerConfig struct {
	Delimiters Delimiters
	// TrimBlocks removes the first newline after a tag or comment.
	TrimBlocks bool
	// LstripBlocks strips spaces and tabs from the start of a line up to a tag or comment.
	LstripBlocks bool
}

func DefaultLexerConfig() LexerConfig {
	return LexerConfig{
		Delimiters:   DefaultDelimiters(),
		TrimBlocks:   false,
		LstripBlocks: false,
	}
}

// Lexer converts template source into a token stream. A Lexer holds no
// per-source state and can be shared between goroutines.
type Lexer struct {
	config      LexerConfig
	verbatimEnd *regexp.Regexp
}

// NewLexer creates a new lexer with the given configuration
func NewLexer(config LexerConfig) *Lexer {
	d := config.Delimiters
	if d.BlockStart == "" {
		config.Delimiters = DefaultDelimiters()
		d = config.Delimiters
	}
	return &Lexer{
		config: config,
		verbatimEnd: regexp.MustCompile(regexp.QuoteMeta(d.BlockStart) +
			`([-~]?)\s*endverbatim\s*([-~]?)` + regexp.QuoteMeta(d.BlockEnd)),
	}
}

// Tokenize lexes source with the default configuration.
func Tokenize(source, name string) (*TokenStream, error) {
	return NewLexer(DefaultLexerConfig()).Tokenize(source, name)
}

// Tokenize converts template source into tokens. Text outside delimiters is
// emitted verbatim unless whitespace control modifiers apply.
func (l *Lexer) Tokenize(source, name string) (*TokenStream, error) {
	s := &scanner{
		config:      l.config,
		verbatimEnd: l.verbatimEnd,
		src:         source,
		name:        name,
		lineStarts:  lineStarts(source),
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	return NewTokenStream(s.tokens), nil
}

type bracket struct {
	char byte
	pos  int
}

type scanner struct {
	config      LexerConfig
	verbatimEnd *regexp.Regexp
	src         string
	name        string
	pos         int
	lineStarts  []int
	tokens      []Token
	brackets    []bracket
	// trimNext is the modifier of the last closing delimiter, applied to the
	// following text run.
	trimNext byte
}

func lineStarts(src string) []int {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// locate converts a byte offset into a 1-based line and rune column.
func (s *scanner) locate(offset int) (int, int) {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	col := utf8.RuneCountInString(s.src[s.lineStarts[line]:offset]) + 1
	return line + 1, col
}

func (s *scanner) emit(tt TokenType, value string, offset int) {
	line, col := s.locate(offset)
	s.tokens = append(s.tokens, Token{Type: tt, Value: value, Line: line, Column: col, Position: offset})
}

func (s *scanner) fail(offset int, format string, args ...interface{}) error {
	line, col := s.locate(offset)
	return &LexError{Message: fmt.Sprintf(format, args...), Name: s.name, Line: line, Column: col, Pos: offset}
}

// nextOpener finds the earliest opening delimiter at or after from.
func (s *scanner) nextOpener(from int) (int, string) {
	d := s.config.Delimiters
	best, kind := -1, ""
	for _, open := range []string{d.VariableStart, d.BlockStart, d.CommentStart} {
		if idx := strings.Index(s.src[from:], open); idx >= 0 && (best < 0 || from+idx < best) {
			best, kind = from+idx, open
		}
	}
	return best, kind
}

func (s *scanner) run() error {
	d := s.config.Delimiters
	for s.pos < len(s.src) {
		start, open := s.nextOpener(s.pos)
		if start < 0 {
			s.emitText(s.pos, s.src[s.pos:], 0, false)
			s.pos = len(s.src)
			break
		}

		modifier := byte(0)
		if after := start + len(open); after < len(s.src) && (s.src[after] == '-' || s.src[after] == '~') {
			modifier = s.src[after]
		}
		s.emitText(s.pos, s.src[s.pos:start], modifier, open != d.VariableStart)

		inner := start + len(open)
		if modifier != 0 {
			inner++
		}

		var err error
		switch open {
		case d.CommentStart:
			err = s.comment(start, inner)
		case d.VariableStart:
			s.emit(TokenVariableStart, open, start)
			err = s.expression(start, inner, d.VariableEnd, TokenVariableEnd)
		case d.BlockStart:
			if s.isVerbatim(inner) {
				err = s.verbatim(start, inner)
			} else {
				s.emit(TokenBlockStart, open, start)
				err = s.expression(start, inner, d.BlockEnd, TokenBlockEnd)
				if err == nil {
					s.afterTag()
				}
			}
		}
		if err != nil {
			return err
		}
	}
	s.emit(TokenEOF, "", len(s.src))
	return nil
}

// emitText emits a text run after applying whitespace control from the
// surrounding delimiters.
func (s *scanner) emitText(offset int, text string, nextModifier byte, beforeTag bool) {
	switch s.trimNext {
	case '-':
		trimmed := strings.TrimLeft(text, " \t\r\n\v\f")
		offset += len(text) - len(trimmed)
		text = trimmed
	case '~':
		trimmed := strings.TrimLeft(text, " \t\x00\v")
		offset += len(text) - len(trimmed)
		text = trimmed
	}
	s.trimNext = 0

	switch nextModifier {
	case '-':
		text = strings.TrimRight(text, " \t\r\n\v\f")
	case '~':
		text = strings.TrimRight(text, " \t\x00\v")
	default:
		if beforeTag && s.config.LstripBlocks {
			lastNL := strings.LastIndexByte(text, '\n')
			if strings.TrimLeft(text[lastNL+1:], " \t") == "" && (lastNL >= 0 || offset == 0 || s.endsLine(offset)) {
				text = text[:lastNL+1]
			}
		}
	}
	if text != "" {
		s.emit(TokenText, text, offset)
	}
}

// endsLine reports whether the byte before offset is a newline.
func (s *scanner) endsLine(offset int) bool {
	return offset > 0 && s.src[offset-1] == '\n'
}

// afterTag drops the newline following a tag when TrimBlocks is enabled.
func (s *scanner) afterTag() {
	if !s.config.TrimBlocks || s.trimNext != 0 {
		return
	}
	if strings.HasPrefix(s.src[s.pos:], "\r\n") {
		s.pos += 2
	} else if strings.HasPrefix(s.src[s.pos:], "\n") {
		s.pos++
	}
}

func (s *scanner) comment(start, inner int) error {
	end := s.config.Delimiters.CommentEnd
	idx := strings.Index(s.src[inner:], end)
	if idx < 0 {
		return s.fail(start, "unclosed comment, missing %q", end)
	}
	closeAt := inner + idx
	if closeAt > inner {
		if c := s.src[closeAt-1]; c == '-' || c == '~' {
			s.trimNext = c
		}
	}
	s.pos = closeAt + len(end)
	s.afterTag()
	return nil
}

func (s *scanner) isVerbatim(inner int) bool {
	rest := strings.TrimLeft(s.src[inner:], " \t\r\n")
	if !strings.HasPrefix(rest, "verbatim") {
		return false
	}
	rest = strings.TrimLeft(rest[len("verbatim"):], " \t\r\n-~")
	return strings.HasPrefix(rest, s.config.Delimiters.BlockEnd)
}

// verbatim emits the body of a verbatim block as a single text token.
func (s *scanner) verbatim(start, inner int) error {
	end := s.config.Delimiters.BlockEnd
	openEnd := inner + strings.Index(s.src[inner:], end)
	if c := s.src[openEnd-1]; c == '-' || c == '~' {
		s.trimNext = c
	}
	bodyStart := openEnd + len(end)
	s.pos = bodyStart
	s.afterTag()
	bodyStart = s.pos

	loc := s.verbatimEnd.FindStringSubmatchIndex(s.src[bodyStart:])
	if loc == nil {
		return s.fail(start, "unclosed verbatim block, missing endverbatim")
	}
	var openMod byte
	if loc[3] > loc[2] {
		openMod = s.src[bodyStart+loc[2]]
	}
	s.emitText(bodyStart, s.src[bodyStart:bodyStart+loc[0]], openMod, true)
	if loc[5] > loc[4] {
		s.trimNext = s.src[bodyStart+loc[4]]
	}
	s.pos = bodyStart + loc[1]
	s.afterTag()
	return nil
}

// expression lexes the tokens between an opening delimiter and its closer.
func (s *scanner) expression(start, inner int, closer string, closeType TokenType) error {
	s.pos = inner
	s.brackets = s.brackets[:0]
	for {
		s.skipSpace()
		if s.pos >= len(s.src) {
			return s.fail(start, "unclosed construct, missing %q", closer)
		}
		// Inside an open brace "}}" may close a hash literal, everywhere
		// else the closer wins and the parser reports unbalanced brackets.
		if n := len(s.brackets); n == 0 || s.brackets[n-1].char != '{' {
			if s.tryClose(closer, closeType) {
				return nil
			}
		}
		if err := s.token(); err != nil {
			return err
		}
	}
}

func (s *scanner) tryClose(closer string, closeType TokenType) bool {
	rest := s.src[s.pos:]
	var mod byte
	if len(rest) > 0 && (rest[0] == '-' || rest[0] == '~') && strings.HasPrefix(rest[1:], closer) {
		mod = rest[0]
		rest = rest[1:]
	}
	if !strings.HasPrefix(rest, closer) {
		return false
	}
	offset := s.pos
	if mod != 0 {
		offset++
	}
	s.emit(closeType, closer, offset)
	s.trimNext = mod
	s.pos = offset + len(closer)
	return true
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		switch s.src[s.pos] {
		case ' ', '\t', '\r', '\n', '\v', '\f':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) token() error {
	rest := s.src[s.pos:]
	c := rest[0]

	switch {
	case c == '"' || c == '\'':
		return s.str(c)
	case c >= '0' && c <= '9':
		m := NumberRegex.FindString(rest)
		s.emit(TokenNumber, m, s.pos)
		s.pos += len(m)
		return nil
	}

	if m := NameRegex.FindString(rest); m != "" {
		s.emit(TokenName, m, s.pos)
		s.pos += len(m)
		return nil
	}

	for _, op := range OperatorPatterns {
		if strings.HasPrefix(rest, op) {
			s.emit(TokenOperator, op, s.pos)
			s.pos += len(op)
			return nil
		}
	}

	for _, p := range PunctPatterns {
		if !strings.HasPrefix(rest, p) {
			continue
		}
		switch p {
		case "(", "[", "{":
			s.brackets = append(s.brackets, bracket{char: p[0], pos: s.pos})
		case ")", "]", "}":
			if n := len(s.brackets); n > 0 && closingFor(s.brackets[n-1].char) == p[0] {
				s.brackets = s.brackets[:n-1]
			}
		}
		s.emit(TokenPunct, p, s.pos)
		s.pos += len(p)
		return nil
	}

	r, _ := utf8.DecodeRuneInString(rest)
	return s.fail(s.pos, "unexpected character %q", r)
}

func closingFor(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

// str lexes a quoted string literal, resolving backslash escapes.
func (s *scanner) str(quote byte) error {
	start := s.pos
	var b strings.Builder
	i := s.pos + 1
	for i < len(s.src) {
		c := s.src[i]
		switch {
		case c == quote:
			s.emit(TokenString, b.String(), start)
			s.pos = i + 1
			return nil
		case c == '\\' && i+1 < len(s.src):
			b.WriteString(unescape(s.src[i+1]))
			i += 2
		default:
			b.WriteByte(c)
			i++
		}
	}
	return s.fail(start, "unterminated string")
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '"', '\'':
		return string(c)
	}
	return "\\" + string(c)
}
