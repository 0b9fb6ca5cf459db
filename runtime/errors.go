package runtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
	"github.com/deicod/gotwig/parser"
)

// ErrorType classifies engine errors.
type ErrorType string

const (
	ErrorTypeLex         ErrorType = "lex_error"
	ErrorTypeSyntax      ErrorType = "syntax_error"
	ErrorTypeComposition ErrorType = "composition_error"
	ErrorTypeLookup      ErrorType = "lookup_error"
	ErrorTypeType        ErrorType = "type_error"
	ErrorTypeNotFound    ErrorType = "not_found"
)

// kindError is a sentinel matched by errors.Is against any *Error of the same type.
type kindError struct {
	typ ErrorType
}

func (k *kindError) Error() string { return string(k.typ) }

var (
	ErrLex         error = &kindError{ErrorTypeLex}
	ErrSyntax      error = &kindError{ErrorTypeSyntax}
	ErrComposition error = &kindError{ErrorTypeComposition}
	ErrLookup      error = &kindError{ErrorTypeLookup}
	ErrType        error = &kindError{ErrorTypeType}
	ErrNotFound    error = &kindError{ErrorTypeNotFound}
)

// Error represents an engine error with position information
type Error struct {
	Type     ErrorType
	Message  string
	Template string
	Position nodes.Position
	Cause    error
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Template != "" {
		fmt.Fprintf(&b, " in %q", e.Template)
	}
	if e.Position.Line > 0 {
		fmt.Fprintf(&b, " at line %d, column %d", e.Position.Line, e.Position.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the package sentinels (ErrLookup, ErrType, ...).
func (e *Error) Is(target error) bool {
	k, ok := target.(*kindError)
	return ok && k.typ == e.Type
}

// NewError creates a new engine error
func NewError(errorType ErrorType, message string, position nodes.Position) *Error {
	return &Error{
		Type:     errorType,
		Message:  message,
		Position: position,
	}
}

// NewErrorWithCause creates a new engine error with an underlying cause
func NewErrorWithCause(errorType ErrorType, message string, position nodes.Position, cause error) *Error {
	return &Error{
		Type:     errorType,
		Message:  message,
		Position: position,
		Cause:    cause,
	}
}

// NotFoundError is returned by loaders when no source exists for a name.
type NotFoundError struct {
	Name   string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("template %q not found: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("template %q not found", e.Name)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewTemplateNotFound creates a loader miss for name.
func NewTemplateNotFound(name, reason string) *NotFoundError {
	return &NotFoundError{Name: name, Reason: reason}
}

// IsNotFound reports whether err is a loader miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// wrapParseError converts lexer and parser failures into *Error.
func wrapParseError(err error, name string) error {
	var lexErr *lexer.LexError
	if errors.As(err, &lexErr) {
		return &Error{
			Type:     ErrorTypeLex,
			Message:  lexErr.Message,
			Template: name,
			Position: nodes.NewPosition(lexErr.Line, lexErr.Column),
			Cause:    err,
		}
	}
	var synErr *parser.SyntaxError
	if errors.As(err, &synErr) {
		return &Error{
			Type:     ErrorTypeSyntax,
			Message:  synErr.Message,
			Template: name,
			Position: nodes.NewPosition(synErr.Line, synErr.Column),
			Cause:    err,
		}
	}
	return err
}
