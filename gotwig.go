// Package gotwig renders templates written in Twig syntax.
//
// The pipeline has three stages. Compile turns source text into an immutable
// Template. Resolve applies the extends chain, loading parents by name.
// Render evaluates the resolved template against a context. Each stage is
// usable on its own; Environment bundles them with a loader, a compile cache
// and the filter, function and test registries.
package gotwig

import (
	"github.com/deicod/gotwig/nodes"
	"github.com/deicod/gotwig/runtime"
)

// Version of the gotwig library
const Version = "0.2.0"

// Template is a compiled, not yet composed template.
type Template = runtime.Template

// ResolvedTemplate is a template with its extends chain applied.
type ResolvedTemplate = runtime.ResolvedTemplate

// Environment holds the loader, registries, cache and render options.
type Environment = runtime.Environment

// Option configures an Environment.
type Option = runtime.Option

// Loader maps template names to source.
type Loader = runtime.Loader

// Value is a runtime value seen by filters, functions and tests.
type Value = runtime.Value

// Arity is the accepted argument count of a filter, function or test.
type Arity = runtime.Arity

// Error is the error type returned by every stage.
type Error = runtime.Error

// ErrorType classifies an Error.
type ErrorType = runtime.ErrorType

// Sentinels for errors.Is.
var (
	ErrLex         = runtime.ErrLex
	ErrSyntax      = runtime.ErrSyntax
	ErrComposition = runtime.ErrComposition
	ErrLookup      = runtime.ErrLookup
	ErrType        = runtime.ErrType
	ErrNotFound    = runtime.ErrNotFound
)

// Re-exported options.
var (
	WithLoader          = runtime.WithLoader
	WithLogger          = runtime.WithLogger
	WithStrictVariables = runtime.WithStrictVariables
	WithMaxDepth        = runtime.WithMaxDepth
	WithTrimBlocks      = runtime.WithTrimBlocks
	WithLstripBlocks    = runtime.WithLstripBlocks
)

// NewEnvironment creates an environment with the built-in registries.
func NewEnvironment(opts ...Option) *Environment {
	return runtime.NewEnvironment(opts...)
}

// NewFileSystemLoader loads templates from the given directories.
func NewFileSystemLoader(dirs ...string) *runtime.FileSystemLoader {
	return runtime.NewFileSystemLoader(dirs...)
}

// NewMapLoader serves templates from memory.
func NewMapLoader(templates map[string]string) *runtime.MapLoader {
	return runtime.NewMapLoader(templates)
}

// Compile parses source into a Template. It fails with a lex or syntax error.
func Compile(name, source string) (*Template, error) {
	return runtime.Compile(name, source)
}

// Resolve applies the extends chain of t. Parents are read through loader,
// which may be nil for templates that do not extend anything.
func Resolve(t *Template, loader Loader) (*ResolvedTemplate, error) {
	if loader == nil {
		loader = runtime.NewMapLoader(nil)
	}
	return runtime.Resolve(t, loader)
}

// Render evaluates a resolved template with the built-in registries. Pass
// options to enable strict variables or to give includes a loader.
func Render(rt *ResolvedTemplate, data map[string]interface{}, opts ...Option) (string, error) {
	return runtime.NewEnvironment(opts...).Render(rt, runtime.MappingFromGo(data))
}

// RenderString compiles and renders a standalone template.
func RenderString(source string, data map[string]interface{}) (string, error) {
	return runtime.RenderString(source, data)
}

// RenderDir renders the named template from dir, resolving extends and
// include statements against the same directory.
func RenderDir(dir, name string, data map[string]interface{}, opts ...Option) (string, error) {
	opts = append([]Option{WithLoader(runtime.NewFileSystemLoader(dir))}, opts...)
	return runtime.NewEnvironment(opts...).RenderTemplate(name, data)
}

// Node is an AST node.
type Node = nodes.Node

// DumpAST returns an indented tree of the AST for debugging.
func DumpAST(node Node) string {
	return nodes.Dump(node)
}
