package runtime

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deicod/gotwig/parser"
)

// Environment ties together a loader, the filter, function and test
// registries, a compile cache and the render options. It is safe for
// concurrent use.
type Environment struct {
	// Template loading
	loader       Loader
	trimBlocks   bool
	lstripBlocks bool

	// Rendering
	strict   bool
	maxDepth int
	logger   *slog.Logger

	// Built-ins
	filters   *FilterRegistry
	functions *FunctionRegistry
	tests     *TestRegistry

	cache *CompileCache
	mu    sync.RWMutex
}

// NewEnvironment creates an environment with the built-in filters, functions
// and tests registered.
func NewEnvironment(opts ...Option) *Environment {
	env := &Environment{
		maxDepth:  parser.DefaultMaxDepth,
		logger:    slog.New(slog.DiscardHandler),
		filters:   DefaultFilters(),
		functions: DefaultFunctions(),
		tests:     DefaultTests(),
	}
	for _, opt := range opts {
		opt(env)
	}
	if env.cache == nil {
		env.cache = NewCompileCache(DefaultCacheSize)
	}
	return env
}

// SetLoader sets the template loader
func (env *Environment) SetLoader(loader Loader) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.loader = loader
}

// Loader returns the configured loader, or nil.
func (env *Environment) Loader() Loader {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return env.loader
}

// SetStrictVariables toggles strict variable lookups for later renders.
func (env *Environment) SetStrictVariables(strict bool) {
	env.mu.Lock()
	defer env.mu.Unlock()
	env.strict = strict
}

// AddFilter registers or overrides a filter.
func (env *Environment) AddFilter(name string, arity Arity, filter FilterFunc) error {
	return env.filters.Replace(name, arity, filter)
}

// AddFunction registers or overrides a function.
func (env *Environment) AddFunction(name string, arity Arity, fn FunctionFunc) error {
	return env.functions.Replace(name, arity, fn)
}

// AddTest registers or overrides a test. Two-word tests are written with a
// single space, as in "divisible by".
func (env *Environment) AddTest(name string, arity Arity, test TestFunc) error {
	return env.tests.Replace(name, arity, test)
}

func (env *Environment) Filters() *FilterRegistry     { return env.filters }
func (env *Environment) Functions() *FunctionRegistry { return env.functions }
func (env *Environment) Tests() *TestRegistry         { return env.tests }

func (env *Environment) parserConfig() *parser.Environment {
	return &parser.Environment{
		TrimBlocks:   env.trimBlocks,
		LstripBlocks: env.lstripBlocks,
		MaxDepth:     env.maxDepth,
	}
}

// cacheKey extends CacheKey with the parser settings, so environments with
// different whitespace or depth options can share one cache.
func (env *Environment) cacheKey(name, source string) string {
	return fmt.Sprintf("%s\x00%t\x00%t\x00%d", CacheKey(name, source), env.trimBlocks, env.lstripBlocks, env.maxDepth)
}

// Compile parses source, reusing the cached result for identical name,
// source and parser settings.
func (env *Environment) Compile(name, source string) (*Template, error) {
	t, hit, err := env.cache.GetOrCompileKey(env.cacheKey(name, source), func() (*Template, error) {
		return compileWith(env.parserConfig(), name, source)
	})
	if err != nil {
		env.logger.Debug("compile failed", "template", name, "error", err)
		return nil, err
	}
	env.logger.Debug("compiled template", "template", name, "cache_hit", hit)
	return t, nil
}

// Load reads name through the loader and compiles it.
func (env *Environment) Load(name string) (*Template, error) {
	loader := env.Loader()
	if loader == nil {
		return nil, NewTemplateNotFound(name, "no loader configured")
	}
	src, err := loader.Load(name)
	if err != nil {
		return nil, err
	}
	return env.Compile(name, string(src))
}

// Resolve applies the extends chain of t, loading parents through the loader.
func (env *Environment) Resolve(t *Template) (*ResolvedTemplate, error) {
	rt, err := resolve(t, env.Load)
	if err != nil {
		return nil, err
	}
	env.logger.Debug("resolved template", "template", t.Name(), "chain", strings.Join(rt.chain, " -> "))
	return rt, nil
}

// Include loads and resolves a template for an include statement.
func (env *Environment) Include(name string) (*ResolvedTemplate, error) {
	t, err := env.Load(name)
	if err != nil {
		return nil, err
	}
	return env.Resolve(t)
}

// Evaluator returns an evaluator bound to this environment's registries,
// loader and options.
func (env *Environment) Evaluator() *Evaluator {
	env.mu.RLock()
	defer env.mu.RUnlock()
	return &Evaluator{
		Functions: env.functions,
		Filters:   env.filters,
		Tests:     env.tests,
		Includer:  env,
		Strict:    env.strict,
		MaxDepth:  env.maxDepth,
	}
}

// Render evaluates a resolved template against ctx.
func (env *Environment) Render(rt *ResolvedTemplate, ctx *Mapping) (string, error) {
	if rt == nil {
		return "", errors.New("cannot render a nil template")
	}
	renderID := uuid.NewString()
	start := time.Now()
	out, err := env.Evaluator().Render(rt, ctx)
	if err != nil {
		env.logger.Debug("render failed", "render_id", renderID, "template", rt.Name(), "error", err)
		return "", err
	}
	env.logger.Debug("rendered template",
		"render_id", renderID,
		"template", rt.Name(),
		"bytes", len(out),
		"duration", time.Since(start),
	)
	return out, nil
}

// RenderTemplate loads, resolves and renders the named template.
func (env *Environment) RenderTemplate(name string, data map[string]interface{}) (string, error) {
	t, err := env.Load(name)
	if err != nil {
		return "", err
	}
	return env.renderCompiled(t, data)
}

// RenderString compiles source under name and renders it. Extends and
// include statements go through the loader.
func (env *Environment) RenderString(name, source string, data map[string]interface{}) (string, error) {
	t, err := env.Compile(name, source)
	if err != nil {
		return "", err
	}
	return env.renderCompiled(t, data)
}

// RenderTo renders the named template and writes it to w. Nothing is
// written when rendering fails.
func (env *Environment) RenderTo(w io.Writer, name string, data map[string]interface{}) error {
	out, err := env.RenderTemplate(name, data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (env *Environment) renderCompiled(t *Template, data map[string]interface{}) (string, error) {
	rt, err := env.Resolve(t)
	if err != nil {
		return "", err
	}
	return env.Render(rt, MappingFromGo(data))
}

// ClearCache drops all compiled templates.
func (env *Environment) ClearCache() {
	env.cache.Clear()
}

// CacheStats reports compile cache activity.
func (env *Environment) CacheStats() CacheStats {
	return env.cache.Stats()
}
