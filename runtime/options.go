package runtime

import "log/slog"

// Option configures an Environment.
type Option func(*Environment)

func WithLoader(loader Loader) Option {
	return func(env *Environment) {
		env.loader = loader
	}
}

// WithLogger sets the logger receiving debug records for compiles, resolves
// and renders.
func WithLogger(logger *slog.Logger) Option {
	return func(env *Environment) {
		if logger != nil {
			env.logger = logger
		}
	}
}

// WithStrictVariables makes undefined variables and missing attributes fail
// the render with a LookupError.
func WithStrictVariables(strict bool) Option {
	return func(env *Environment) {
		env.strict = strict
	}
}

// WithMaxDepth bounds parser nesting, evaluation depth and include nesting.
func WithMaxDepth(depth int) Option {
	return func(env *Environment) {
		if depth > 0 {
			env.maxDepth = depth
		}
	}
}

// WithTrimBlocks removes the first newline after a block tag.
func WithTrimBlocks(trim bool) Option {
	return func(env *Environment) {
		env.trimBlocks = trim
	}
}

// WithLstripBlocks strips whitespace before a block tag at the start of a line.
func WithLstripBlocks(strip bool) Option {
	return func(env *Environment) {
		env.lstripBlocks = strip
	}
}

// WithCacheSize sets the number of compiled templates kept in memory.
func WithCacheSize(size int) Option {
	return func(env *Environment) {
		env.cache = NewCompileCache(size)
	}
}

// WithCache shares a compile cache between environments.
func WithCache(cache *CompileCache) Option {
	return func(env *Environment) {
		if cache != nil {
			env.cache = cache
		}
	}
}
