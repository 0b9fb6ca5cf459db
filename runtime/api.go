package runtime

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// RenderString renders a standalone template source with the built-ins and
// no loader.
func RenderString(source string, data map[string]interface{}) (string, error) {
	return NewEnvironment().RenderString("template", source, data)
}

// BatchRenderer renders a fixed set of in-memory templates, one at a time or
// concurrently.
type BatchRenderer struct {
	env    *Environment
	loader *MapLoader
	mu     sync.RWMutex
	names  []string
}

// NewBatchRenderer creates a batch renderer. Options are applied to its
// environment. Templates added to the batch take precedence; names it does
// not hold fall through to a loader passed with WithLoader.
func NewBatchRenderer(opts ...Option) *BatchRenderer {
	loader := NewMapLoader(nil)
	env := NewEnvironment(opts...)
	if fallback := env.Loader(); fallback != nil {
		env.SetLoader(NewChainLoader(loader, fallback))
	} else {
		env.SetLoader(loader)
	}
	return &BatchRenderer{env: env, loader: loader}
}

// AddTemplate compiles source and stores it under name. Templates may extend
// and include each other in any order of addition.
func (br *BatchRenderer) AddTemplate(name, source string) error {
	if _, err := br.env.Compile(name, source); err != nil {
		return err
	}
	br.mu.Lock()
	defer br.mu.Unlock()
	if _, err := br.loader.Load(name); err != nil {
		br.names = append(br.names, name)
	}
	br.loader.Set(name, source)
	return nil
}

// Environment returns the environment used for rendering.
func (br *BatchRenderer) Environment() *Environment { return br.env }

// Names returns the template names in the order they were added.
func (br *BatchRenderer) Names() []string {
	br.mu.RLock()
	defer br.mu.RUnlock()
	return append([]string(nil), br.names...)
}

// Size returns the number of templates.
func (br *BatchRenderer) Size() int {
	br.mu.RLock()
	defer br.mu.RUnlock()
	return len(br.names)
}

// Render renders one template.
func (br *BatchRenderer) Render(name string, data map[string]interface{}) (string, error) {
	return br.env.RenderTemplate(name, data)
}

// RenderAll renders every name with the same data concurrently, at most
// limit at a time (no limit when limit <= 0). Results are in input order. The
// first failure cancels the remaining renders.
func (br *BatchRenderer) RenderAll(ctx context.Context, names []string, data map[string]interface{}, limit int) ([]string, error) {
	out := make([]string, len(names))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, err := br.Render(name, data)
			if err != nil {
				return fmt.Errorf("render %s: %w", name, err)
			}
			out[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
