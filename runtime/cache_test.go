package runtime

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCompileCacheCompilesOnce(t *testing.T) {
	cache := NewCompileCache(10)
	var calls atomic.Int32
	compile := func() (*Template, error) {
		calls.Add(1)
		return Compile("page", "{{ x }}")
	}

	var wg sync.WaitGroup
	results := make([]*Template, 50)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tmpl, _, err := cache.GetOrCompile("page", "{{ x }}", compile)
			if err != nil {
				t.Errorf("compile: %v", err)
			}
			results[i] = tmpl
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one compile, got %d", calls.Load())
	}
	for i, tmpl := range results {
		if tmpl != results[0] {
			t.Fatalf("result %d is a different template", i)
		}
	}
	stats := cache.Stats()
	if stats.Compiles != 1 || stats.Hits+stats.Misses != 50 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestCompileCacheKeyIncludesSource(t *testing.T) {
	if CacheKey("a", "x") == CacheKey("a", "y") || CacheKey("a", "x") == CacheKey("b", "x") {
		t.Fatal("cache keys must depend on name and source")
	}

	env := NewEnvironment()
	first, err := env.RenderString("t", "one", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := env.RenderString("t", "two", nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if first != "one" || second != "two" {
		t.Fatalf("stale cache entry: %q, %q", first, second)
	}
}

func TestCompileCacheEviction(t *testing.T) {
	cache := NewCompileCache(2)
	for _, name := range []string{"a", "b", "c"} {
		if _, _, err := cache.GetOrCompile(name, name, func() (*Template, error) { return Compile(name, name) }); err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
	}
	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", cache.Len())
	}
	if _, ok := cache.Get(CacheKey("a", "a")); ok {
		t.Fatal("expected the oldest entry to be evicted")
	}
	if cache.Stats().Evictions != 1 {
		t.Fatalf("expected one eviction, got %d", cache.Stats().Evictions)
	}

	cache.Clear()
	if cache.Len() != 0 {
		t.Fatal("expected an empty cache after Clear")
	}
}

func TestCompileCacheSkipsFailures(t *testing.T) {
	cache := NewCompileCache(0)
	_, _, err := cache.GetOrCompile("bad", "{% if %}", func() (*Template, error) { return Compile("bad", "{% if %}") })
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if cache.Len() != 0 {
		t.Fatal("failed compiles must not be cached")
	}
}

func TestEnvironmentSharesCache(t *testing.T) {
	shared := NewCompileCache(10)
	a := NewEnvironment(WithCache(shared))
	b := NewEnvironment(WithCache(shared))
	if _, err := a.Compile("t", "x"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := b.Compile("t", "x"); err != nil {
		t.Fatalf("compile: %v", err)
	}
	if stats := b.CacheStats(); stats.Compiles != 1 || stats.Hits != 1 {
		t.Fatalf("expected the second environment to hit the shared cache, got %+v", stats)
	}
	b.ClearCache()
	if shared.Len() != 0 {
		t.Fatal("ClearCache did not clear the shared cache")
	}
}

func TestSharedCacheSeparatesParserSettings(t *testing.T) {
	shared := NewCompileCache(10)
	plain := NewEnvironment(WithCache(shared))
	trimmed := NewEnvironment(WithCache(shared), WithTrimBlocks(true))
	source := "{% if true %}\nx{% endif %}"

	for i := 0; i < 2; i++ {
		got, err := plain.RenderString("t", source, nil)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != "\nx" {
			t.Fatalf("default environment: expected %q, got %q", "\nx", got)
		}
		got, err = trimmed.RenderString("t", source, nil)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != "x" {
			t.Fatalf("trimming environment: expected %q, got %q", "x", got)
		}
	}
	if stats := shared.Stats(); stats.Compiles != 2 {
		t.Fatalf("expected one compile per parser setting, got %+v", stats)
	}
}
