package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize is the number of compiled templates kept by default.
const DefaultCacheSize = 400

// CacheStats counts cache activity.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Compiles  uint64
	Evictions uint64
}

// CompileCache holds compiled templates keyed by name and source hash.
// Concurrent first requests for one key compile once; readers of cached
// entries only take a read lock.
type CompileCache struct {
	mu      sync.RWMutex
	entries map[string]*Template
	// order records insertion order for eviction.
	order   []string
	maxSize int
	group   singleflight.Group

	hits, misses, compiles, evictions atomic.Uint64
}

// NewCompileCache creates a cache holding at most maxSize templates. A
// non-positive size selects DefaultCacheSize.
func NewCompileCache(maxSize int) *CompileCache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &CompileCache{
		entries: make(map[string]*Template),
		maxSize: maxSize,
	}
}

// CacheKey identifies a template by name and the sha256 of its source.
func CacheKey(name, source string) string {
	sum := sha256.Sum256([]byte(source))
	return name + "\x00" + hex.EncodeToString(sum[:])
}

// Get returns the cached template for key.
func (c *CompileCache) Get(key string) (*Template, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.entries[key]
	return t, ok
}

// GetOrCompile returns the cached template for name and source, calling
// compile at most once per key among concurrent callers. Failed compiles are
// not cached. The second result reports a cache hit.
func (c *CompileCache) GetOrCompile(name, source string, compile func() (*Template, error)) (*Template, bool, error) {
	return c.GetOrCompileKey(CacheKey(name, source), compile)
}

// GetOrCompileKey is GetOrCompile with a caller-built key. Callers whose
// compile output depends on more than the source fold that into the key.
func (c *CompileCache) GetOrCompileKey(key string, compile func() (*Template, error)) (*Template, bool, error) {
	if t, ok := c.Get(key); ok {
		c.hits.Add(1)
		return t, true, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if t, ok := c.Get(key); ok {
			return t, nil
		}
		t, err := compile()
		if err != nil {
			return nil, err
		}
		c.compiles.Add(1)
		c.put(key, t)
		return t, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Template), false, nil
}

func (c *CompileCache) put(key string, t *Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		c.entries[key] = t
		return
	}
	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.evictions.Add(1)
	}
	c.entries[key] = t
	c.order = append(c.order, key)
}

// Len returns the number of cached templates.
func (c *CompileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries
func (c *CompileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Template)
	c.order = nil
}

// Stats returns a snapshot of the counters.
func (c *CompileCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Compiles:  c.compiles.Load(),
		Evictions: c.evictions.Load(),
	}
}
