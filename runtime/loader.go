package runtime

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Loader maps a template name to its source. A miss returns an error
// matching ErrNotFound.
type Loader interface {
	Load(name string) ([]byte, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(name string) ([]byte, error)

func (f LoaderFunc) Load(name string) ([]byte, error) { return f(name) }

// FileSystemLoader loads templates from the file system
type FileSystemLoader struct {
	basePaths []string
	mu        sync.RWMutex
}

// NewFileSystemLoader creates a loader searching basePaths in order. When no
// paths are provided it defaults to the current working directory.
func NewFileSystemLoader(basePaths ...string) *FileSystemLoader {
	paths := filteredSearchPaths(basePaths)
	if len(paths) == 0 {
		paths = append(paths, ".")
	}
	return &FileSystemLoader{basePaths: paths}
}

// cleanName rejects absolute names and names that climb out of the search
// path with "..".
func cleanName(name string) (string, error) {
	if name == "" {
		return "", errors.New("template name cannot be empty")
	}
	slashed := filepath.ToSlash(name)
	if path.IsAbs(slashed) || filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute template name %q is not allowed", name)
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", fmt.Errorf("template name %q escapes the search path", name)
		}
	}
	return filepath.FromSlash(path.Clean(slashed)), nil
}

// Load reads name from the first search path that has it
func (l *FileSystemLoader) Load(name string) ([]byte, error) {
	rel, err := cleanName(name)
	if err != nil {
		return nil, NewTemplateNotFound(name, err.Error())
	}

	var tried []string
	for _, basePath := range l.SearchPath() {
		fullPath := filepath.Join(basePath, rel)
		tried = append(tried, fullPath)

		data, err := os.ReadFile(fullPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read template %q: %w", name, err)
		}
		return data, nil
	}
	return nil, NewTemplateNotFound(name, "searched "+strings.Join(tried, ", "))
}

// AddSearchPath appends a new search path to the loader. Empty paths are
// ignored.
func (l *FileSystemLoader) AddSearchPath(path string) {
	if path == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.basePaths = append(l.basePaths, path)
}

// SearchPath returns a copy of the configured search paths.
func (l *FileSystemLoader) SearchPath() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.basePaths...)
}

func filteredSearchPaths(paths []string) []string {
	filtered := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// MapLoader loads templates from a map
type MapLoader struct {
	templates map[string]string
	mu        sync.RWMutex
}

// NewMapLoader creates a new map loader. The map is copied.
func NewMapLoader(templates map[string]string) *MapLoader {
	l := &MapLoader{templates: make(map[string]string, len(templates))}
	for name, src := range templates {
		l.templates[name] = src
	}
	return l
}

// Load loads a template from the map
func (l *MapLoader) Load(name string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src, ok := l.templates[name]
	if !ok {
		return nil, NewTemplateNotFound(name, "")
	}
	return []byte(src), nil
}

// Set adds or replaces a template.
func (l *MapLoader) Set(name, source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[name] = source
}

// ChainLoader asks each loader in turn; the first hit wins. Errors other
// than misses stop the search.
type ChainLoader struct {
	loaders []Loader
}

func NewChainLoader(loaders ...Loader) *ChainLoader {
	return &ChainLoader{loaders: loaders}
}

func (c *ChainLoader) Load(name string) ([]byte, error) {
	for _, l := range c.loaders {
		src, err := l.Load(name)
		if err == nil {
			return src, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, NewTemplateNotFound(name, fmt.Sprintf("no match in %d loaders", len(c.loaders)))
}
