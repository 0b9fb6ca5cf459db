// Package snapshot compares rendered output with golden files under a
// testdata directory. Set UPDATE_SNAPSHOTS=1 to rewrite the golden files
// from the current output.
package snapshot

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// UpdateEnv is the environment variable that switches on update mode.
const UpdateEnv = "UPDATE_SNAPSHOTS"

// Manager checks named outputs against "<dir>/<name>.snapshot" files.
type Manager struct {
	dir     string
	update  bool
	mu      sync.Mutex
	results map[string]Result
}

// Result records the outcome of one assertion.
type Result struct {
	Name    string
	Hash    string
	Passed  bool
	Updated bool
}

// New creates a manager whose update mode follows UPDATE_SNAPSHOTS.
func New(dir string) *Manager {
	v := os.Getenv(UpdateEnv)
	return NewManager(dir, v != "" && v != "0" && v != "false")
}

func NewManager(dir string, update bool) *Manager {
	return &Manager{
		dir:     dir,
		update:  update,
		results: make(map[string]Result),
	}
}

// Path returns the golden file for name.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name+".snapshot")
}

// Assert compares actual with the golden file for name. In update mode a
// missing or different golden file is rewritten and the assertion passes.
func (m *Manager) Assert(name, actual string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.Path(name)
	result := Result{Name: name, Hash: Hash(actual)}

	data, err := os.ReadFile(path)
	switch {
	case err == nil && Hash(string(data)) == result.Hash:
		result.Passed = true
	case err != nil && !os.IsNotExist(err):
		return fmt.Errorf("read snapshot %s: %w", path, err)
	case m.update:
		if err := m.save(path, actual); err != nil {
			return err
		}
		result.Passed, result.Updated = true, true
	case err != nil:
		m.results[name] = result
		return fmt.Errorf("snapshot does not exist: %s (set %s=1 to create it)", path, UpdateEnv)
	default:
		m.results[name] = result
		return fmt.Errorf("snapshot mismatch for %s:\n%s", name, Diff(string(data), actual))
	}
	m.results[name] = result
	return nil
}

func (m *Manager) save(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

// Results returns the recorded outcomes sorted by name.
func (m *Manager) Results() []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Result, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Hash returns a short content hash.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)[:16]
}

// Diff lists the lines that differ between expected and actual.
func Diff(expected, actual string) string {
	want := strings.Split(expected, "\n")
	got := strings.Split(actual, "\n")

	var b strings.Builder
	for i := range max(len(want), len(got)) {
		var w, g string
		if i < len(want) {
			w = want[i]
		}
		if i < len(got) {
			g = got[i]
		}
		if w == g {
			continue
		}
		fmt.Fprintf(&b, "line %d:\n", i+1)
		if i < len(want) {
			fmt.Fprintf(&b, "  - %s\n", w)
		}
		if i < len(got) {
			fmt.Fprintf(&b, "  + %s\n", g)
		}
	}
	return b.String()
}

// Case is one rendering scenario: a set of in-memory templates, the entry
// template to render and its context.
type Case struct {
	Name     string                 `yaml:"name"`
	Template string                 `yaml:"template"`
	Files    map[string]string      `yaml:"files"`
	Data     map[string]interface{} `yaml:"data"`
	Strict   bool                   `yaml:"strict"`
}

// LoadCases reads a YAML list of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases %s: %w", path, err)
	}
	for i, c := range cases {
		if c.Name == "" || c.Template == "" {
			return nil, fmt.Errorf("case %d in %s needs a name and a template", i, path)
		}
	}
	return cases, nil
}
