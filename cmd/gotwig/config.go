package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/deicod/gotwig/runtime"
)

const defaultTable = "templates"

// cliConfig mirrors the YAML config file. Flags given on the command line
// override the file.
type cliConfig struct {
	Dirs         []string `yaml:"dirs"`
	Strict       bool     `yaml:"strict"`
	MaxDepth     int      `yaml:"max_depth"`
	TrimBlocks   bool     `yaml:"trim_blocks"`
	LstripBlocks bool     `yaml:"lstrip_blocks"`
	DB           string   `yaml:"db"`
	Table        string   `yaml:"table"`
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	if a.configPath == "" {
		return nil
	}
	f, err := os.Open(a.configPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var file cliConfig
	if err := yaml.NewDecoder(f).Decode(&file); err != nil {
		return fmt.Errorf("decoding config file: %w", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("dir") {
		a.cfg.Dirs = file.Dirs
	}
	if !flags.Changed("strict") {
		a.cfg.Strict = file.Strict
	}
	if !flags.Changed("max-depth") {
		a.cfg.MaxDepth = file.MaxDepth
	}
	if !flags.Changed("trim-blocks") {
		a.cfg.TrimBlocks = file.TrimBlocks
	}
	if !flags.Changed("lstrip-blocks") {
		a.cfg.LstripBlocks = file.LstripBlocks
	}
	if !flags.Changed("db") {
		a.cfg.DB = file.DB
	}
	if !flags.Changed("table") {
		a.cfg.Table = file.Table
	}
	a.logger.Debug("loaded config", "path", a.configPath, "dirs", a.cfg.Dirs)
	return nil
}

// loader builds the template source: the database first when configured,
// then the directories in order. With neither, the working directory is used.
// The returned function closes the database.
func (a *app) loader(ctx context.Context) (runtime.Loader, func() error, error) {
	var loaders []runtime.Loader
	closer := func() error { return nil }

	if a.cfg.DB != "" {
		db, err := sql.Open("sqlite", a.cfg.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		closer = db.Close
		table := a.cfg.Table
		if table == "" {
			table = defaultTable
		}
		sqlLoader, err := runtime.NewSQLLoader(db, table)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := sqlLoader.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("prepare table %s: %w", table, err)
		}
		loaders = append(loaders, sqlLoader)
	}

	dirs := a.cfg.Dirs
	if len(dirs) == 0 && a.cfg.DB == "" {
		dirs = []string{"."}
	}
	if len(dirs) > 0 {
		loaders = append(loaders, runtime.NewFileSystemLoader(dirs...))
	}

	if len(loaders) == 1 {
		return loaders[0], closer, nil
	}
	return runtime.NewChainLoader(loaders...), closer, nil
}

func (a *app) options(loader runtime.Loader) []runtime.Option {
	return []runtime.Option{
		runtime.WithLoader(loader),
		runtime.WithLogger(a.logger),
		runtime.WithStrictVariables(a.cfg.Strict),
		runtime.WithMaxDepth(a.cfg.MaxDepth),
		runtime.WithTrimBlocks(a.cfg.TrimBlocks),
		runtime.WithLstripBlocks(a.cfg.LstripBlocks),
	}
}

// loadData reads a YAML (or JSON) mapping from path.
func loadData(path string) (map[string]interface{}, error) {
	data := map[string]interface{}{}
	if path == "" {
		return data, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decoding data file %s: %w", path, err)
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return data, nil
}

// setValue applies one --set assignment. Dotted keys create nested mappings
// and values are decoded as YAML scalars, so "n=3" binds an integer.
func setValue(data map[string]interface{}, assignment string) error {
	key, raw, ok := strings.Cut(assignment, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid --set %q, expected key=value", assignment)
	}

	var value interface{} = raw
	if raw != "" {
		var decoded interface{}
		if err := yaml.Unmarshal([]byte(raw), &decoded); err == nil && decoded != nil {
			value = decoded
		}
	}

	parts := strings.Split(key, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
	return nil
}
