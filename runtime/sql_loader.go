package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
)

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLLoader reads template sources from a database table with the columns
// name (primary key) and source. Any database/sql driver works; the CLI uses
// the pure Go modernc.org/sqlite driver.
type SQLLoader struct {
	db    *sql.DB
	table string
}

// NewSQLLoader creates a loader over table. The table name is interpolated
// into queries, so only plain identifiers are accepted.
func NewSQLLoader(db *sql.DB, table string) (*SQLLoader, error) {
	if db == nil {
		return nil, errors.New("sql loader needs a database handle")
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &SQLLoader{db: db, table: table}, nil
}

// EnsureSchema creates the template table if it does not exist.
func (l *SQLLoader) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		source TEXT NOT NULL
	);`, l.table)
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Put stores or replaces the source for name.
func (l *SQLLoader) Put(ctx context.Context, name, source string) error {
	query := fmt.Sprintf(`INSERT INTO %s (name, source) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET source = excluded.source`, l.table)
	_, err := l.db.ExecContext(ctx, query, name, source)
	return err
}

// LoadContext fetches the source for name.
func (l *SQLLoader) LoadContext(ctx context.Context, name string) ([]byte, error) {
	var source string
	query := fmt.Sprintf(`SELECT source FROM %s WHERE name = ?`, l.table)
	err := l.db.QueryRowContext(ctx, query, name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewTemplateNotFound(name, "no row in table "+l.table)
	}
	if err != nil {
		return nil, fmt.Errorf("load template %q: %w", name, err)
	}
	return []byte(source), nil
}

// Load implements Loader.
func (l *SQLLoader) Load(name string) ([]byte, error) {
	return l.LoadContext(context.Background(), name)
}
