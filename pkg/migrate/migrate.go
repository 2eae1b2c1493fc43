// Package migrate applies the goose SQL migrations under DefaultDir and keeps
// the migration files themselves well formed.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Migrator runs the migrations of one directory against one database.
type Migrator struct {
	provider *goose.Provider
}

func NewMigrator(db *sql.DB, dir string) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migrate: db is required")
	}
	if dir == "" {
		return nil, errors.New("migrate: dir is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("migrate: load %s: %w", dir, err)
	}
	return &Migrator{provider: provider}, nil
}

// Applied is one migration that ran.
type Applied struct {
	Version   int64
	Path      string
	Direction string
}

func (m *Migrator) Up(ctx context.Context) ([]Applied, error) {
	results, err := m.provider.Up(ctx)
	return applied(results), wrap("up", err)
}

// Down rolls back the newest applied migration.
func (m *Migrator) Down(ctx context.Context) ([]Applied, error) {
	result, err := m.provider.Down(ctx)
	if result == nil {
		return nil, wrap("down", err)
	}
	return applied([]*goose.MigrationResult{result}), wrap("down", err)
}

// To moves the schema up or down until version is the newest applied one.
// version is the YYYYMMDDHHMMSS prefix of a migration file.
func (m *Migrator) To(ctx context.Context, version string) ([]Applied, error) {
	target, err := strconv.ParseInt(version, 10, 64)
	if err != nil || target < 0 {
		return nil, fmt.Errorf("migrate: invalid version %q (want YYYYMMDDHHMMSS)", version)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, wrap("version", err)
	}
	var results []*goose.MigrationResult
	switch {
	case target > current:
		results, err = m.provider.UpTo(ctx, target)
	case target < current:
		results, err = m.provider.DownTo(ctx, target)
	}
	return applied(results), wrap("to "+version, err)
}

// Status lists every known migration in version order.
type Status struct {
	Version int64
	Path    string
	Applied bool
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, wrap("status", err)
	}
	out := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Status{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func applied(results []*goose.MigrationResult) []Applied {
	out := make([]Applied, 0, len(results))
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		out = append(out, Applied{Version: r.Source.Version, Path: r.Source.Path, Direction: r.Direction})
	}
	return out
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("migrate %s: %w", op, err)
}
