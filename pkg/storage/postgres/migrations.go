package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migration struct {
	version int
	name    string
}

// migrationVersion parses "001_create_tokens.sql" into 1.
func migrationVersion(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}

// pendingMigrations lists the embedded migrations not in applied, by version.
func pendingMigrations(applied map[int]bool) ([]migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var pending []migration
	for _, e := range entries {
		v, ok := migrationVersion(e.Name())
		if e.IsDir() || !ok || applied[v] {
			continue
		}
		pending = append(pending, migration{version: v, name: e.Name()})
	}
	slices.SortFunc(pending, func(a, b migration) int { return a.version - b.version })
	return pending, nil
}

// appliedVersions reads schema_migrations. Before the first migration the
// table does not exist and the set is empty.
func (s *Store) appliedVersions(ctx context.Context) map[int]bool {
	applied := make(map[int]bool)
	rows, err := s.pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return applied
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return applied
	}
	for _, v := range versions {
		applied[v] = true
	}
	return applied
}

// migrate applies pending embedded migrations, each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	pending, err := pendingMigrations(s.appliedVersions(ctx))
	if err != nil {
		return err
	}

	for _, m := range pending {
		content, err := migrationFiles.ReadFile("migrations/" + m.name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", m.name, err)
		}

		slog.Info("applying token store migration", "file", m.name, "version", m.version)

		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(content)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
				m.version,
			)
			return err
		})
		if err != nil {
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
	}
	return nil
}
