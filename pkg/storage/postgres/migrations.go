package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrate applies embedded schema migrations in version order. Applied
// versions are tracked in the schema_migrations table; each pending
// migration commits together with its bookkeeping row in one
// transaction.
func (s *Store) migrate(ctx context.Context) error {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("listing migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		version, ok := migrationVersion(name)
		if !ok {
			continue
		}

		// A lookup error usually means schema_migrations does not
		// exist yet; the first migration creates it.
		if applied, err := s.migrationApplied(ctx, version); err == nil && applied {
			continue
		}

		sql, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}

		slog.Info("applying migration", "file", name, "version", version)
		if err := s.applyMigration(ctx, version, string(sql)); err != nil {
			return fmt.Errorf("applying %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) migrationApplied(ctx context.Context, version int) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
		version,
	).Scan(&exists)
	return exists, err
}

func (s *Store) applyMigration(ctx context.Context, version int, sql string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, sql); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
			version,
		)
		return err
	})
}

// migrationVersion extracts the numeric prefix from a migration path
// such as "migrations/001_create_usage_records.sql".
func migrationVersion(name string) (int, bool) {
	prefix, _, found := strings.Cut(strings.TrimPrefix(name, "migrations/"), "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}
