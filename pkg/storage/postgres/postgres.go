// Package postgres provides a PostgreSQL implementation of
// storage.UsageStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kirogate/kirogate/pkg/storage"
)

// defaultListLimit caps ListUsage results when no limit is given.
const defaultListLimit = 100

// Store is a PostgreSQL-backed UsageStore.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.UsageStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// RecordUsage persists one accounting entry.
func (s *Store) RecordUsage(ctx context.Context, rec *storage.UsageRecord) error {
	tenantID := rec.TenantID
	if t := storage.GetTenant(ctx); t != "" {
		tenantID = t
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO usage_records (
			request_id, tenant_id, model, stop_reason, streamed,
			input_tokens, output_tokens, tool_calls, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.RequestID, tenantID, rec.Model, rec.StopReason, rec.Streamed,
		rec.InputTokens, rec.OutputTokens, rec.ToolCalls, createdAt,
	)

	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting usage record: %w", err)
	}

	return nil
}

// ListUsage returns matching records, newest first.
func (s *Store) ListUsage(ctx context.Context, opts storage.ListOptions) ([]*storage.UsageRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `
		SELECT request_id, tenant_id, model, stop_reason, streamed,
		       input_tokens, output_tokens, tool_calls, created_at
		FROM usage_records
	`
	where, args := s.filters(ctx, opts)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usage records: %w", err)
	}
	defer rows.Close()

	var out []*storage.UsageRecord
	for rows.Next() {
		var rec storage.UsageRecord
		if err := rows.Scan(
			&rec.RequestID, &rec.TenantID, &rec.Model, &rec.StopReason, &rec.Streamed,
			&rec.InputTokens, &rec.OutputTokens, &rec.ToolCalls, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning usage record: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading usage records: %w", err)
	}
	return out, nil
}

// Summarize aggregates records created at or after since.
func (s *Store) Summarize(ctx context.Context, since time.Time) (*storage.UsageSummary, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0),
		       COALESCE(SUM(tool_calls), 0)
		FROM usage_records
	`
	where, args := s.filters(ctx, storage.ListOptions{Since: since})
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	var summary storage.UsageSummary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&summary.Requests, &summary.InputTokens, &summary.OutputTokens, &summary.ToolCalls,
	)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	return &summary, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// filters builds the shared WHERE clauses for tenant, model, and time
// scoping.
func (s *Store) filters(ctx context.Context, opts storage.ListOptions) ([]string, []any) {
	var where []string
	var args []any

	if tenant := storage.GetTenant(ctx); tenant != "" {
		args = append(args, tenant)
		where = append(where, fmt.Sprintf("tenant_id = $%d", len(args)))
	}
	if opts.Model != "" {
		args = append(args, opts.Model)
		where = append(where, fmt.Sprintf("model = $%d", len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return where, args
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
