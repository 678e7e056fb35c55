// Package audit keeps an append-only trail of job lifecycle events in
// Postgres. The triple store is the source of truth; this trail only exists
// for operators to answer "what happened to submission X and when" without
// replaying deltas. The whole package is optional: a nil *Log swallows
// every append.
package audit

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Log writes lifecycle events to an audit table.
type Log struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// New creates a pooled connection to Postgres. A successful open does not
// guarantee the schema exists; call Migrate once at startup.
func New(ctx context.Context, dsn string, log *slog.Logger) (*Log, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse audit dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect audit store: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Log{pool: pool, log: log.With("component", "audit")}, nil
}

// Close releases the pool.
func (l *Log) Close() {
	if l != nil && l.pool != nil {
		l.pool.Close()
	}
}

// Migrate executes the embedded SQL migrations in order.
func (l *Log) Migrate(ctx context.Context) error {
	if l == nil {
		return nil
	}
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		content, err := migrationFiles.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sql := strings.TrimSpace(string(content))
		if sql == "" {
			continue
		}
		if _, err := l.pool.Exec(ctx, sql); err != nil {
			return fmt.Errorf("exec migration %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Append adds one audit row. Losing a row never fails the flow that emitted
// it, so errors are logged here and reported back only for tests.
func (l *Log) Append(ctx context.Context, jobURI, event, detail string) error {
	if l == nil {
		return nil
	}
	_, err := l.pool.Exec(ctx, `
		INSERT INTO job_audit (job_uri, event, detail, ts)
		VALUES ($1, $2, $3, NOW())
	`, jobURI, event, detail)
	if err != nil {
		l.log.Error("could not append audit row", "job", jobURI, "event", event, "err", err)
		return fmt.Errorf("append audit row: %w", err)
	}
	return nil
}
