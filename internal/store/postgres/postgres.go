// Package postgres implements the event store contract on PostgreSQL.
// The idempotent insert rides ON CONFLICT DO NOTHING against a partial
// unique index, and status transitions are conditional UPDATEs, so multiple
// API instances can share one database without application-level locking.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

func NewClient(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		tenant_id       TEXT        NOT NULL,
		id              TEXT        NOT NULL,
		source          TEXT,
		type            TEXT,
		topic           TEXT,
		payload         JSONB       NOT NULL,
		status          TEXT        NOT NULL DEFAULT 'pending',
		idempotency_key TEXT,
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS events_idempotency_key
		ON events (tenant_id, idempotency_key)
		WHERE idempotency_key IS NOT NULL;

	CREATE INDEX IF NOT EXISTS events_pending_order
		ON events (tenant_id, created_at, id)
		WHERE status = 'pending';
`

// Migrate creates the events table and its indexes if missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
