// services/settlement-service/internal/infra/postgres/db.postgres.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlement_sessions (
    identity    TEXT PRIMARY KEY,
    role_proof  JSONB NOT NULL,
    expiration  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settlement_shipments (
    id            BIGSERIAL PRIMARY KEY,
    supplier      TEXT NOT NULL,
    commissioner  TEXT NOT NULL,
    version       BIGINT NOT NULL,
    data          JSONB NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS settlement_shipments_supplier_idx ON settlement_shipments (supplier);
CREATE INDEX IF NOT EXISTS settlement_shipments_commissioner_idx ON settlement_shipments (commissioner);
`

// Open connects and pings the database.
func Open(ctx context.Context, connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres db: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the settlement tables if they do not exist yet.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create settlement schema: %w", err)
	}
	return nil
}
