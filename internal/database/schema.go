package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool used for schema management.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Schema statements, applied in order. Each is idempotent.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS market_transactions (
		id               UUID PRIMARY KEY,
		good             TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		price            NUMERIC(18, 6) NOT NULL,
		received_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS market_transactions_good_received_idx
		ON market_transactions (good, received_at)`,
	`CREATE TABLE IF NOT EXISTS price_samples (
		good       TEXT NOT NULL,
		sampled_at BIGINT NOT NULL,
		price      NUMERIC(18, 6) NOT NULL,
		present    BOOLEAN NOT NULL,
		PRIMARY KEY (good, sampled_at)
	)`,
}

// EnsureSchema creates the recorder tables if they do not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range Schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
