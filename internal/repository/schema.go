package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureSchema creates the gateway tables when they do not exist yet. Kept as
// idempotent DDL so a fresh database bootstraps without a migration step.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS users (
			phone_number TEXT PRIMARY KEY,
			balance_sats BIGINT NOT NULL DEFAULT 0 CHECK (balance_sats >= 0)
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id BIGSERIAL PRIMARY KEY,
			from_phone TEXT NOT NULL,
			to_phone TEXT NOT NULL,
			amount_sats BIGINT NOT NULL,
			tx_type TEXT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_from_phone ON transactions (from_phone);
		CREATE INDEX IF NOT EXISTS idx_transactions_to_phone ON transactions (to_phone);
		CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions (reference) WHERE reference <> '';
		CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_reversal_ref ON transactions (reference) WHERE tx_type = 'reversal';

		CREATE TABLE IF NOT EXISTS pending_payments (
			invoice_id TEXT PRIMARY KEY,
			phone_number TEXT NOT NULL,
			amount_kes BIGINT NOT NULL,
			amount_sats BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("repository: ensure schema: %w", err)
	}
	return nil
}
