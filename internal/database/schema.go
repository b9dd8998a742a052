package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the license tables if they do not exist. The unique
// constraints carry the data model's invariants: one account per license
// code, one account per username, one binding per (account, fingerprint).
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			license_code  TEXT NOT NULL UNIQUE,
			username      TEXT UNIQUE,
			password_hash TEXT,
			state         TEXT NOT NULL DEFAULT 'unactivated',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_login_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS devices (
			id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			account_id    UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			fingerprint   TEXT NOT NULL,
			first_seen_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_seen_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (account_id, fingerprint)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_account_id ON devices(account_id)`,
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}
