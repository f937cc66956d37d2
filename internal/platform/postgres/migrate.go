package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the full ledger schema. Statements are idempotent so startup can
// apply them unconditionally; integration tests reuse the same DDL.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS attestations (
		seq              BIGSERIAL PRIMARY KEY,
		identity         TEXT NOT NULL,
		attestation_hash TEXT NOT NULL,
		issuer           TEXT NOT NULL,
		issued_at        TIMESTAMPTZ NOT NULL,
		expiry           TIMESTAMPTZ NOT NULL,
		revoked          BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS attestations_identity_idx ON attestations (identity, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS attestors (
		identity TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS assets (
		id           UUID PRIMARY KEY,
		issuer       TEXT NOT NULL,
		metadata_ref TEXT NOT NULL,
		proof_hash   TEXT NOT NULL,
		valuation    NUMERIC(30, 10) NOT NULL,
		maturity     TIMESTAMPTZ NOT NULL,
		lock_state   TEXT NOT NULL,
		vault_ref    UUID,
		minted_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vaults (
		id                 UUID PRIMARY KEY,
		strategy           TEXT NOT NULL,
		risk_score         INT NOT NULL,
		custodian_id       TEXT NOT NULL,
		total_value_locked BIGINT NOT NULL,
		total_shares       BIGINT NOT NULL,
		paused             BOOLEAN NOT NULL,
		halted             BOOLEAN NOT NULL,
		halt_reason        TEXT NOT NULL DEFAULT '',
		created_at         TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS share_accounts (
		vault_id UUID NOT NULL REFERENCES vaults (id),
		holder   TEXT NOT NULL,
		liquid   BIGINT NOT NULL,
		escrowed BIGINT NOT NULL,
		PRIMARY KEY (vault_id, holder)
	)`,
	`CREATE TABLE IF NOT EXISTS pending_withdrawals (
		id           UUID PRIMARY KEY,
		vault_id     UUID NOT NULL REFERENCES vaults (id),
		holder       TEXT NOT NULL,
		shares       BIGINT NOT NULL,
		asset_amount BIGINT NOT NULL,
		status       TEXT NOT NULL,
		proof_ref    TEXT NOT NULL DEFAULT '',
		requested_at TIMESTAMPTZ NOT NULL,
		resolved_at  TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS custody_receipts (
		id            UUID PRIMARY KEY,
		vault_id      UUID NOT NULL,
		kind          TEXT NOT NULL,
		withdrawal_id UUID,
		asset_id      UUID,
		custodian_id  TEXT NOT NULL,
		fiat_amount   BIGINT NOT NULL,
		signature     BYTEA NOT NULL,
		status        TEXT NOT NULL,
		confirmed_at  TIMESTAMPTZ NOT NULL
	)`,
	// Disputed receipts release their reference so a force-unlocked asset can
	// be re-admitted under a fresh receipt.
	`CREATE UNIQUE INDEX IF NOT EXISTS custody_receipts_reference ON custody_receipts (COALESCE(withdrawal_id, asset_id)) WHERE status <> 'disputed'`,
	`CREATE TABLE IF NOT EXISTS yield_snapshots (
		id           UUID PRIMARY KEY,
		vault_id     UUID NOT NULL,
		total_shares BIGINT NOT NULL,
		balances     JSONB NOT NULL,
		taken_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS yield_epochs (
		vault_id       UUID NOT NULL,
		epoch_id       BIGINT NOT NULL,
		total_yield    BIGINT NOT NULL,
		carry_in       BIGINT NOT NULL,
		per_share      BIGINT NOT NULL,
		residual       BIGINT NOT NULL,
		snapshot_id    UUID NOT NULL REFERENCES yield_snapshots (id),
		distributed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (vault_id, epoch_id)
	)`,
	`CREATE TABLE IF NOT EXISTS yield_credits (
		vault_id UUID NOT NULL,
		epoch_id BIGINT NOT NULL,
		holder   TEXT NOT NULL,
		amount   BIGINT NOT NULL,
		PRIMARY KEY (vault_id, epoch_id, holder)
	)`,
}

// Migrate applies the ledger schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
