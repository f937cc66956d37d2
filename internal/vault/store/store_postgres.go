package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"aurum/internal/vault/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// PostgresStore is the system of record for vault books.
//
// Schema:
//
//	CREATE TABLE vaults (
//	    id                 UUID PRIMARY KEY,
//	    strategy           TEXT NOT NULL,
//	    risk_score         INT NOT NULL,
//	    custodian_id       TEXT NOT NULL,
//	    total_value_locked BIGINT NOT NULL,
//	    total_shares       BIGINT NOT NULL,
//	    paused             BOOLEAN NOT NULL,
//	    halted             BOOLEAN NOT NULL,
//	    halt_reason        TEXT NOT NULL DEFAULT '',
//	    created_at         TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE share_accounts (
//	    vault_id UUID NOT NULL REFERENCES vaults (id),
//	    holder   TEXT NOT NULL,
//	    liquid   BIGINT NOT NULL,
//	    escrowed BIGINT NOT NULL,
//	    PRIMARY KEY (vault_id, holder)
//	);
//
//	CREATE TABLE pending_withdrawals (
//	    id           UUID PRIMARY KEY,
//	    vault_id     UUID NOT NULL REFERENCES vaults (id),
//	    holder       TEXT NOT NULL,
//	    shares       BIGINT NOT NULL,
//	    asset_amount BIGINT NOT NULL,
//	    status       TEXT NOT NULL,
//	    proof_ref    TEXT NOT NULL DEFAULT '',
//	    requested_at TIMESTAMPTZ NOT NULL,
//	    resolved_at  TIMESTAMPTZ
//	);
//
// Execute takes the vault row FOR UPDATE, which is the per-vault single
// writer lock: every read-modify-write of the books happens behind it.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateVault(ctx context.Context, vault *models.Vault) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vaults (id, strategy, risk_score, custodian_id, total_value_locked, total_shares, paused, halted, halt_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(vault.ID), vault.Strategy, vault.RiskScore, string(vault.CustodianID),
		int64(vault.TotalValueLocked), int64(vault.TotalShares),
		vault.Paused, vault.Halted, vault.HaltReason, vault.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

// ListVaultIDs returns every vault the store knows about.
func (s *PostgresStore) ListVaultIDs(ctx context.Context) ([]id.VaultID, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM vaults`)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}
	defer rows.Close()

	var out []id.VaultID
	for rows.Next() {
		var vaultUUID uuid.UUID
		if err := rows.Scan(&vaultUUID); err != nil {
			return nil, fmt.Errorf("scan vault id: %w", err)
		}
		out = append(out, id.VaultID(vaultUUID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vault ids: %w", err)
	}
	return out, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) View(ctx context.Context, vaultID id.VaultID) (*models.Ledger, error) {
	return loadLedger(ctx, s.db, vaultID, false)
}

func (s *PostgresStore) Execute(ctx context.Context, vaultID id.VaultID, validate func(*models.Ledger) error, mutate func(*models.Ledger)) (*models.Ledger, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	ledger, err := loadLedger(ctx, tx, vaultID, true)
	if err != nil {
		return nil, err
	}
	if err := validate(ledger); err != nil {
		return nil, err
	}
	mutate(ledger)

	if err := writeBack(ctx, tx, ledger); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return ledger, nil
}

func loadLedger(ctx context.Context, q querier, vaultID id.VaultID, forUpdate bool) (*models.Ledger, error) {
	query := `
		SELECT id, strategy, risk_score, custodian_id, total_value_locked, total_shares, paused, halted, halt_reason, created_at
		FROM vaults WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var vault models.Vault
	var vaultUUID uuid.UUID
	var custodian string
	var tvl, totalShares int64
	err := q.QueryRowContext(ctx, query, uuid.UUID(vaultID)).Scan(
		&vaultUUID, &vault.Strategy, &vault.RiskScore, &custodian,
		&tvl, &totalShares, &vault.Paused, &vault.Halted, &vault.HaltReason, &vault.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}
	vault.ID = id.VaultID(vaultUUID)
	vault.CustodianID = id.Identity(custodian)
	vault.TotalValueLocked = uint64(tvl)
	vault.TotalShares = uint64(totalShares)

	ledger := models.NewLedger(&vault)

	rows, err := q.QueryContext(ctx, `
		SELECT holder, liquid, escrowed FROM share_accounts WHERE vault_id = $1`,
		uuid.UUID(vaultID),
	)
	if err != nil {
		return nil, fmt.Errorf("load share accounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var holder string
		var liquid, escrowed int64
		if err := rows.Scan(&holder, &liquid, &escrowed); err != nil {
			return nil, fmt.Errorf("scan share account: %w", err)
		}
		ledger.Accounts[id.Identity(holder)] = &models.ShareAccount{
			VaultID:  vaultID,
			Holder:   id.Identity(holder),
			Liquid:   uint64(liquid),
			Escrowed: uint64(escrowed),
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate share accounts: %w", err)
	}

	wrows, err := q.QueryContext(ctx, `
		SELECT id, holder, shares, asset_amount, status, proof_ref, requested_at, resolved_at
		FROM pending_withdrawals WHERE vault_id = $1`,
		uuid.UUID(vaultID),
	)
	if err != nil {
		return nil, fmt.Errorf("load withdrawals: %w", err)
	}
	defer wrows.Close()
	for wrows.Next() {
		var w models.PendingWithdrawal
		var withdrawalUUID uuid.UUID
		var holder, status string
		var shares, assetAmount int64
		var resolvedAt sql.NullTime
		if err := wrows.Scan(&withdrawalUUID, &holder, &shares, &assetAmount, &status, &w.ProofRef, &w.RequestedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		w.ID = id.WithdrawalID(withdrawalUUID)
		w.VaultID = vaultID
		w.Holder = id.Identity(holder)
		w.Shares = uint64(shares)
		w.AssetAmount = uint64(assetAmount)
		w.Status = models.WithdrawalStatus(status)
		if resolvedAt.Valid {
			resolved := resolvedAt.Time
			w.ResolvedAt = &resolved
		}
		ledger.Withdrawals[w.ID] = &w
	}
	if err := wrows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawals: %w", err)
	}
	return ledger, nil
}

func writeBack(ctx context.Context, tx *sql.Tx, ledger *models.Ledger) error {
	vault := ledger.Vault
	_, err := tx.ExecContext(ctx, `
		UPDATE vaults SET total_value_locked = $2, total_shares = $3, paused = $4, halted = $5, halt_reason = $6
		WHERE id = $1`,
		uuid.UUID(vault.ID), int64(vault.TotalValueLocked), int64(vault.TotalShares),
		vault.Paused, vault.Halted, vault.HaltReason,
	)
	if err != nil {
		return fmt.Errorf("update vault: %w", err)
	}

	for _, acct := range ledger.Accounts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO share_accounts (vault_id, holder, liquid, escrowed)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (vault_id, holder) DO UPDATE SET liquid = EXCLUDED.liquid, escrowed = EXCLUDED.escrowed`,
			uuid.UUID(vault.ID), string(acct.Holder), int64(acct.Liquid), int64(acct.Escrowed),
		)
		if err != nil {
			return fmt.Errorf("upsert share account: %w", err)
		}
	}

	for _, w := range ledger.Withdrawals {
		var resolvedAt sql.NullTime
		if w.ResolvedAt != nil {
			resolvedAt = sql.NullTime{Time: *w.ResolvedAt, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pending_withdrawals (id, vault_id, holder, shares, asset_amount, status, proof_ref, requested_at, resolved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, proof_ref = EXCLUDED.proof_ref, resolved_at = EXCLUDED.resolved_at`,
			uuid.UUID(w.ID), uuid.UUID(vault.ID), string(w.Holder), int64(w.Shares), int64(w.AssetAmount),
			string(w.Status), w.ProofRef, w.RequestedAt, resolvedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert withdrawal: %w", err)
		}
	}
	return nil
}
