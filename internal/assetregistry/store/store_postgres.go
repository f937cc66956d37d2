package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"aurum/internal/assetregistry/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// PostgresStore persists asset records.
//
// Schema:
//
//	CREATE TABLE assets (
//	    id           UUID PRIMARY KEY,
//	    issuer       TEXT NOT NULL,
//	    metadata_ref TEXT NOT NULL,
//	    proof_hash   TEXT NOT NULL,
//	    valuation    NUMERIC(30, 10) NOT NULL,
//	    maturity     TIMESTAMPTZ NOT NULL,
//	    lock_state   TEXT NOT NULL,
//	    vault_ref    UUID,
//	    minted_at    TIMESTAMPTZ NOT NULL
//	);
//
// Execute uses SELECT ... FOR UPDATE so validate-then-mutate is atomic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, asset *models.Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, issuer, metadata_ref, proof_hash, valuation, maturity, lock_state, vault_ref, minted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(asset.ID), string(asset.Issuer), asset.MetadataRef, asset.ProofHash,
		asset.Valuation.String(), asset.Maturity, string(asset.LockState),
		nullableVault(asset.VaultRef), asset.MintedAt,
	)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, issuer, metadata_ref, proof_hash, valuation, maturity, lock_state, vault_ref, minted_at
		FROM assets WHERE id = $1`,
		uuid.UUID(assetID),
	)
	return scanAsset(row)
}

func (s *PostgresStore) Execute(ctx context.Context, assetID id.AssetID, validate func(*models.Asset) error, mutate func(*models.Asset)) (*models.Asset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin asset tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, issuer, metadata_ref, proof_hash, valuation, maturity, lock_state, vault_ref, minted_at
		FROM assets WHERE id = $1 FOR UPDATE`,
		uuid.UUID(assetID),
	)
	asset, err := scanAsset(row)
	if err != nil {
		return nil, err
	}
	if err := validate(asset); err != nil {
		return nil, err
	}
	mutate(asset)

	_, err = tx.ExecContext(ctx, `
		UPDATE assets SET lock_state = $2, vault_ref = $3 WHERE id = $1`,
		uuid.UUID(assetID), string(asset.LockState), nullableVault(asset.VaultRef),
	)
	if err != nil {
		return nil, fmt.Errorf("update asset: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit asset tx: %w", err)
	}
	return asset, nil
}

func (s *PostgresStore) ListByVault(ctx context.Context, vaultID id.VaultID) ([]*models.Asset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issuer, metadata_ref, proof_hash, valuation, maturity, lock_state, vault_ref, minted_at
		FROM assets WHERE vault_ref = $1 ORDER BY minted_at ASC`,
		uuid.UUID(vaultID),
	)
	if err != nil {
		return nil, fmt.Errorf("list assets by vault: %w", err)
	}
	defer rows.Close()

	var out []*models.Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func nullableVault(vaultID id.VaultID) any {
	if vaultID.IsZero() {
		return nil
	}
	return uuid.UUID(vaultID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*models.Asset, error) {
	var asset models.Asset
	var assetUUID uuid.UUID
	var issuer, lockState, valuation string
	var vaultRef uuid.NullUUID
	err := row.Scan(&assetUUID, &issuer, &asset.MetadataRef, &asset.ProofHash,
		&valuation, &asset.Maturity, &lockState, &vaultRef, &asset.MintedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset: %w", err)
	}
	parsed, err := decimal.NewFromString(valuation)
	if err != nil {
		return nil, fmt.Errorf("parse asset valuation: %w", err)
	}
	asset.ID = id.AssetID(assetUUID)
	asset.Issuer = id.Identity(issuer)
	asset.LockState = models.LockState(lockState)
	asset.Valuation = parsed
	if vaultRef.Valid {
		asset.VaultRef = id.VaultID(vaultRef.UUID)
	}
	return &asset, nil
}
