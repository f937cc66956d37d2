package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aurum/internal/custody/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// PostgresStore persists custody receipts.
//
// Schema:
//
//	CREATE TABLE custody_receipts (
//	    id            UUID PRIMARY KEY,
//	    vault_id      UUID NOT NULL,
//	    kind          TEXT NOT NULL,
//	    withdrawal_id UUID,
//	    asset_id      UUID,
//	    custodian_id  TEXT NOT NULL,
//	    fiat_amount   BIGINT NOT NULL,
//	    signature     BYTEA NOT NULL,
//	    status        TEXT NOT NULL,
//	    confirmed_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE UNIQUE INDEX custody_receipts_reference ON custody_receipts (COALESCE(withdrawal_id, asset_id)) WHERE status <> 'disputed';
//
// The index is partial: a disputed receipt releases its reference, so a
// force-unlocked asset can be re-admitted under a fresh receipt.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, receipt *models.CustodyReceipt) error {
	var withdrawalID, assetID uuid.NullUUID
	if !receipt.WithdrawalID.IsZero() {
		withdrawalID = uuid.NullUUID{UUID: uuid.UUID(receipt.WithdrawalID), Valid: true}
	}
	if !receipt.AssetID.IsZero() {
		assetID = uuid.NullUUID{UUID: uuid.UUID(receipt.AssetID), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custody_receipts (id, vault_id, kind, withdrawal_id, asset_id, custodian_id, fiat_amount, signature, status, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(receipt.ID), uuid.UUID(receipt.VaultID), string(receipt.Kind),
		withdrawalID, assetID, string(receipt.CustodianID),
		int64(receipt.FiatAmount), receipt.Signature, string(receipt.Status), receipt.ConfirmedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert custody receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, receiptID id.ReceiptID) (*models.CustodyReceipt, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, vault_id, kind, withdrawal_id, asset_id, custodian_id, fiat_amount, signature, status, confirmed_at
		FROM custody_receipts WHERE id = $1`,
		uuid.UUID(receiptID),
	)
	return scanReceipt(row)
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (*models.CustodyReceipt, error) {
	ref, err := uuid.Parse(reference)
	if err != nil {
		return nil, sentinel.ErrNotFound
	}
	// A reference can carry one live receipt plus older disputed ones; the
	// live receipt wins.
	row := s.db.QueryRowContext(ctx, `
		SELECT id, vault_id, kind, withdrawal_id, asset_id, custodian_id, fiat_amount, signature, status, confirmed_at
		FROM custody_receipts WHERE withdrawal_id = $1 OR asset_id = $1
		ORDER BY (status = 'disputed') ASC, confirmed_at DESC
		LIMIT 1`,
		ref,
	)
	return scanReceipt(row)
}

func (s *PostgresStore) MarkDisputed(ctx context.Context, receiptID id.ReceiptID) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE custody_receipts SET status = $2 WHERE id = $1`,
		uuid.UUID(receiptID), string(models.StatusDisputed),
	)
	if err != nil {
		return fmt.Errorf("mark receipt disputed: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark receipt disputed: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanReceipt(row *sql.Row) (*models.CustodyReceipt, error) {
	var receipt models.CustodyReceipt
	var receiptUUID, vaultUUID uuid.UUID
	var withdrawalID, assetID uuid.NullUUID
	var kind, custodian, status string
	var fiatAmount int64
	err := row.Scan(&receiptUUID, &vaultUUID, &kind, &withdrawalID, &assetID,
		&custodian, &fiatAmount, &receipt.Signature, &status, &receipt.ConfirmedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan custody receipt: %w", err)
	}
	receipt.ID = id.ReceiptID(receiptUUID)
	receipt.VaultID = id.VaultID(vaultUUID)
	receipt.Kind = models.ReceiptKind(kind)
	receipt.CustodianID = id.Identity(custodian)
	receipt.FiatAmount = uint64(fiatAmount)
	receipt.Status = models.ReceiptStatus(status)
	if withdrawalID.Valid {
		receipt.WithdrawalID = id.WithdrawalID(withdrawalID.UUID)
	}
	if assetID.Valid {
		receipt.AssetID = id.AssetID(assetID.UUID)
	}
	return &receipt, nil
}
