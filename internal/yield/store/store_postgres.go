package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aurum/internal/yield/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// PostgresStore persists yield snapshots, epochs, and credits.
//
// Schema:
//
//	CREATE TABLE yield_snapshots (
//	    id           UUID PRIMARY KEY,
//	    vault_id     UUID NOT NULL,
//	    total_shares BIGINT NOT NULL,
//	    balances     JSONB NOT NULL,
//	    taken_at     TIMESTAMPTZ NOT NULL
//	);
//
//	CREATE TABLE yield_epochs (
//	    vault_id       UUID NOT NULL,
//	    epoch_id       BIGINT NOT NULL,
//	    total_yield    BIGINT NOT NULL,
//	    carry_in       BIGINT NOT NULL,
//	    per_share      BIGINT NOT NULL,
//	    residual       BIGINT NOT NULL,
//	    snapshot_id    UUID NOT NULL REFERENCES yield_snapshots (id),
//	    distributed_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (vault_id, epoch_id)
//	);
//
//	CREATE TABLE yield_credits (
//	    vault_id UUID NOT NULL,
//	    epoch_id BIGINT NOT NULL,
//	    holder   TEXT NOT NULL,
//	    amount   BIGINT NOT NULL,
//	    PRIMARY KEY (vault_id, epoch_id, holder)
//	);
//
// The epoch primary key is the idempotency guard: a re-delivered oracle
// report hits the unique violation, never a second credit run.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snapshot *models.ShareSnapshot) error {
	balances, err := json.Marshal(snapshot.Balances)
	if err != nil {
		return fmt.Errorf("encode snapshot balances: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO yield_snapshots (id, vault_id, total_shares, balances, taken_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.UUID(snapshot.ID), uuid.UUID(snapshot.VaultID),
		int64(snapshot.TotalShares), balances, snapshot.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetSnapshot(ctx context.Context, snapshotID id.SnapshotID) (*models.ShareSnapshot, error) {
	var snapshot models.ShareSnapshot
	var snapshotUUID, vaultUUID uuid.UUID
	var totalShares int64
	var balances []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vault_id, total_shares, balances, taken_at
		FROM yield_snapshots WHERE id = $1`,
		uuid.UUID(snapshotID),
	).Scan(&snapshotUUID, &vaultUUID, &totalShares, &balances, &snapshot.TakenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal(balances, &snapshot.Balances); err != nil {
		return nil, fmt.Errorf("decode snapshot balances: %w", err)
	}
	snapshot.ID = id.SnapshotID(snapshotUUID)
	snapshot.VaultID = id.VaultID(vaultUUID)
	snapshot.TotalShares = uint64(totalShares)
	return &snapshot, nil
}

func (s *PostgresStore) CreateEpoch(ctx context.Context, epoch *models.YieldEpoch, credits []*models.Credit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin epoch tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO yield_epochs (vault_id, epoch_id, total_yield, carry_in, per_share, residual, snapshot_id, distributed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(epoch.VaultID), int64(epoch.EpochID), int64(epoch.TotalYield), int64(epoch.CarryIn),
		int64(epoch.PerShare), int64(epoch.Residual), uuid.UUID(epoch.SnapshotID), epoch.DistributedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert epoch: %w", err)
	}

	for _, credit := range credits {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO yield_credits (vault_id, epoch_id, holder, amount)
			VALUES ($1, $2, $3, $4)`,
			uuid.UUID(credit.VaultID), int64(credit.EpochID), string(credit.Holder), int64(credit.Amount),
		)
		if err != nil {
			return fmt.Errorf("insert credit: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit epoch tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEpoch(ctx context.Context, vaultID id.VaultID, epochID id.EpochID) (*models.YieldEpoch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT vault_id, epoch_id, total_yield, carry_in, per_share, residual, snapshot_id, distributed_at
		FROM yield_epochs WHERE vault_id = $1 AND epoch_id = $2`,
		uuid.UUID(vaultID), int64(epochID),
	)
	epoch, err := scanEpoch(row)
	if err != nil {
		return nil, err
	}
	return epoch, nil
}

func (s *PostgresStore) ListEpochs(ctx context.Context, vaultID id.VaultID) ([]*models.YieldEpoch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vault_id, epoch_id, total_yield, carry_in, per_share, residual, snapshot_id, distributed_at
		FROM yield_epochs WHERE vault_id = $1 ORDER BY epoch_id ASC`,
		uuid.UUID(vaultID),
	)
	if err != nil {
		return nil, fmt.Errorf("list epochs: %w", err)
	}
	defer rows.Close()

	var out []*models.YieldEpoch
	for rows.Next() {
		epoch, err := scanEpoch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, epoch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate epochs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Credits(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.Credit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vault_id, epoch_id, holder, amount
		FROM yield_credits WHERE vault_id = $1 AND holder = $2 ORDER BY epoch_id ASC`,
		uuid.UUID(vaultID), string(holder),
	)
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []*models.Credit
	for rows.Next() {
		var credit models.Credit
		var vaultUUID uuid.UUID
		var epochID, amount int64
		var holderRaw string
		if err := rows.Scan(&vaultUUID, &epochID, &holderRaw, &amount); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		credit.VaultID = id.VaultID(vaultUUID)
		credit.EpochID = id.EpochID(epochID)
		credit.Holder = id.Identity(holderRaw)
		credit.Amount = uint64(amount)
		out = append(out, &credit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpoch(row rowScanner) (*models.YieldEpoch, error) {
	var epoch models.YieldEpoch
	var vaultUUID, snapshotUUID uuid.UUID
	var epochID, totalYield, carryIn, perShare, residual int64
	err := row.Scan(&vaultUUID, &epochID, &totalYield, &carryIn, &perShare, &residual, &snapshotUUID, &epoch.DistributedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan epoch: %w", err)
	}
	epoch.VaultID = id.VaultID(vaultUUID)
	epoch.EpochID = id.EpochID(epochID)
	epoch.TotalYield = uint64(totalYield)
	epoch.CarryIn = uint64(carryIn)
	epoch.PerShare = uint64(perShare)
	epoch.Residual = uint64(residual)
	epoch.SnapshotID = id.SnapshotID(snapshotUUID)
	epoch.Distributed = true
	return &epoch, nil
}
