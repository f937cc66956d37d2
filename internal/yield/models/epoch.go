// Package models holds the yield distribution records: share snapshots,
// epochs, and per-holder credits.
package models

import (
	"time"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// ShareSnapshot freezes every holder's position at one instant. Distribution
// credits against the snapshot, not against live balances, so holders who
// exit between snapshot and distribution still receive their accrued share.
type ShareSnapshot struct {
	ID          id.SnapshotID          `json:"snapshot_id"`
	VaultID     id.VaultID             `json:"vault_id"`
	TotalShares uint64                 `json:"total_shares"`
	Balances    map[id.Identity]uint64 `json:"balances"`
	TakenAt     time.Time              `json:"taken_at"`
}

// YieldEpoch is one completed accounting period. Epoch IDs come from the
// yield oracle and are processed exactly once per vault; the residual after
// floor division carries into the next epoch instead of being discarded.
type YieldEpoch struct {
	EpochID id.EpochID `json:"epoch_id"`
	VaultID id.VaultID `json:"vault_id"`

	TotalYield uint64 `json:"total_yield"`
	CarryIn    uint64 `json:"carry_in"`
	PerShare   uint64 `json:"per_share"`
	Residual   uint64 `json:"residual"`

	SnapshotID    id.SnapshotID `json:"snapshot_id"`
	Distributed   bool          `json:"distributed"`
	DistributedAt time.Time     `json:"distributed_at"`
}

// Credit is one holder's share of a distributed epoch.
type Credit struct {
	VaultID id.VaultID  `json:"vault_id"`
	EpochID id.EpochID  `json:"epoch_id"`
	Holder  id.Identity `json:"holder"`
	Amount  uint64      `json:"amount"`
}

// NewSnapshot validates and constructs a snapshot.
func NewSnapshot(vaultID id.VaultID, totalShares uint64, balances map[id.Identity]uint64, now time.Time) (*ShareSnapshot, error) {
	var sum uint64
	for _, balance := range balances {
		sum += balance
	}
	if sum != totalShares {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "snapshot balances do not sum to total shares")
	}
	return &ShareSnapshot{
		ID:          id.NewSnapshotID(),
		VaultID:     vaultID,
		TotalShares: totalShares,
		Balances:    balances,
		TakenAt:     now,
	}, nil
}
