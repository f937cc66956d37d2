// Package events defines the ledger event stream consumed by the indexing and
// presentation layers. Events are emitted from domain logic after the owning
// state transition commits; they are a projection, never the system of record.
package events

import (
	"time"

	id "aurum/pkg/domain"
)

// Type identifies a ledger event.
type Type string

const (
	TypeDeposited            Type = "deposited"
	TypeWithdrawalRequested  Type = "withdrawal_requested"
	TypeWithdrawalCancelled  Type = "withdrawal_cancelled"
	TypeWithdrawalFulfilled  Type = "withdrawal_fulfilled"
	TypeWithdrawalRejected   Type = "withdrawal_rejected"
	TypeYieldDistributed     Type = "yield_distributed"
	TypeAssetMinted          Type = "asset_minted"
	TypeAssetLocked          Type = "asset_locked"
	TypeAssetUnlocked        Type = "asset_unlocked"
	TypeSettlementConfirmed  Type = "settlement_confirmed"
	TypeVaultPaused          Type = "vault_paused"
	TypeVaultUnpaused        Type = "vault_unpaused"
	TypeVaultHalted          Type = "vault_halted"
	TypeAttestationAdded     Type = "attestation_added"
	TypeAttestationRevoked   Type = "attestation_revoked"
)

// Event is emitted from domain logic to capture ledger transitions. Keep it
// transport-agnostic so stores and sinks can fan out. Unused fields stay zero;
// the JSON encoding omits them.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	VaultID      id.VaultID      `json:"vault_id,omitzero"`
	Holder       id.Identity     `json:"holder,omitempty"`
	WithdrawalID id.WithdrawalID `json:"withdrawal_id,omitzero"`
	AssetID      id.AssetID      `json:"asset_id,omitzero"`
	ReceiptID    id.ReceiptID    `json:"receipt_id,omitzero"`
	EpochID      id.EpochID      `json:"epoch_id,omitempty"`

	Assets     uint64 `json:"assets,omitempty"`
	Shares     uint64 `json:"shares,omitempty"`
	TotalYield uint64 `json:"total_yield,omitempty"`
	PerShare   uint64 `json:"per_share,omitempty"`

	Issuer   id.Identity `json:"issuer,omitempty"`
	ProofRef string      `json:"proof_ref,omitempty"`

	RequestID string `json:"request_id,omitempty"`
}
