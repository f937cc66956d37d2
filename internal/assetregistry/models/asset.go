package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// LockState tracks an asset's admission into vault collateral.
//
// Two-phase lock: LockForVault records *intent* (LockPending); only a
// custodial settlement confirmation promotes the asset to Locked. An asset is
// vault collateral iff state == Locked — a pending lock contributes nothing
// to TVL, so collateral that was never custodied can never be recognized.
type LockState string

const (
	LockStateUnlocked LockState = "unlocked"
	LockStatePending  LockState = "lock_pending"
	LockStateLocked   LockState = "locked"
)

// Asset is a minted record for one tokenized real-world asset.
//
// Invariants:
//   - Valuation is strictly positive
//   - Maturity is strictly in the future at mint time
//   - Lock transitions: unlocked → lock_pending → locked, plus the
//     custodian-dispute reversal locked → unlocked; no other transitions
//   - Fields other than lock state are immutable after mint
type Asset struct {
	ID          id.AssetID      `json:"asset_id"`
	Issuer      id.Identity     `json:"issuer"`
	MetadataRef string          `json:"metadata_ref"`
	ProofHash   string          `json:"proof_hash"`
	Valuation   decimal.Decimal `json:"valuation"`
	Maturity    time.Time       `json:"maturity"`
	LockState   LockState       `json:"lock_state"`
	VaultRef    id.VaultID      `json:"vault_ref,omitzero"`
	MintedAt    time.Time       `json:"minted_at"`
}

// Collateral reports whether the asset counts as vault collateral.
func (a *Asset) Collateral() bool {
	return a.LockState == LockStateLocked
}

// CanLockForVault checks the lock-intent transition.
func (a *Asset) CanLockForVault(caller id.Identity) error {
	if caller != a.Issuer {
		return dErrors.New(dErrors.CodeUnauthorized, "only the asset issuer may lock it for a vault")
	}
	if a.LockState != LockStateUnlocked {
		return dErrors.New(dErrors.CodeAlreadyLocked, "asset is already locked or pending lock")
	}
	return nil
}

// ApplyLockIntent records the vault the asset is being admitted into.
func (a *Asset) ApplyLockIntent(vaultRef id.VaultID) {
	a.LockState = LockStatePending
	a.VaultRef = vaultRef
}

// CanConfirmLock checks the custody-confirmation transition.
func (a *Asset) CanConfirmLock() error {
	if a.LockState != LockStatePending {
		return dErrors.New(dErrors.CodeUnknownReference, "asset has no pending lock to confirm")
	}
	return nil
}

// ApplyLockConfirmation promotes the asset to confirmed collateral.
func (a *Asset) ApplyLockConfirmation() {
	a.LockState = LockStateLocked
}

// CanForceUnlock checks the dispute reversal of a confirmed lock.
func (a *Asset) CanForceUnlock() error {
	if a.LockState != LockStateLocked {
		return dErrors.New(dErrors.CodeConflict, "asset lock is not confirmed, nothing to dispute")
	}
	return nil
}

// ApplyForceUnlock reverts a confirmed lock after a settlement dispute.
func (a *Asset) ApplyForceUnlock() {
	a.LockState = LockStateUnlocked
	a.VaultRef = id.VaultID{}
}

// NewAsset validates and constructs a minted asset record.
func NewAsset(issuer id.Identity, metadataRef, proofHash string, valuation decimal.Decimal, maturity, now time.Time) (*Asset, error) {
	if issuer == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset issuer must not be empty")
	}
	if metadataRef == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "asset metadata reference must not be empty")
	}
	if !valuation.IsPositive() {
		return nil, dErrors.New(dErrors.CodeValidation, "asset valuation must be positive")
	}
	if !maturity.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "asset maturity must be in the future")
	}
	return &Asset{
		ID:          id.NewAssetID(),
		Issuer:      issuer,
		MetadataRef: metadataRef,
		ProofHash:   proofHash,
		Valuation:   valuation,
		Maturity:    maturity,
		LockState:   LockStateUnlocked,
		MintedAt:    now,
	}, nil
}
