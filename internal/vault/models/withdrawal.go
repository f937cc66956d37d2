package models

import (
	"time"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// WithdrawalStatus is the pending-withdrawal state machine:
//
//	requested → awaiting_custody → {fulfilled | rejected}
//	requested → cancelled
//
// Terminal states are final; nothing re-enters requested. Once custody has
// been engaged (awaiting_custody) only settlement or an admin-authorized
// reject path resolves the withdrawal.
type WithdrawalStatus string

const (
	StatusRequested       WithdrawalStatus = "requested"
	StatusAwaitingCustody WithdrawalStatus = "awaiting_custody"
	StatusFulfilled       WithdrawalStatus = "fulfilled"
	StatusRejected        WithdrawalStatus = "rejected"
	StatusCancelled       WithdrawalStatus = "cancelled"
)

// PendingWithdrawal is one queued exit from a vault. AssetAmount is fixed at
// request time using the exchange rate then in effect, so yield credited
// after queuing never double-counts against the withdrawal.
type PendingWithdrawal struct {
	ID      id.WithdrawalID `json:"withdrawal_id"`
	VaultID id.VaultID      `json:"vault_id"`
	Holder  id.Identity     `json:"holder"`

	Shares      uint64 `json:"shares"`
	AssetAmount uint64 `json:"asset_amount"`

	Status      WithdrawalStatus `json:"status"`
	ProofRef    string           `json:"proof_ref,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

// NewPendingWithdrawal constructs a withdrawal in the requested state.
func NewPendingWithdrawal(withdrawalID id.WithdrawalID, vaultID id.VaultID, holder id.Identity, shares, assetAmount uint64, now time.Time) *PendingWithdrawal {
	return &PendingWithdrawal{
		ID:          withdrawalID,
		VaultID:     vaultID,
		Holder:      holder,
		Shares:      shares,
		AssetAmount: assetAmount,
		Status:      StatusRequested,
		RequestedAt: now,
	}
}

// Open reports whether the withdrawal still holds escrowed shares.
func (w *PendingWithdrawal) Open() bool {
	return w.Status == StatusRequested || w.Status == StatusAwaitingCustody
}

// CanAttachProof checks the requested → awaiting_custody transition.
func (w *PendingWithdrawal) CanAttachProof() error {
	switch w.Status {
	case StatusRequested:
		return nil
	case StatusAwaitingCustody:
		return dErrors.New(dErrors.CodeConflict, "withdrawal already awaits custody")
	default:
		return dErrors.New(dErrors.CodeConflict, "withdrawal is already resolved")
	}
}

// ApplyProof records the verified eligibility proof and engages custody.
func (w *PendingWithdrawal) ApplyProof(proofRef string) {
	w.Status = StatusAwaitingCustody
	w.ProofRef = proofRef
}

// CanCancel checks the holder-initiated cancellation. Only the requesting
// holder may cancel, and only before custody is engaged.
func (w *PendingWithdrawal) CanCancel(caller id.Identity) error {
	if caller != w.Holder {
		return dErrors.New(dErrors.CodeUnauthorized, "only the requesting holder may cancel")
	}
	if w.Status != StatusRequested {
		return dErrors.New(dErrors.CodeConflict, "withdrawal can no longer be cancelled")
	}
	return nil
}

// ApplyCancel resolves the withdrawal as cancelled.
func (w *PendingWithdrawal) ApplyCancel(now time.Time) {
	w.Status = StatusCancelled
	w.ResolvedAt = &now
}

// CanFulfill checks the awaiting_custody → fulfilled transition.
func (w *PendingWithdrawal) CanFulfill() error {
	if w.Status != StatusAwaitingCustody {
		return dErrors.New(dErrors.CodeUnknownReference, "no withdrawal awaiting custody under this id")
	}
	return nil
}

// ApplyFulfill resolves the withdrawal after custodial confirmation.
func (w *PendingWithdrawal) ApplyFulfill(now time.Time) {
	w.Status = StatusFulfilled
	w.ResolvedAt = &now
}

// CanReject checks the awaiting_custody → rejected transition.
func (w *PendingWithdrawal) CanReject() error {
	if w.Status != StatusAwaitingCustody {
		return dErrors.New(dErrors.CodeUnknownReference, "no withdrawal awaiting custody under this id")
	}
	return nil
}

// ApplyReject resolves the withdrawal as rejected; escrow is restored by the
// owning ledger transition.
func (w *PendingWithdrawal) ApplyReject(now time.Time) {
	w.Status = StatusRejected
	w.ResolvedAt = &now
}
