// Package models holds the custody receipt records owned by the settlement
// bridge.
package models

import (
	"time"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// ReceiptKind distinguishes what a settlement receipt confirms.
type ReceiptKind string

const (
	// KindWithdrawal confirms fiat movement for a pending withdrawal.
	KindWithdrawal ReceiptKind = "withdrawal"
	// KindAssetAdmission confirms custody of an asset pending vault admission.
	KindAssetAdmission ReceiptKind = "asset_admission"
)

// ReceiptStatus is confirmed or disputed. Confirmed receipts are immutable.
type ReceiptStatus string

const (
	StatusConfirmed ReceiptStatus = "confirmed"
	StatusDisputed  ReceiptStatus = "disputed"
)

// CustodyReceipt records one custodian settlement confirmation. The receipt
// ID is assigned by the custodian, which makes replay detection exact: a
// re-delivered receipt carries the same ID.
type CustodyReceipt struct {
	ID      id.ReceiptID `json:"receipt_id"`
	VaultID id.VaultID   `json:"vault_id"`
	Kind    ReceiptKind  `json:"kind"`

	WithdrawalID id.WithdrawalID `json:"withdrawal_id,omitzero"`
	AssetID      id.AssetID      `json:"asset_id,omitzero"`

	CustodianID id.Identity   `json:"custodian_id"`
	FiatAmount  uint64        `json:"fiat_amount"`
	Signature   []byte        `json:"signature"`
	Status      ReceiptStatus `json:"status"`
	ConfirmedAt time.Time     `json:"confirmed_at"`
}

// Reference returns the ledger object the receipt settles.
func (r *CustodyReceipt) Reference() string {
	if r.Kind == KindWithdrawal {
		return r.WithdrawalID.String()
	}
	return r.AssetID.String()
}

// NewConfirmedReceipt validates and constructs a confirmed receipt.
func NewConfirmedReceipt(receiptID id.ReceiptID, vaultID id.VaultID, kind ReceiptKind, withdrawalID id.WithdrawalID, assetID id.AssetID, custodian id.Identity, fiatAmount uint64, signature []byte, now time.Time) (*CustodyReceipt, error) {
	switch kind {
	case KindWithdrawal:
		if withdrawalID.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "withdrawal receipt needs a withdrawal id")
		}
	case KindAssetAdmission:
		if assetID.IsZero() {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "admission receipt needs an asset id")
		}
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown receipt kind")
	}
	if len(signature) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "receipt signature must not be empty")
	}
	return &CustodyReceipt{
		ID:           receiptID,
		VaultID:      vaultID,
		Kind:         kind,
		WithdrawalID: withdrawalID,
		AssetID:      assetID,
		CustodianID:  custodian,
		FiatAmount:   fiatAmount,
		Signature:    signature,
		Status:       StatusConfirmed,
		ConfirmedAt:  now,
	}, nil
}
