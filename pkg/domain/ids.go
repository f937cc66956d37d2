// Package domain holds the typed identifiers shared across the ledger.
//
// IDs are distinct types over uuid.UUID so the compiler rejects cross-type
// assignment (a WithdrawalID can never be passed where a VaultID is wanted).
// Identity is the one exception: it is an opaque public key supplied by the
// attestation source, never a UUID minted here, and never personal data.
package domain

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	dErrors "aurum/pkg/domain-errors"
)

type (
	// VaultID identifies a vault instance.
	VaultID uuid.UUID
	// AssetID identifies a tokenized real-world asset record.
	AssetID uuid.UUID
	// WithdrawalID identifies a pending withdrawal.
	WithdrawalID uuid.UUID
	// ReceiptID identifies a custody receipt. Assigned by the custodian, so it
	// is parsed, never minted locally.
	ReceiptID uuid.UUID
	// SnapshotID identifies a share snapshot taken for yield distribution.
	SnapshotID uuid.UUID
)

// EpochID is the yield oracle's epoch counter. It is assigned off-chain and
// strictly increasing per vault, so it is a plain integer rather than a UUID.
type EpochID uint64

// Identity is an opaque, hex-encoded public key. The ledger stores no PII;
// this is the only handle it ever has on a participant.
type Identity string

func (v VaultID) String() string      { return uuid.UUID(v).String() }
func (a AssetID) String() string      { return uuid.UUID(a).String() }
func (w WithdrawalID) String() string { return uuid.UUID(w).String() }
func (r ReceiptID) String() string    { return uuid.UUID(r).String() }
func (s SnapshotID) String() string   { return uuid.UUID(s).String() }

func (v VaultID) IsZero() bool      { return uuid.UUID(v) == uuid.Nil }
func (a AssetID) IsZero() bool      { return uuid.UUID(a) == uuid.Nil }
func (w WithdrawalID) IsZero() bool { return uuid.UUID(w) == uuid.Nil }

// NewVaultID mints a fresh vault identifier.
func NewVaultID() VaultID { return VaultID(uuid.New()) }

// NewAssetID mints a fresh asset identifier.
func NewAssetID() AssetID { return AssetID(uuid.New()) }

// NewWithdrawalID mints a fresh withdrawal identifier.
func NewWithdrawalID() WithdrawalID { return WithdrawalID(uuid.New()) }

// NewSnapshotID mints a fresh snapshot identifier.
func NewSnapshotID() SnapshotID { return SnapshotID(uuid.New()) }

func parseUUID(raw, kind string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseVaultID validates and parses a vault ID at a trust boundary.
func ParseVaultID(raw string) (VaultID, error) {
	parsed, err := parseUUID(raw, "vault")
	return VaultID(parsed), err
}

// ParseAssetID validates and parses an asset ID at a trust boundary.
func ParseAssetID(raw string) (AssetID, error) {
	parsed, err := parseUUID(raw, "asset")
	return AssetID(parsed), err
}

// ParseWithdrawalID validates and parses a withdrawal ID at a trust boundary.
func ParseWithdrawalID(raw string) (WithdrawalID, error) {
	parsed, err := parseUUID(raw, "withdrawal")
	return WithdrawalID(parsed), err
}

// ParseReceiptID validates and parses a custodian-assigned receipt ID.
func ParseReceiptID(raw string) (ReceiptID, error) {
	parsed, err := parseUUID(raw, "receipt")
	return ReceiptID(parsed), err
}

// ParseSnapshotID validates and parses a snapshot ID at a trust boundary.
func ParseSnapshotID(raw string) (SnapshotID, error) {
	parsed, err := parseUUID(raw, "snapshot")
	return SnapshotID(parsed), err
}

// ParseIdentity validates that an identity is non-empty hex of plausible key
// length. The ledger treats the bytes as opaque; it only rejects garbage early.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must not be empty")
	}
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity must be hex encoded")
	}
	if len(decoded) < 16 || len(decoded) > 64 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "identity key length out of range")
	}
	return Identity(raw), nil
}

// Bytes returns the decoded key material. Valid identities always decode; a
// hand-constructed invalid Identity yields nil.
func (i Identity) Bytes() []byte {
	decoded, err := hex.DecodeString(string(i))
	if err != nil {
		return nil
	}
	return decoded
}
