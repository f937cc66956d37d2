package models

import (
	"time"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// Attestation is a signed eligibility claim for one identity.
//
// Invariants:
//   - At most one active attestation per identity; adding a new one
//     supersedes the prior (history is retained, latest wins)
//   - Revocation is one-way and idempotent; a revoked attestation never
//     becomes eligible again
//   - AttestationHash binds the off-ledger claim set; the ledger never sees
//     the underlying identity data
//   - Issuer must be on the attestor allow-list at the time of issuance
type Attestation struct {
	Identity        id.Identity `json:"identity"`
	AttestationHash string      `json:"attestation_hash"`
	Issuer          id.Identity `json:"issuer"`
	IssuedAt        time.Time   `json:"issued_at"`
	Expiry          time.Time   `json:"expiry"`
	Revoked         bool        `json:"revoked"`
}

// Eligible reports whether this attestation grants eligibility at the given
// instant: present, not revoked, not expired.
func (a *Attestation) Eligible(now time.Time) bool {
	return !a.Revoked && now.Before(a.Expiry)
}

// ApplyRevocation marks the attestation revoked. Idempotent.
func (a *Attestation) ApplyRevocation() {
	a.Revoked = true
}

// NewAttestation validates and constructs an attestation record.
func NewAttestation(identity id.Identity, hash string, issuer id.Identity, now, expiry time.Time) (*Attestation, error) {
	if identity == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "attestation identity must not be empty")
	}
	if hash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "attestation hash must not be empty")
	}
	if !expiry.After(now) {
		return nil, dErrors.New(dErrors.CodeValidation, "attestation expiry must be in the future")
	}
	return &Attestation{
		Identity:        identity,
		AttestationHash: hash,
		Issuer:          issuer,
		IssuedAt:        now,
		Expiry:          expiry,
	}, nil
}

// Status is the read-model view exposed to the presentation layer. It carries
// no claim data, only the eligibility verdict and its reason.
type Status struct {
	Identity  id.Identity `json:"identity"`
	Eligible  bool        `json:"eligible"`
	Reason    string      `json:"reason,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}
