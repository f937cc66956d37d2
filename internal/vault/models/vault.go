// Package models holds the vault ledger aggregates: the vault header, per
// holder share accounts, and the pending withdrawal queue. All accounting is
// in unsigned minor units; proportional conversions round down.
package models

import (
	"time"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// Vault is the per-vault accounting header.
//
// Invariants:
//   - TotalValueLocked increases only via confirmed deposits and decreases
//     only via confirmed withdrawals or write-downs; it never goes negative
//   - TotalShares equals the sum of all share accounts (liquid + escrowed)
//   - Halted is terminal until operator intervention: every mutation on a
//     halted vault fails
type Vault struct {
	ID          id.VaultID  `json:"vault_id"`
	Strategy    string      `json:"strategy"`
	RiskScore   int         `json:"risk_score"`
	CustodianID id.Identity `json:"custodian_id"`

	TotalValueLocked uint64 `json:"total_value_locked"`
	TotalShares      uint64 `json:"total_shares"`

	Paused     bool      `json:"paused"`
	Halted     bool      `json:"halted"`
	HaltReason string    `json:"halt_reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewVault validates and constructs a vault. The custodian identity is the
// public key settlement receipts for this vault must verify against.
func NewVault(strategy string, riskScore int, custodian id.Identity, now time.Time) (*Vault, error) {
	if strategy == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vault strategy must not be empty")
	}
	if riskScore < 0 || riskScore > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "vault risk score must be between 0 and 100")
	}
	if custodian == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vault custodian must not be empty")
	}
	return &Vault{
		ID:          id.NewVaultID(),
		Strategy:    strategy,
		RiskScore:   riskScore,
		CustodianID: custodian,
		CreatedAt:   now,
	}, nil
}

// CanMutate is the base guard shared by every transition.
func (v *Vault) CanMutate() error {
	if v.Halted {
		return dErrors.New(dErrors.CodeInvariantViolation, "vault is halted: "+v.HaltReason)
	}
	return nil
}

// CanAcceptDeposit checks the deposit admission guards.
func (v *Vault) CanAcceptDeposit() error {
	if err := v.CanMutate(); err != nil {
		return err
	}
	if v.Paused {
		return dErrors.New(dErrors.CodePaused, "vault is paused")
	}
	return nil
}

// CanAcceptWithdrawalRequest checks the withdrawal-request guards.
func (v *Vault) CanAcceptWithdrawalRequest() error {
	return v.CanAcceptDeposit()
}

// CanSettle guards settlement-side transitions. Pause does not block these:
// in-flight custody must never be stranded behind an operator pause.
func (v *Vault) CanSettle() error {
	return v.CanMutate()
}

// ApplyDeposit books a confirmed deposit.
func (v *Vault) ApplyDeposit(assets, shares uint64) {
	v.TotalValueLocked += assets
	v.TotalShares += shares
}

// ApplyBurn books a fulfilled withdrawal: escrowed shares are destroyed and
// the backing assets leave the vault.
func (v *Vault) ApplyBurn(assets, shares uint64) {
	v.TotalValueLocked -= assets
	v.TotalShares -= shares
}

// CanPause checks the pause transition.
func (v *Vault) CanPause() error {
	if err := v.CanMutate(); err != nil {
		return err
	}
	if v.Paused {
		return dErrors.New(dErrors.CodeConflict, "vault is already paused")
	}
	return nil
}

// ApplyPause marks the vault paused.
func (v *Vault) ApplyPause() { v.Paused = true }

// CanUnpause checks the unpause transition.
func (v *Vault) CanUnpause() error {
	if err := v.CanMutate(); err != nil {
		return err
	}
	if !v.Paused {
		return dErrors.New(dErrors.CodeConflict, "vault is not paused")
	}
	return nil
}

// ApplyUnpause clears the paused flag.
func (v *Vault) ApplyUnpause() { v.Paused = false }

// ApplyHalt freezes the vault after a detected invariant violation.
func (v *Vault) ApplyHalt(reason string) {
	v.Halted = true
	v.HaltReason = reason
}
