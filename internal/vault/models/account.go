package models

import (
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// ShareAccount tracks one holder's position in one vault. Liquid shares are
// freely withdrawable; escrowed shares back a pending withdrawal and are
// burned on fulfillment or restored on rejection and cancellation.
type ShareAccount struct {
	VaultID  id.VaultID  `json:"vault_id"`
	Holder   id.Identity `json:"holder"`
	Liquid   uint64      `json:"liquid"`
	Escrowed uint64      `json:"escrowed"`
}

// Total is the holder's full position, escrow included. Escrowed shares still
// belong to the holder until they are burned, so snapshots count them.
func (a *ShareAccount) Total() uint64 {
	return a.Liquid + a.Escrowed
}

// CanEscrow checks the holder has enough liquid shares to queue a withdrawal.
func (a *ShareAccount) CanEscrow(shares uint64) error {
	if shares == 0 {
		return dErrors.New(dErrors.CodeValidation, "withdrawal shares must be positive")
	}
	if shares > a.Liquid {
		return dErrors.New(dErrors.CodeInsufficientShares, "requested shares exceed liquid balance")
	}
	return nil
}

// ApplyEscrow moves shares from the liquid balance into escrow.
func (a *ShareAccount) ApplyEscrow(shares uint64) {
	a.Liquid -= shares
	a.Escrowed += shares
}

// ApplyRelease returns escrowed shares to the liquid balance.
func (a *ShareAccount) ApplyRelease(shares uint64) {
	a.Escrowed -= shares
	a.Liquid += shares
}

// ApplyBurn destroys escrowed shares on fulfillment.
func (a *ShareAccount) ApplyBurn(shares uint64) {
	a.Escrowed -= shares
}

// ApplyMint credits newly issued shares to the liquid balance.
func (a *ShareAccount) ApplyMint(shares uint64) {
	a.Liquid += shares
}
