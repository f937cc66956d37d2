package models

import (
	"math"
	"math/big"

	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
)

// Ledger is the single-writer aggregate for one vault: the header plus every
// share account and withdrawal the vault owns. Stores hand a Ledger to a
// validate-then-mutate callback pair under the vault's write lock, so no two
// mutations of the same vault ever interleave.
type Ledger struct {
	Vault       *Vault
	Accounts    map[id.Identity]*ShareAccount
	Withdrawals map[id.WithdrawalID]*PendingWithdrawal
}

// NewLedger wraps a freshly created vault with empty books.
func NewLedger(vault *Vault) *Ledger {
	return &Ledger{
		Vault:       vault,
		Accounts:    make(map[id.Identity]*ShareAccount),
		Withdrawals: make(map[id.WithdrawalID]*PendingWithdrawal),
	}
}

// Account returns the holder's share account, creating an empty one on first
// touch.
func (l *Ledger) Account(holder id.Identity) *ShareAccount {
	acct, ok := l.Accounts[holder]
	if !ok {
		acct = &ShareAccount{VaultID: l.Vault.ID, Holder: holder}
		l.Accounts[holder] = acct
	}
	return acct
}

// Withdrawal looks up one withdrawal by ID.
func (l *Ledger) Withdrawal(withdrawalID id.WithdrawalID) (*PendingWithdrawal, bool) {
	w, ok := l.Withdrawals[withdrawalID]
	return w, ok
}

// ShareSum adds up every account's full position, escrow included.
func (l *Ledger) ShareSum() uint64 {
	var sum uint64
	for _, acct := range l.Accounts {
		sum += acct.Total()
	}
	return sum
}

// ConservationHolds checks the core ledger invariant: the share accounts sum
// to exactly the vault's outstanding supply.
func (l *Ledger) ConservationHolds() bool {
	return l.ShareSum() == l.Vault.TotalShares
}

// Clone deep-copies the aggregate so callers never alias store-owned state.
func (l *Ledger) Clone() *Ledger {
	out := NewLedger(&Vault{})
	*out.Vault = *l.Vault
	for holder, acct := range l.Accounts {
		copied := *acct
		out.Accounts[holder] = &copied
	}
	for withdrawalID, w := range l.Withdrawals {
		copied := *w
		if w.ResolvedAt != nil {
			resolved := *w.ResolvedAt
			copied.ResolvedAt = &resolved
		}
		out.Withdrawals[withdrawalID] = &copied
	}
	return out
}

// SharesForDeposit computes proportional share issuance, rounding down. The
// first deposit into an empty vault mints shares one-to-one; thereafter
// shares = assets * total_shares / tvl, with a big.Int intermediate so the
// product cannot overflow uint64 arithmetic.
func SharesForDeposit(assets, totalShares, tvl uint64) (uint64, error) {
	if assets == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit amount must be positive")
	}
	if totalShares == 0 {
		return assets, nil
	}
	if tvl == 0 {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "shares outstanding with zero backing")
	}
	if assets > math.MaxUint64-tvl {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit overflows vault backing")
	}

	product := new(big.Int).Mul(new(big.Int).SetUint64(assets), new(big.Int).SetUint64(totalShares))
	quotient := product.Quo(product, new(big.Int).SetUint64(tvl))
	if !quotient.IsUint64() {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit overflows share supply")
	}
	shares := quotient.Uint64()
	if shares == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit too small to mint a share")
	}
	if shares > math.MaxUint64-totalShares {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit overflows share supply")
	}
	return shares, nil
}

// AssetsForShares converts shares to backing assets at the current exchange
// rate, rounding down. Used to fix a withdrawal's asset amount at request
// time.
func AssetsForShares(shares, tvl, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "no shares outstanding")
	}
	product := new(big.Int).Mul(new(big.Int).SetUint64(shares), new(big.Int).SetUint64(tvl))
	quotient := product.Quo(product, new(big.Int).SetUint64(totalShares))
	if !quotient.IsUint64() {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "withdrawal amount exceeds vault backing")
	}
	return quotient.Uint64(), nil
}
