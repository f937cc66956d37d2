// Package service implements the vault ledger: deposits, the pending
// withdrawal queue, escrow, and the halt path for detected invariant
// violations. Admission is gated by the compliance registry for deposits and
// by the ZK gate for withdrawals; settlement-side transitions are invoked
// only by the custody bridge.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"aurum/internal/events"
	vaultmetrics "aurum/internal/vault/metrics"
	"aurum/internal/vault/models"
	"aurum/internal/zkgate"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/requestcontext"
)

// Store is the persistence port for vault books. Execute must serialize
// mutations per vault and apply validate-then-mutate atomically.
type Store interface {
	CreateVault(ctx context.Context, vault *models.Vault) error
	View(ctx context.Context, vaultID id.VaultID) (*models.Ledger, error)
	ListVaultIDs(ctx context.Context) ([]id.VaultID, error)
	Execute(ctx context.Context, vaultID id.VaultID, validate func(*models.Ledger) error, mutate func(*models.Ledger)) (*models.Ledger, error)
}

// ComplianceChecker answers deposit eligibility. Implemented by the
// compliance registry service.
type ComplianceChecker interface {
	IsCompliant(ctx context.Context, identity id.Identity) (bool, error)
}

// ProofGate verifies withdrawal eligibility proofs. Implemented by the ZK
// gate.
type ProofGate interface {
	Verify(ctx context.Context, proof zkgate.Proof) bool
}

// Service is the vault ledger.
type Service struct {
	store      Store
	compliance ComplianceChecker
	gate       ProofGate
	metrics    *vaultmetrics.Metrics
	events     *events.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *vaultmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func NewService(store Store, compliance ComplianceChecker, gate ProofGate, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		compliance: compliance,
		gate:       gate,
		logger:     logger,
		tracer:     otel.Tracer("aurum/vault"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateVaultRequest carries the vault creation parameters.
type CreateVaultRequest struct {
	Strategy  string
	RiskScore int
	Custodian id.Identity
}

// CreateVault registers a new empty vault. Admin-only.
func (s *Service) CreateVault(ctx context.Context, req CreateVaultRequest) (*models.Vault, error) {
	if requestcontext.AdminSubject(ctx) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "vault creation requires admin role")
	}
	vault, err := models.NewVault(req.Strategy, req.RiskScore, req.Custodian, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVault(ctx, vault); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vault")
	}
	return vault, nil
}

// Deposit books a confirmed deposit and mints proportional shares. Fails
// NotCompliant before touching the books; a rejected deposit leaves no
// partial writes.
func (s *Service) Deposit(ctx context.Context, vaultID id.VaultID, holder id.Identity, assets uint64) (uint64, error) {
	ctx, span := s.tracer.Start(ctx, "vault.Deposit", trace.WithAttributes(
		attribute.String("vault_id", vaultID.String()),
	))
	defer span.End()

	eligible, err := s.compliance.IsCompliant(ctx, holder)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check depositor eligibility")
	}
	if !eligible {
		return 0, dErrors.New(dErrors.CodeNotCompliant, "depositor holds no eligible attestation")
	}

	var shares uint64
	ledger, err := s.store.Execute(ctx, vaultID,
		func(l *models.Ledger) error {
			if err := l.Vault.CanAcceptDeposit(); err != nil {
				return err
			}
			minted, err := models.SharesForDeposit(assets, l.Vault.TotalShares, l.Vault.TotalValueLocked)
			if err != nil {
				return err
			}
			shares = minted
			return nil
		},
		func(l *models.Ledger) {
			l.Account(holder).ApplyMint(shares)
			l.Vault.ApplyDeposit(assets, shares)
		},
	)
	if err != nil {
		return 0, s.ledgerError(err, "deposit")
	}
	if err := s.guardConservation(ctx, ledger); err != nil {
		return 0, err
	}

	s.metrics.IncrementDeposits()
	s.observeTotals(ledger)
	s.emit(ctx, events.Event{
		Type:    events.TypeDeposited,
		VaultID: vaultID,
		Holder:  holder,
		Assets:  assets,
		Shares:  shares,
	})
	return shares, nil
}

// RequestWithdrawal escrows shares and queues a withdrawal in the requested
// state. The asset amount is fixed here, at the exchange rate now in effect.
func (s *Service) RequestWithdrawal(ctx context.Context, vaultID id.VaultID, holder id.Identity, shares uint64) (*models.PendingWithdrawal, error) {
	ctx, span := s.tracer.Start(ctx, "vault.RequestWithdrawal", trace.WithAttributes(
		attribute.String("vault_id", vaultID.String()),
	))
	defer span.End()

	withdrawalID := id.NewWithdrawalID()
	now := requestcontext.Now(ctx)

	var withdrawal *models.PendingWithdrawal
	ledger, err := s.store.Execute(ctx, vaultID,
		func(l *models.Ledger) error {
			if err := l.Vault.CanAcceptWithdrawalRequest(); err != nil {
				return err
			}
			if err := l.Account(holder).CanEscrow(shares); err != nil {
				return err
			}
			assetAmount, err := models.AssetsForShares(shares, l.Vault.TotalValueLocked, l.Vault.TotalShares)
			if err != nil {
				return err
			}
			withdrawal = models.NewPendingWithdrawal(withdrawalID, vaultID, holder, shares, assetAmount, now)
			return nil
		},
		func(l *models.Ledger) {
			l.Account(holder).ApplyEscrow(shares)
			l.Withdrawals[withdrawalID] = withdrawal
		},
	)
	if err != nil {
		return nil, s.ledgerError(err, "withdrawal request")
	}
	if err := s.guardConservation(ctx, ledger); err != nil {
		return nil, err
	}

	s.metrics.IncrementRequested()
	s.emit(ctx, events.Event{
		Type:         events.TypeWithdrawalRequested,
		VaultID:      vaultID,
		Holder:       holder,
		WithdrawalID: withdrawalID,
		Shares:       shares,
		Assets:       withdrawal.AssetAmount,
	})
	return withdrawal, nil
}

// AttachWithdrawalProof verifies the eligible-withdrawer proof bound to the
// withdrawal and engages custody. Verification is synchronous with the
// transition it gates; an invalid proof leaves the withdrawal requested.
func (s *Service) AttachWithdrawalProof(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID, proof zkgate.Proof) (*models.PendingWithdrawal, error) {
	if proof.Statement != zkgate.StatementEligibleWithdrawer {
		return nil, dErrors.New(dErrors.CodeInvalidProof, "proof does not assert withdrawal eligibility")
	}
	if proof.PublicInputs.ActionBinding != withdrawalID.String() {
		return nil, dErrors.New(dErrors.CodeInvalidProof, "proof is not bound to this withdrawal")
	}
	if !s.gate.Verify(ctx, proof) {
		return nil, dErrors.New(dErrors.CodeInvalidProof, "withdrawal proof verification failed")
	}

	withdrawal, err := s.transitionWithdrawal(ctx, vaultID, withdrawalID,
		func(l *models.Ledger, w *models.PendingWithdrawal) error {
			if err := l.Vault.CanSettle(); err != nil {
				return err
			}
			return w.CanAttachProof()
		},
		func(l *models.Ledger, w *models.PendingWithdrawal) {
			w.ApplyProof(proof.PublicInputs.Nullifier)
		},
	)
	if err != nil {
		return nil, err
	}
	return withdrawal, nil
}

// CancelWithdrawal lets the requesting holder withdraw a still-requested
// withdrawal. Once custody is engaged only settlement resolves it.
func (s *Service) CancelWithdrawal(ctx context.Context, vaultID id.VaultID, holder id.Identity, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error) {
	now := requestcontext.Now(ctx)
	withdrawal, err := s.transitionWithdrawal(ctx, vaultID, withdrawalID,
		func(l *models.Ledger, w *models.PendingWithdrawal) error {
			if err := l.Vault.CanMutate(); err != nil {
				return err
			}
			return w.CanCancel(holder)
		},
		func(l *models.Ledger, w *models.PendingWithdrawal) {
			l.Account(w.Holder).ApplyRelease(w.Shares)
			w.ApplyCancel(now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementCancelled()
	s.emit(ctx, events.Event{
		Type:         events.TypeWithdrawalCancelled,
		VaultID:      vaultID,
		Holder:       holder,
		WithdrawalID: withdrawalID,
		Shares:       withdrawal.Shares,
	})
	return withdrawal, nil
}

// FulfillWithdrawal burns the escrowed shares and releases backing after
// custodial confirmation. Called only by the custody bridge; permitted while
// paused so in-flight settlement is never stranded.
func (s *Service) FulfillWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error) {
	ctx, span := s.tracer.Start(ctx, "vault.FulfillWithdrawal", trace.WithAttributes(
		attribute.String("vault_id", vaultID.String()),
		attribute.String("withdrawal_id", withdrawalID.String()),
	))
	defer span.End()

	now := requestcontext.Now(ctx)
	withdrawal, err := s.transitionWithdrawal(ctx, vaultID, withdrawalID,
		func(l *models.Ledger, w *models.PendingWithdrawal) error {
			if err := l.Vault.CanSettle(); err != nil {
				return err
			}
			if err := w.CanFulfill(); err != nil {
				return err
			}
			if w.AssetAmount > l.Vault.TotalValueLocked || w.Shares > l.Vault.TotalShares {
				return dErrors.New(dErrors.CodeInvariantViolation, "withdrawal exceeds recorded vault backing")
			}
			return nil
		},
		func(l *models.Ledger, w *models.PendingWithdrawal) {
			l.Account(w.Holder).ApplyBurn(w.Shares)
			l.Vault.ApplyBurn(w.AssetAmount, w.Shares)
			w.ApplyFulfill(now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementFulfilled()
	s.emit(ctx, events.Event{
		Type:         events.TypeWithdrawalFulfilled,
		VaultID:      vaultID,
		Holder:       withdrawal.Holder,
		WithdrawalID: withdrawalID,
		Shares:       withdrawal.Shares,
		Assets:       withdrawal.AssetAmount,
		ProofRef:     withdrawal.ProofRef,
	})
	return withdrawal, nil
}

// RejectWithdrawal restores escrow after the custodian or an admin resolves
// a settlement against the withdrawal.
func (s *Service) RejectWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error) {
	now := requestcontext.Now(ctx)
	withdrawal, err := s.transitionWithdrawal(ctx, vaultID, withdrawalID,
		func(l *models.Ledger, w *models.PendingWithdrawal) error {
			if err := l.Vault.CanSettle(); err != nil {
				return err
			}
			return w.CanReject()
		},
		func(l *models.Ledger, w *models.PendingWithdrawal) {
			l.Account(w.Holder).ApplyRelease(w.Shares)
			w.ApplyReject(now)
		},
	)
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementRejected()
	s.emit(ctx, events.Event{
		Type:         events.TypeWithdrawalRejected,
		VaultID:      vaultID,
		Holder:       withdrawal.Holder,
		WithdrawalID: withdrawalID,
		Shares:       withdrawal.Shares,
	})
	return withdrawal, nil
}

// Pause blocks deposits and withdrawal requests. Admin-only; settlement of
// already-queued withdrawals continues.
func (s *Service) Pause(ctx context.Context, vaultID id.VaultID) error {
	return s.setPaused(ctx, vaultID, true)
}

// Unpause reopens the vault. Admin-only.
func (s *Service) Unpause(ctx context.Context, vaultID id.VaultID) error {
	return s.setPaused(ctx, vaultID, false)
}

func (s *Service) setPaused(ctx context.Context, vaultID id.VaultID, paused bool) error {
	if requestcontext.AdminSubject(ctx) == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "pause state changes require admin role")
	}
	_, err := s.store.Execute(ctx, vaultID,
		func(l *models.Ledger) error {
			if paused {
				return l.Vault.CanPause()
			}
			return l.Vault.CanUnpause()
		},
		func(l *models.Ledger) {
			if paused {
				l.Vault.ApplyPause()
			} else {
				l.Vault.ApplyUnpause()
			}
		},
	)
	if err != nil {
		return s.ledgerError(err, "pause change")
	}

	eventType := events.TypeVaultPaused
	if !paused {
		eventType = events.TypeVaultUnpaused
	}
	s.emit(ctx, events.Event{Type: eventType, VaultID: vaultID})
	return nil
}

// Halt freezes a vault after a detected invariant violation. Every later
// mutation fails until operator intervention; there is no silent repair.
func (s *Service) Halt(ctx context.Context, vaultID id.VaultID, reason string) error {
	_, err := s.store.Execute(ctx, vaultID,
		func(l *models.Ledger) error { return nil },
		func(l *models.Ledger) { l.Vault.ApplyHalt(reason) },
	)
	if err != nil {
		return s.ledgerError(err, "halt")
	}
	s.metrics.IncrementHalted()
	s.logger.ErrorContext(ctx, "vault halted",
		"vault_id", vaultID.String(),
		"reason", reason,
	)
	s.emit(ctx, events.Event{Type: events.TypeVaultHalted, VaultID: vaultID})
	return nil
}

// GetVault returns the vault header.
func (s *Service) GetVault(ctx context.Context, vaultID id.VaultID) (*models.Vault, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	return ledger.Vault, nil
}

// ShareBalance returns the holder's account; holders the vault has never
// seen get an empty account, not an error.
func (s *Service) ShareBalance(ctx context.Context, vaultID id.VaultID, holder id.Identity) (*models.ShareAccount, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	if acct, ok := ledger.Accounts[holder]; ok {
		return acct, nil
	}
	return &models.ShareAccount{VaultID: vaultID, Holder: holder}, nil
}

// Withdrawals returns the holder's withdrawals, open and resolved.
func (s *Service) Withdrawals(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.PendingWithdrawal, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	var out []*models.PendingWithdrawal
	for _, w := range ledger.Withdrawals {
		if w.Holder == holder {
			out = append(out, w)
		}
	}
	return out, nil
}

// ListVaultIDs enumerates vaults for monitoring sweeps.
func (s *Service) ListVaultIDs(ctx context.Context) ([]id.VaultID, error) {
	vaultIDs, err := s.store.ListVaultIDs(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list vaults")
	}
	return vaultIDs, nil
}

// OpenWithdrawals returns every withdrawal still holding escrow, oldest
// first. The settlement backlog monitor reads through here.
func (s *Service) OpenWithdrawals(ctx context.Context, vaultID id.VaultID) ([]*models.PendingWithdrawal, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	var out []*models.PendingWithdrawal
	for _, w := range ledger.Withdrawals {
		if w.Open() {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

// GetWithdrawal returns one withdrawal by ID.
func (s *Service) GetWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*models.PendingWithdrawal, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	w, ok := ledger.Withdrawal(withdrawalID)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnknownReference, "withdrawal does not exist")
	}
	return w, nil
}

// SnapshotBalances captures every holder's full position (escrow included)
// and the outstanding share supply. The yield distributor snapshots through
// here.
func (s *Service) SnapshotBalances(ctx context.Context, vaultID id.VaultID) (map[id.Identity]uint64, uint64, error) {
	ledger, err := s.view(ctx, vaultID)
	if err != nil {
		return nil, 0, err
	}
	balances := make(map[id.Identity]uint64, len(ledger.Accounts))
	for holder, acct := range ledger.Accounts {
		if total := acct.Total(); total > 0 {
			balances[holder] = total
		}
	}
	return balances, ledger.Vault.TotalShares, nil
}

func (s *Service) view(ctx context.Context, vaultID id.VaultID) (*models.Ledger, error) {
	ledger, err := s.store.View(ctx, vaultID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "vault does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vault")
	}
	return ledger, nil
}

// transitionWithdrawal runs one withdrawal state transition inside the
// vault's serialized Execute, then re-checks share conservation.
func (s *Service) transitionWithdrawal(
	ctx context.Context,
	vaultID id.VaultID,
	withdrawalID id.WithdrawalID,
	validate func(*models.Ledger, *models.PendingWithdrawal) error,
	mutate func(*models.Ledger, *models.PendingWithdrawal),
) (*models.PendingWithdrawal, error) {
	var withdrawal *models.PendingWithdrawal
	ledger, err := s.store.Execute(ctx, vaultID,
		func(l *models.Ledger) error {
			w, ok := l.Withdrawal(withdrawalID)
			if !ok {
				return dErrors.New(dErrors.CodeUnknownReference, "withdrawal does not exist")
			}
			withdrawal = w
			return validate(l, w)
		},
		func(l *models.Ledger) {
			w, _ := l.Withdrawal(withdrawalID)
			withdrawal = w
			mutate(l, w)
		},
	)
	if err != nil {
		return nil, s.ledgerError(err, "withdrawal transition")
	}
	if err := s.guardConservation(ctx, ledger); err != nil {
		return nil, err
	}
	s.observeTotals(ledger)
	return withdrawal, nil
}

// guardConservation halts the vault when the share accounts no longer sum to
// the outstanding supply. Detection is fatal for the vault, not the process.
func (s *Service) guardConservation(ctx context.Context, ledger *models.Ledger) error {
	if ledger.ConservationHolds() {
		return nil
	}
	if err := s.Halt(ctx, ledger.Vault.ID, "share account sum diverged from total shares"); err != nil {
		s.logger.ErrorContext(ctx, "failed to halt vault after invariant breach",
			"vault_id", ledger.Vault.ID.String(),
			"error", err,
		)
	}
	return dErrors.New(dErrors.CodeInvariantViolation, "share conservation violated, vault halted")
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	event.RequestID = requestcontext.RequestID(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit ledger event",
			"type", string(event.Type),
			"error", err,
		)
	}
}

func (s *Service) observeTotals(ledger *models.Ledger) {
	s.metrics.SetVaultTotals(ledger.Vault.ID.String(), ledger.Vault.TotalValueLocked, ledger.Vault.TotalShares)
}

func (s *Service) ledgerError(err error, op string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeUnknownReference, "vault does not exist")
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to apply "+op)
}
