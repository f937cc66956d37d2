// Package service implements the custody settlement bridge: it reconciles
// signed custodian receipts against pending ledger operations. It is the only
// writer allowed to move a withdrawal out of awaiting_custody and the only
// path that promotes an asset lock to confirmed collateral.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	assetmodels "aurum/internal/assetregistry/models"
	custodymetrics "aurum/internal/custody/metrics"
	"aurum/internal/custody/models"
	"aurum/internal/events"
	vaultmodels "aurum/internal/vault/models"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/requestcontext"
)

// Ledger is the vault-side surface the bridge drives.
type Ledger interface {
	GetVault(ctx context.Context, vaultID id.VaultID) (*vaultmodels.Vault, error)
	GetWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*vaultmodels.PendingWithdrawal, error)
	FulfillWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*vaultmodels.PendingWithdrawal, error)
	RejectWithdrawal(ctx context.Context, vaultID id.VaultID, withdrawalID id.WithdrawalID) (*vaultmodels.PendingWithdrawal, error)
	ListVaultIDs(ctx context.Context) ([]id.VaultID, error)
	OpenWithdrawals(ctx context.Context, vaultID id.VaultID) ([]*vaultmodels.PendingWithdrawal, error)
}

// AssetRegistry is the asset-side surface the bridge drives.
type AssetRegistry interface {
	Get(ctx context.Context, assetID id.AssetID) (*assetmodels.Asset, error)
	ConfirmLock(ctx context.Context, assetID id.AssetID) (*assetmodels.Asset, error)
	ForceUnlock(ctx context.Context, assetID id.AssetID) (*assetmodels.Asset, error)
}

// YieldLedger answers whether yield has been distributed over a vault since a
// point in time. Guards the dispute path.
type YieldLedger interface {
	DistributedSince(ctx context.Context, vaultID id.VaultID, since time.Time) (bool, error)
}

// ReceiptStore is the persistence port for custody receipts.
type ReceiptStore interface {
	Create(ctx context.Context, receipt *models.CustodyReceipt) error
	FindByID(ctx context.Context, receiptID id.ReceiptID) (*models.CustodyReceipt, error)
	FindByReference(ctx context.Context, reference string) (*models.CustodyReceipt, error)
	MarkDisputed(ctx context.Context, receiptID id.ReceiptID) error
}

// Service is the settlement bridge.
type Service struct {
	receipts ReceiptStore
	ledger   Ledger
	assets   AssetRegistry
	yield    YieldLedger
	verifier ReceiptVerifier
	metrics  *custodymetrics.Metrics
	events   *events.Publisher
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *custodymetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

// WithVerifier overrides the receipt verifier. Production uses ed25519.
func WithVerifier(v ReceiptVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func NewService(receipts ReceiptStore, ledger Ledger, assets AssetRegistry, yield YieldLedger, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		receipts: receipts,
		ledger:   ledger,
		assets:   assets,
		yield:    yield,
		verifier: Ed25519Verifier{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConfirmSettlementRequest carries one custodian callback. Exactly one of
// WithdrawalID and AssetID must be set.
type ConfirmSettlementRequest struct {
	ReceiptID    id.ReceiptID
	VaultID      id.VaultID
	WithdrawalID id.WithdrawalID
	AssetID      id.AssetID
	CustodianID  id.Identity
	FiatAmount   uint64
	Signature    []byte
}

func (r ConfirmSettlementRequest) kind() (models.ReceiptKind, error) {
	switch {
	case !r.WithdrawalID.IsZero() && !r.AssetID.IsZero():
		return "", dErrors.New(dErrors.CodeInvalidInput, "receipt must settle a withdrawal or an asset, not both")
	case !r.WithdrawalID.IsZero():
		return models.KindWithdrawal, nil
	case !r.AssetID.IsZero():
		return models.KindAssetAdmission, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "receipt settles nothing")
	}
}

// ConfirmSettlement applies one signed custodian receipt. Idempotent by
// receipt ID: a re-delivered confirmed receipt is answered from the store
// without touching the ledger. Safe to invoke with arbitrary delay.
func (s *Service) ConfirmSettlement(ctx context.Context, req ConfirmSettlementRequest) (*models.CustodyReceipt, error) {
	existing, err := s.receipts.FindByID(ctx, req.ReceiptID)
	if err == nil {
		if existing.Status == models.StatusDisputed {
			return nil, dErrors.New(dErrors.CodeConflict, "receipt is under dispute")
		}
		s.metrics.IncrementReplays()
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check receipt replay")
	}

	kind, err := req.kind()
	if err != nil {
		return nil, err
	}

	vault, err := s.ledger.GetVault(ctx, req.VaultID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownReference, "vault does not exist")
		}
		return nil, err
	}
	if req.CustodianID != vault.CustodianID {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "receipt is not from this vault's custodian")
	}

	receipt, err := models.NewConfirmedReceipt(req.ReceiptID, req.VaultID, kind,
		req.WithdrawalID, req.AssetID, req.CustodianID, req.FiatAmount, req.Signature,
		requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	message := ReceiptMessage(receipt.ID, receipt.Reference(), receipt.FiatAmount)
	if !s.verifier.VerifyReceipt(vault.CustodianID, message, receipt.Signature) {
		return nil, dErrors.New(dErrors.CodeInvalidSignature, "receipt signature does not verify against the custodian key")
	}

	switch kind {
	case models.KindWithdrawal:
		if err := s.settleWithdrawal(ctx, receipt); err != nil {
			return nil, err
		}
	case models.KindAssetAdmission:
		if err := s.settleAdmission(ctx, receipt); err != nil {
			return nil, err
		}
	}

	if err := s.receipts.Create(ctx, receipt); err != nil {
		// The ledger transition is already committed; losing the receipt row
		// breaks replay detection, so this is loud.
		s.logger.ErrorContext(ctx, "settlement applied but receipt not recorded",
			"receipt_id", receipt.ID.String(),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record custody receipt")
	}

	s.metrics.IncrementConfirmed(string(kind))
	s.emit(ctx, events.Event{
		Type:         events.TypeSettlementConfirmed,
		VaultID:      receipt.VaultID,
		WithdrawalID: receipt.WithdrawalID,
		AssetID:      receipt.AssetID,
		ReceiptID:    receipt.ID,
		Assets:       receipt.FiatAmount,
	})
	return receipt, nil
}

func (s *Service) settleWithdrawal(ctx context.Context, receipt *models.CustodyReceipt) error {
	withdrawal, err := s.ledger.GetWithdrawal(ctx, receipt.VaultID, receipt.WithdrawalID)
	if err != nil {
		return err
	}
	if receipt.FiatAmount != withdrawal.AssetAmount {
		return dErrors.New(dErrors.CodeConflict, "fiat amount does not match the withdrawal's recorded amount")
	}
	_, err = s.ledger.FulfillWithdrawal(ctx, receipt.VaultID, receipt.WithdrawalID)
	return err
}

func (s *Service) settleAdmission(ctx context.Context, receipt *models.CustodyReceipt) error {
	asset, err := s.assets.Get(ctx, receipt.AssetID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return dErrors.New(dErrors.CodeUnknownReference, "asset does not exist")
		}
		return err
	}
	if asset.VaultRef != receipt.VaultID {
		return dErrors.New(dErrors.CodeUnknownReference, "asset is not pending admission into this vault")
	}
	_, err = s.assets.ConfirmLock(ctx, receipt.AssetID)
	return err
}

// ForceUnlockByCustodian reverts a previously confirmed asset lock after a
// settlement dispute. Admin-only, and closed once yield has been distributed
// over the collateral since its confirmation.
func (s *Service) ForceUnlockByCustodian(ctx context.Context, assetID id.AssetID) (*assetmodels.Asset, error) {
	if requestcontext.AdminSubject(ctx) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "force unlock requires admin role")
	}

	receipt, err := s.receipts.FindByReference(ctx, assetID.String())
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeConflict, "asset lock was never confirmed, nothing to dispute")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load admission receipt")
	}

	distributed, err := s.yield.DistributedSince(ctx, receipt.VaultID, receipt.ConfirmedAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check yield distribution")
	}
	if distributed {
		return nil, dErrors.New(dErrors.CodeConflict, "yield was distributed over this collateral, lock is no longer disputable")
	}

	asset, err := s.assets.ForceUnlock(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if err := s.receipts.MarkDisputed(ctx, receipt.ID); err != nil {
		s.logger.ErrorContext(ctx, "asset unlocked but receipt not marked disputed",
			"receipt_id", receipt.ID.String(),
			"error", err,
		)
	}
	s.metrics.IncrementForceUnlocks()
	return asset, nil
}

// RunBacklogMonitor keeps the oldest-pending-settlement gauge fresh until the
// context is cancelled. Settlement non-arrival is a liveness risk, never an
// error, so it is surfaced to alerting instead of auto-resolved.
func (s *Service) RunBacklogMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.observeBacklog(ctx)
		}
	}
}

func (s *Service) observeBacklog(ctx context.Context) {
	vaultIDs, err := s.ledger.ListVaultIDs(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "backlog sweep failed to list vaults", "error", err)
		return
	}
	now := requestcontext.Now(ctx)
	for _, vaultID := range vaultIDs {
		open, err := s.ledger.OpenWithdrawals(ctx, vaultID)
		if err != nil {
			s.logger.WarnContext(ctx, "backlog sweep failed",
				"vault_id", vaultID.String(),
				"error", err,
			)
			continue
		}
		var oldest float64
		for _, w := range open {
			if w.Status != vaultmodels.StatusAwaitingCustody {
				continue
			}
			if age := now.Sub(w.RequestedAt).Seconds(); age > oldest {
				oldest = age
			}
		}
		s.metrics.SetOldestPending(vaultID.String(), oldest)
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit settlement event",
			"type", string(event.Type),
			"error", err,
		)
	}
}
