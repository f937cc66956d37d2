package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/assetregistry/models"
	"aurum/internal/events"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/requestcontext"
)

// Store is the persistence port for asset records.
type Store interface {
	Create(ctx context.Context, asset *models.Asset) error
	FindByID(ctx context.Context, assetID id.AssetID) (*models.Asset, error)
	Execute(ctx context.Context, assetID id.AssetID, validate func(*models.Asset) error, mutate func(*models.Asset)) (*models.Asset, error)
	ListByVault(ctx context.Context, vaultID id.VaultID) ([]*models.Asset, error)
}

// Service mints asset records and manages the two-phase vault lock. Lock
// intent comes from the issuer; lock confirmation only ever arrives through
// the custody settlement bridge.
type Service struct {
	store  Store
	events *events.Publisher
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger, pub *events.Publisher) *Service {
	return &Service{store: store, events: pub, logger: logger}
}

// MintRequest carries the issuer's mint parameters.
type MintRequest struct {
	Issuer      id.Identity
	MetadataRef string
	ProofHash   string
	Valuation   decimal.Decimal
	Maturity    time.Time
}

// Mint validates and records a new asset.
func (s *Service) Mint(ctx context.Context, req MintRequest) (*models.Asset, error) {
	now := requestcontext.Now(ctx)
	asset, err := models.NewAsset(req.Issuer, req.MetadataRef, req.ProofHash, req.Valuation, req.Maturity, now)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, asset); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record minted asset")
	}
	s.emit(ctx, events.Event{
		Type:    events.TypeAssetMinted,
		AssetID: asset.ID,
		Issuer:  asset.Issuer,
	})
	return asset, nil
}

// LockForVault records the issuer's intent to admit the asset as vault
// collateral. The asset stays out of TVL until custody confirms.
func (s *Service) LockForVault(ctx context.Context, caller id.Identity, assetID id.AssetID, vaultRef id.VaultID) (*models.Asset, error) {
	asset, err := s.store.Execute(ctx, assetID,
		func(a *models.Asset) error { return a.CanLockForVault(caller) },
		func(a *models.Asset) { a.ApplyLockIntent(vaultRef) },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownReference, "asset does not exist")
		}
		return nil, err
	}
	return asset, nil
}

// ConfirmLock promotes a pending lock to confirmed collateral. Called by the
// custody settlement bridge, never directly by issuers.
func (s *Service) ConfirmLock(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	asset, err := s.store.Execute(ctx, assetID,
		func(a *models.Asset) error { return a.CanConfirmLock() },
		func(a *models.Asset) { a.ApplyLockConfirmation() },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownReference, "asset does not exist")
		}
		return nil, err
	}
	s.emit(ctx, events.Event{
		Type:    events.TypeAssetLocked,
		AssetID: asset.ID,
		VaultID: asset.VaultRef,
	})
	return asset, nil
}

// ForceUnlock reverts a confirmed lock after a settlement dispute. The bridge
// enforces the yield-distribution guard before calling this.
func (s *Service) ForceUnlock(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	var vaultRef id.VaultID
	asset, err := s.store.Execute(ctx, assetID,
		func(a *models.Asset) error {
			vaultRef = a.VaultRef
			return a.CanForceUnlock()
		},
		func(a *models.Asset) { a.ApplyForceUnlock() },
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownReference, "asset does not exist")
		}
		return nil, err
	}
	s.emit(ctx, events.Event{
		Type:    events.TypeAssetUnlocked,
		AssetID: asset.ID,
		VaultID: vaultRef,
	})
	return asset, nil
}

// Get returns one asset record.
func (s *Service) Get(ctx context.Context, assetID id.AssetID) (*models.Asset, error) {
	asset, err := s.store.FindByID(ctx, assetID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load asset")
	}
	return asset, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit asset event",
			"type", string(event.Type),
			"error", err,
		)
	}
}
