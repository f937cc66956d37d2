// Package service implements the yield distributor: it snapshots share
// positions, applies oracle yield reports exactly once per epoch, and
// carries floor-division residue forward instead of discarding it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"aurum/internal/events"
	"aurum/internal/yield/models"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/requestcontext"
)

var epochsDistributed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "aurum_yield_epochs_distributed_total",
	Help: "Yield epochs distributed across all vaults",
})

// BalanceSource captures live positions for a snapshot. Implemented by the
// vault ledger.
type BalanceSource interface {
	SnapshotBalances(ctx context.Context, vaultID id.VaultID) (map[id.Identity]uint64, uint64, error)
}

// Store is the persistence port for snapshots, epochs, and credits.
type Store interface {
	SaveSnapshot(ctx context.Context, snapshot *models.ShareSnapshot) error
	GetSnapshot(ctx context.Context, snapshotID id.SnapshotID) (*models.ShareSnapshot, error)
	CreateEpoch(ctx context.Context, epoch *models.YieldEpoch, credits []*models.Credit) error
	GetEpoch(ctx context.Context, vaultID id.VaultID, epochID id.EpochID) (*models.YieldEpoch, error)
	ListEpochs(ctx context.Context, vaultID id.VaultID) ([]*models.YieldEpoch, error)
	Credits(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.Credit, error)
}

// Service is the yield distributor.
type Service struct {
	store    Store
	balances BalanceSource
	events   *events.Publisher
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithEvents(pub *events.Publisher) Option {
	return func(s *Service) { s.events = pub }
}

func NewService(store Store, balances BalanceSource, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, balances: balances, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TakeSnapshot freezes the vault's current positions for a later
// distribution.
func (s *Service) TakeSnapshot(ctx context.Context, vaultID id.VaultID) (*models.ShareSnapshot, error) {
	balances, totalShares, err := s.balances.SnapshotBalances(ctx, vaultID)
	if err != nil {
		return nil, err
	}
	snapshot, err := models.NewSnapshot(vaultID, totalShares, balances, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveSnapshot(ctx, snapshot); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save snapshot")
	}
	return snapshot, nil
}

// DistributeRequest carries one oracle yield report.
type DistributeRequest struct {
	VaultID    id.VaultID
	EpochID    id.EpochID
	TotalYield uint64
	SnapshotID id.SnapshotID
}

// Distribute applies one epoch's yield against a snapshot. Idempotent per
// (vault, epoch): a re-delivered report fails AlreadyDistributed and credits
// nothing. Undistributed dust carries into the next epoch.
func (s *Service) Distribute(ctx context.Context, req DistributeRequest) (*models.YieldEpoch, error) {
	if _, err := s.store.GetEpoch(ctx, req.VaultID, req.EpochID); err == nil {
		return nil, dErrors.New(dErrors.CodeAlreadyDistributed, "epoch was already distributed")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check epoch replay")
	}

	snapshot, err := s.store.GetSnapshot(ctx, req.SnapshotID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnknownReference, "snapshot does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load snapshot")
	}
	if snapshot.VaultID != req.VaultID {
		return nil, dErrors.New(dErrors.CodeUnknownReference, "snapshot belongs to another vault")
	}

	carry, err := s.carryIn(ctx, req.VaultID)
	if err != nil {
		return nil, err
	}

	epoch, credits, err := settle(req, snapshot, carry, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateEpoch(ctx, epoch, credits); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeAlreadyDistributed, "epoch was already distributed")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record epoch")
	}

	epochsDistributed.Inc()
	s.emit(ctx, events.Event{
		Type:       events.TypeYieldDistributed,
		VaultID:    req.VaultID,
		EpochID:    req.EpochID,
		TotalYield: req.TotalYield,
		PerShare:   epoch.PerShare,
	})
	return epoch, nil
}

// settle allocates each holder floor(distributable * balance / total_shares)
// from the snapshot. The recorded PerShare is the floor rate; what the
// per-holder floors leave over becomes the epoch's residual and carries into
// the next epoch instead of being discarded.
func settle(req DistributeRequest, snapshot *models.ShareSnapshot, carry uint64, now time.Time) (*models.YieldEpoch, []*models.Credit, error) {
	distributable := new(big.Int).Add(
		new(big.Int).SetUint64(req.TotalYield),
		new(big.Int).SetUint64(carry),
	)

	epoch := &models.YieldEpoch{
		EpochID:       req.EpochID,
		VaultID:       req.VaultID,
		TotalYield:    req.TotalYield,
		CarryIn:       carry,
		SnapshotID:    snapshot.ID,
		Distributed:   true,
		DistributedAt: now,
	}

	if snapshot.TotalShares == 0 {
		// Nothing to credit against; everything carries forward.
		if !distributable.IsUint64() {
			return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "yield carry overflow")
		}
		epoch.Residual = distributable.Uint64()
		return epoch, nil, nil
	}

	totalShares := new(big.Int).SetUint64(snapshot.TotalShares)
	perShare := new(big.Int).Quo(new(big.Int).Set(distributable), totalShares)
	if !perShare.IsUint64() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "per-share yield overflow")
	}
	epoch.PerShare = perShare.Uint64()

	holders := make([]id.Identity, 0, len(snapshot.Balances))
	for holder := range snapshot.Balances {
		holders = append(holders, holder)
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i] < holders[j] })

	allocated := new(big.Int)
	credits := make([]*models.Credit, 0, len(holders))
	for _, holder := range holders {
		amount := new(big.Int).Mul(distributable, new(big.Int).SetUint64(snapshot.Balances[holder]))
		amount.Quo(amount, totalShares)
		if !amount.IsUint64() {
			return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "holder credit overflow")
		}
		if amount.Sign() == 0 {
			continue
		}
		allocated.Add(allocated, amount)
		credits = append(credits, &models.Credit{
			VaultID: req.VaultID,
			EpochID: req.EpochID,
			Holder:  holder,
			Amount:  amount.Uint64(),
		})
	}

	residual := new(big.Int).Sub(distributable, allocated)
	if !residual.IsUint64() {
		return nil, nil, dErrors.New(dErrors.CodeInvariantViolation, "yield residual overflow")
	}
	epoch.Residual = residual.Uint64()
	return epoch, credits, nil
}

// carryIn is the residual of the vault's most recent epoch.
func (s *Service) carryIn(ctx context.Context, vaultID id.VaultID) (uint64, error) {
	epochs, err := s.store.ListEpochs(ctx, vaultID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load epoch history")
	}
	if len(epochs) == 0 {
		return 0, nil
	}
	return epochs[len(epochs)-1].Residual, nil
}

// DistributedSince reports whether any epoch was distributed over the vault
// at or after the given time. The settlement bridge's dispute guard.
func (s *Service) DistributedSince(ctx context.Context, vaultID id.VaultID, since time.Time) (bool, error) {
	epochs, err := s.store.ListEpochs(ctx, vaultID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load epoch history")
	}
	for _, epoch := range epochs {
		if !epoch.DistributedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// ListEpochs returns the vault's distributed epochs in order.
func (s *Service) ListEpochs(ctx context.Context, vaultID id.VaultID) ([]*models.YieldEpoch, error) {
	epochs, err := s.store.ListEpochs(ctx, vaultID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load epoch history")
	}
	return epochs, nil
}

// Credits returns the holder's accrued yield credits in the vault.
func (s *Service) Credits(ctx context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.Credit, error) {
	credits, err := s.store.Credits(ctx, vaultID, holder)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load yield credits")
	}
	return credits, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = requestcontext.Now(ctx)
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit yield event",
			"type", string(event.Type),
			"error", err,
		)
	}
}
