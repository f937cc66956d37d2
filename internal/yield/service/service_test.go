package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	vaultservice "aurum/internal/vault/service"
	vaultstore "aurum/internal/vault/store"
	"aurum/internal/yield/store"
	"aurum/internal/zkgate"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

type allowAllCompliance struct{}

func (allowAllCompliance) IsCompliant(_ context.Context, _ id.Identity) (bool, error) {
	return true, nil
}

type allowAllGate struct{}

func (allowAllGate) Verify(_ context.Context, _ zkgate.Proof) bool { return true }

type YieldSuite struct {
	suite.Suite
	svc     *Service
	vaults  *vaultservice.Service
	holderA id.Identity
	holderB id.Identity
	vaultID id.VaultID
	ctx     context.Context
}

func TestYieldSuite(t *testing.T) {
	suite.Run(t, new(YieldSuite))
}

func (s *YieldSuite) SetupTest() {
	s.holderA = id.Identity("aa11aa11aa11aa11aa11aa11aa11aa11")
	s.holderB = id.Identity("bb22bb22bb22bb22bb22bb22bb22bb22")

	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)

	s.vaults = vaultservice.NewService(vaultstore.NewInMemory(), allowAllCompliance{}, allowAllGate{}, slog.Default())
	s.svc = NewService(store.NewInMemory(), s.vaults, slog.Default())

	vault, err := s.vaults.CreateVault(requestcontext.WithAdminSubject(s.ctx, "ops"), vaultservice.CreateVaultRequest{
		Strategy:  "short-duration-treasury",
		RiskScore: 20,
		Custodian: id.Identity("cc33cc33cc33cc33cc33cc33cc33cc33"),
	})
	s.Require().NoError(err)
	s.vaultID = vault.ID
}

func (s *YieldSuite) creditSum(holder id.Identity) uint64 {
	credits, err := s.svc.Credits(s.ctx, s.vaultID, holder)
	s.Require().NoError(err)
	var sum uint64
	for _, credit := range credits {
		sum += credit.Amount
	}
	return sum
}

// Post-withdrawal distribution: only the remaining holder is credited, and a
// re-delivered oracle report credits nothing.
func (s *YieldSuite) TestDistributeAfterWithdrawal() {
	_, err := s.vaults.Deposit(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	_, err = s.vaults.Deposit(s.ctx, s.vaultID, s.holderB, 500)
	s.Require().NoError(err)

	withdrawal, err := s.vaults.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	_, err = s.vaults.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, zkgate.Proof{
		Statement:  zkgate.StatementEligibleWithdrawer,
		ProofValue: []byte("opaque"),
		PublicInputs: zkgate.PublicInputs{
			CommitmentRoot: "root",
			Nullifier:      "n",
			ActionBinding:  withdrawal.ID.String(),
		},
	})
	s.Require().NoError(err)
	_, err = s.vaults.FulfillWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
	s.Require().NoError(err)

	snapshot, err := s.svc.TakeSnapshot(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(500), snapshot.TotalShares)

	epoch, err := s.svc.Distribute(s.ctx, DistributeRequest{
		VaultID:    s.vaultID,
		EpochID:    1,
		TotalYield: 100,
		SnapshotID: snapshot.ID,
	})
	s.Require().NoError(err)
	s.True(epoch.Distributed)
	s.Equal(uint64(0), epoch.Residual)
	s.Equal(uint64(100), s.creditSum(s.holderB), "remaining holder owns the whole snapshot")
	s.Equal(uint64(0), s.creditSum(s.holderA))

	s.Run("re-submission is AlreadyDistributed, never a double credit", func() {
		_, err := s.svc.Distribute(s.ctx, DistributeRequest{
			VaultID:    s.vaultID,
			EpochID:    1,
			TotalYield: 100,
			SnapshotID: snapshot.ID,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDistributed))
		s.Equal(uint64(100), s.creditSum(s.holderB))
	})
}

func (s *YieldSuite) TestProportionalCreditsWithDust() {
	_, err := s.vaults.Deposit(s.ctx, s.vaultID, s.holderA, 700)
	s.Require().NoError(err)
	_, err = s.vaults.Deposit(s.ctx, s.vaultID, s.holderB, 300)
	s.Require().NoError(err)

	snapshot, err := s.svc.TakeSnapshot(s.ctx, s.vaultID)
	s.Require().NoError(err)

	epoch, err := s.svc.Distribute(s.ctx, DistributeRequest{
		VaultID:    s.vaultID,
		EpochID:    7,
		TotalYield: 2503,
		SnapshotID: snapshot.ID,
	})
	s.Require().NoError(err)
	// 2503*700/1000 = 1752.1 → 1752, 2503*300/1000 = 750.9 → 750
	s.Equal(uint64(1752), s.creditSum(s.holderA))
	s.Equal(uint64(750), s.creditSum(s.holderB))
	s.Equal(uint64(1), epoch.Residual, "per-holder floors leave dust")

	s.Run("dust carries into the next epoch", func() {
		epoch, err := s.svc.Distribute(s.ctx, DistributeRequest{
			VaultID:    s.vaultID,
			EpochID:    8,
			TotalYield: 9,
			SnapshotID: snapshot.ID,
		})
		s.Require().NoError(err)
		s.Equal(uint64(1), epoch.CarryIn)
		// distributable 10: A gets 7, B gets 3
		s.Equal(uint64(1752+7), s.creditSum(s.holderA))
		s.Equal(uint64(750+3), s.creditSum(s.holderB))
		s.Equal(uint64(0), epoch.Residual)
	})
}

// Holders are credited from the snapshot even if they withdrew between
// snapshot and distribution.
func (s *YieldSuite) TestCreditsFollowSnapshotNotLiveBalances() {
	_, err := s.vaults.Deposit(s.ctx, s.vaultID, s.holderA, 600)
	s.Require().NoError(err)
	_, err = s.vaults.Deposit(s.ctx, s.vaultID, s.holderB, 400)
	s.Require().NoError(err)

	snapshot, err := s.svc.TakeSnapshot(s.ctx, s.vaultID)
	s.Require().NoError(err)

	withdrawal, err := s.vaults.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 600)
	s.Require().NoError(err)
	_, err = s.vaults.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, zkgate.Proof{
		Statement:  zkgate.StatementEligibleWithdrawer,
		ProofValue: []byte("opaque"),
		PublicInputs: zkgate.PublicInputs{
			CommitmentRoot: "root",
			Nullifier:      "n",
			ActionBinding:  withdrawal.ID.String(),
		},
	})
	s.Require().NoError(err)
	_, err = s.vaults.FulfillWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
	s.Require().NoError(err)

	_, err = s.svc.Distribute(s.ctx, DistributeRequest{
		VaultID:    s.vaultID,
		EpochID:    1,
		TotalYield: 1000,
		SnapshotID: snapshot.ID,
	})
	s.Require().NoError(err)
	s.Equal(uint64(600), s.creditSum(s.holderA), "snapshot position earns even after exit")
	s.Equal(uint64(400), s.creditSum(s.holderB))
}

func (s *YieldSuite) TestDistributeGuards() {
	_, err := s.vaults.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)
	snapshot, err := s.svc.TakeSnapshot(s.ctx, s.vaultID)
	s.Require().NoError(err)

	s.Run("dangling snapshot id", func() {
		_, err := s.svc.Distribute(s.ctx, DistributeRequest{
			VaultID:    s.vaultID,
			EpochID:    1,
			TotalYield: 10,
			SnapshotID: id.NewSnapshotID(),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownReference))
	})

	s.Run("snapshot from another vault", func() {
		other, err := s.vaults.CreateVault(requestcontext.WithAdminSubject(s.ctx, "ops"), vaultservice.CreateVaultRequest{
			Strategy:  "note-ladder",
			RiskScore: 35,
			Custodian: id.Identity("cc33cc33cc33cc33cc33cc33cc33cc33"),
		})
		s.Require().NoError(err)
		_, err = s.svc.Distribute(s.ctx, DistributeRequest{
			VaultID:    other.ID,
			EpochID:    1,
			TotalYield: 10,
			SnapshotID: snapshot.ID,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownReference))
	})
}

func (s *YieldSuite) TestDistributedSince() {
	_, err := s.vaults.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)
	snapshot, err := s.svc.TakeSnapshot(s.ctx, s.vaultID)
	s.Require().NoError(err)

	now := requestcontext.Now(s.ctx)
	distributed, err := s.svc.DistributedSince(s.ctx, s.vaultID, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.False(distributed)

	_, err = s.svc.Distribute(s.ctx, DistributeRequest{
		VaultID:    s.vaultID,
		EpochID:    1,
		TotalYield: 100,
		SnapshotID: snapshot.ID,
	})
	s.Require().NoError(err)

	distributed, err = s.svc.DistributedSince(s.ctx, s.vaultID, now.Add(-time.Hour))
	s.Require().NoError(err)
	s.True(distributed)

	distributed, err = s.svc.DistributedSince(s.ctx, s.vaultID, now.Add(time.Hour))
	s.Require().NoError(err)
	s.False(distributed)
}
