package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aurum/internal/events"
	"aurum/internal/vault/models"
	"aurum/internal/vault/store"
	"aurum/internal/zkgate"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

type fakeCompliance struct {
	eligible map[id.Identity]bool
}

func (f *fakeCompliance) IsCompliant(_ context.Context, identity id.Identity) (bool, error) {
	return f.eligible[identity], nil
}

type fakeGate struct {
	verdict bool
}

func (f *fakeGate) Verify(_ context.Context, _ zkgate.Proof) bool {
	return f.verdict
}

type VaultServiceSuite struct {
	suite.Suite
	svc        *Service
	compliance *fakeCompliance
	gate       *fakeGate
	eventLog   *events.InMemoryStore
	holderA    id.Identity
	holderB    id.Identity
	vaultID    id.VaultID
	ctx        context.Context
	adminCtx   context.Context
}

func TestVaultServiceSuite(t *testing.T) {
	suite.Run(t, new(VaultServiceSuite))
}

func (s *VaultServiceSuite) SetupTest() {
	s.holderA = id.Identity("aa11aa11aa11aa11aa11aa11aa11aa11")
	s.holderB = id.Identity("bb22bb22bb22bb22bb22bb22bb22bb22")
	s.compliance = &fakeCompliance{eligible: map[id.Identity]bool{
		s.holderA: true,
		s.holderB: true,
	}}
	s.gate = &fakeGate{verdict: true}
	s.eventLog = events.NewInMemoryStore()
	s.svc = NewService(store.NewInMemory(), s.compliance, s.gate, slog.Default(),
		WithEvents(events.NewPublisher(s.eventLog)))

	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.adminCtx = requestcontext.WithAdminSubject(s.ctx, "ops")

	vault, err := s.svc.CreateVault(s.adminCtx, CreateVaultRequest{
		Strategy:  "short-duration-treasury",
		RiskScore: 20,
		Custodian: id.Identity("cc33cc33cc33cc33cc33cc33cc33cc33"),
	})
	s.Require().NoError(err)
	s.vaultID = vault.ID
}

func (s *VaultServiceSuite) requireConservation() {
	s.T().Helper()
	vault, err := s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	var sum uint64
	for _, holder := range []id.Identity{s.holderA, s.holderB} {
		acct, err := s.svc.ShareBalance(s.ctx, s.vaultID, holder)
		s.Require().NoError(err)
		sum += acct.Total()
	}
	s.Equal(vault.TotalShares, sum, "share accounts must sum to total shares")
}

func (s *VaultServiceSuite) withdrawerProof(withdrawalID id.WithdrawalID) zkgate.Proof {
	return zkgate.Proof{
		Statement:  zkgate.StatementEligibleWithdrawer,
		ProofValue: []byte("opaque"),
		PublicInputs: zkgate.PublicInputs{
			CommitmentRoot: "ignored-by-fake-gate",
			Nullifier:      "nullifier-" + withdrawalID.String(),
			ActionBinding:  withdrawalID.String(),
		},
	}
}

// Full lifecycle: two depositors, a fulfilled withdrawal, proportional books
// at every step.
func (s *VaultServiceSuite) TestDepositWithdrawLifecycle() {
	shares, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	s.Equal(uint64(1000), shares, "first deposit mints one to one")
	s.requireConservation()

	shares, err = s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 500)
	s.Require().NoError(err)
	s.Equal(uint64(500), shares)
	s.requireConservation()

	vault, err := s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(1500), vault.TotalValueLocked)
	s.Equal(uint64(1500), vault.TotalShares)

	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	s.Equal(models.StatusRequested, withdrawal.Status)
	s.Equal(uint64(1000), withdrawal.AssetAmount, "amount fixed at request-time rate")
	s.requireConservation()

	acct, err := s.svc.ShareBalance(s.ctx, s.vaultID, s.holderA)
	s.Require().NoError(err)
	s.Equal(uint64(0), acct.Liquid)
	s.Equal(uint64(1000), acct.Escrowed)

	withdrawal, err = s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
	s.Require().NoError(err)
	s.Equal(models.StatusAwaitingCustody, withdrawal.Status)

	withdrawal, err = s.svc.FulfillWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFulfilled, withdrawal.Status)
	s.requireConservation()

	vault, err = s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(500), vault.TotalValueLocked)
	s.Equal(uint64(500), vault.TotalShares)

	acct, err = s.svc.ShareBalance(s.ctx, s.vaultID, s.holderA)
	s.Require().NoError(err)
	s.Equal(uint64(0), acct.Total(), "escrowed shares are burned on fulfillment")
}

func (s *VaultServiceSuite) TestDepositEligibilityGate() {
	s.compliance.eligible[s.holderA] = false

	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotCompliant))

	vault, err := s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(0), vault.TotalValueLocked, "rejected deposit must not mutate state")
	s.Equal(uint64(0), vault.TotalShares)
}

func (s *VaultServiceSuite) TestRequestWithdrawalGuards() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)

	s.Run("insufficient shares", func() {
		_, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 101)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientShares))
	})

	s.Run("unknown holder has zero balance", func() {
		_, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderB, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientShares))
	})

	s.Run("unknown vault", func() {
		_, err := s.svc.RequestWithdrawal(s.ctx, id.NewVaultID(), s.holderA, 1)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownReference))
	})
}

func (s *VaultServiceSuite) TestAttachProofFailsClosed() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)
	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 50)
	s.Require().NoError(err)

	s.Run("wrong statement type", func() {
		proof := s.withdrawerProof(withdrawal.ID)
		proof.Statement = zkgate.StatementEligibleDepositor
		_, err := s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, proof)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})

	s.Run("proof bound to another withdrawal", func() {
		proof := s.withdrawerProof(id.NewWithdrawalID())
		_, err := s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, proof)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})

	s.Run("gate rejection", func() {
		s.gate.verdict = false
		defer func() { s.gate.verdict = true }()
		_, err := s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidProof))
	})

	s.Run("withdrawal stays requested after failed attempts", func() {
		got, err := s.svc.GetWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusRequested, got.Status)
	})
}

func (s *VaultServiceSuite) TestCancelWithdrawal() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)

	s.Run("holder cancels a requested withdrawal", func() {
		withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 40)
		s.Require().NoError(err)

		cancelled, err := s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderA, withdrawal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, cancelled.Status)

		acct, err := s.svc.ShareBalance(s.ctx, s.vaultID, s.holderA)
		s.Require().NoError(err)
		s.Equal(uint64(100), acct.Liquid, "escrow restored on cancel")
		s.requireConservation()
	})

	s.Run("only the requesting holder may cancel", func() {
		withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 40)
		s.Require().NoError(err)

		_, err = s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderB, withdrawal.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderA, withdrawal.ID)
		s.Require().NoError(err)
	})

	s.Run("cannot cancel once custody is engaged", func() {
		withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 40)
		s.Require().NoError(err)
		_, err = s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
		s.Require().NoError(err)

		_, err = s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderA, withdrawal.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *VaultServiceSuite) TestRejectRestoresEscrow() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)
	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 60)
	s.Require().NoError(err)
	_, err = s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
	s.Require().NoError(err)

	rejected, err := s.svc.RejectWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)

	acct, err := s.svc.ShareBalance(s.ctx, s.vaultID, s.holderA)
	s.Require().NoError(err)
	s.Equal(uint64(100), acct.Liquid)
	s.Equal(uint64(0), acct.Escrowed)
	s.requireConservation()

	vault, err := s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(100), vault.TotalValueLocked, "rejection burns nothing")
}

func (s *VaultServiceSuite) TestPause() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)
	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 50)
	s.Require().NoError(err)
	_, err = s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
	s.Require().NoError(err)

	s.Run("pause requires admin role", func() {
		err := s.svc.Pause(s.ctx, s.vaultID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Require().NoError(s.svc.Pause(s.adminCtx, s.vaultID))

	s.Run("deposit and request fail while paused", func() {
		_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePaused))

		_, err = s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 10)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePaused))
	})

	s.Run("in-flight settlement still completes", func() {
		fulfilled, err := s.svc.FulfillWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusFulfilled, fulfilled.Status)
	})

	s.Run("unpause reopens the vault", func() {
		s.Require().NoError(s.svc.Unpause(s.adminCtx, s.vaultID))
		_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 10)
		s.Require().NoError(err)
	})
}

func (s *VaultServiceSuite) TestHaltBlocksMutation() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 100)
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Halt(s.adminCtx, s.vaultID, "storage corruption detected"))

	_, err = s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *VaultServiceSuite) TestSnapshotBalances() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	_, err = s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 500)
	s.Require().NoError(err)

	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 600)
	s.Require().NoError(err)

	balances, totalShares, err := s.svc.SnapshotBalances(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(1500), totalShares)
	s.Equal(uint64(1000), balances[s.holderA], "escrowed shares still belong to the holder")
	s.Equal(uint64(500), balances[s.holderB])

	_, err = s.svc.AttachWithdrawalProof(s.ctx, s.vaultID, withdrawal.ID, s.withdrawerProof(withdrawal.ID))
	s.Require().NoError(err)
	_, err = s.svc.FulfillWithdrawal(s.ctx, s.vaultID, withdrawal.ID)
	s.Require().NoError(err)

	balances, totalShares, err = s.svc.SnapshotBalances(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(900), totalShares)
	s.Equal(uint64(400), balances[s.holderA])
	s.Equal(uint64(500), balances[s.holderB])
}

// Every booked transition lands on the event stream, stamped with the request
// clock; a rejected admission emits nothing.
func (s *VaultServiceSuite) TestLedgerEventTrail() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 1000)
	s.Require().NoError(err)
	withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderA, 400)
	s.Require().NoError(err)
	_, err = s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderA, withdrawal.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Pause(s.adminCtx, s.vaultID))

	s.compliance.eligible[s.holderB] = false
	_, err = s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 10)
	s.Require().Error(err)

	recorded, err := s.eventLog.ListByVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	types := make([]events.Type, 0, len(recorded))
	for _, event := range recorded {
		types = append(types, event.Type)
	}
	s.Equal([]events.Type{
		events.TypeDeposited,
		events.TypeWithdrawalRequested,
		events.TypeWithdrawalCancelled,
		events.TypeVaultPaused,
	}, types)

	s.Equal(s.holderA, recorded[0].Holder)
	s.Equal(uint64(1000), recorded[0].Assets)
	s.Equal(uint64(1000), recorded[0].Shares)
	s.True(recorded[0].Timestamp.Equal(requestcontext.Now(s.ctx)))
	s.Equal(withdrawal.ID, recorded[1].WithdrawalID)
}

// Concurrent deposits and withdrawal churn on one vault must serialize
// through the store; no mutation may be lost and the books stay conserved.
func (s *VaultServiceSuite) TestConcurrentMutationsStayConserved() {
	_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderB, 1000)
	s.Require().NoError(err)

	const (
		workers    = 8
		iterations = 5
	)
	errs := make(chan error, workers*iterations*3)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range iterations {
				_, err := s.svc.Deposit(s.ctx, s.vaultID, s.holderA, 10)
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			for range iterations {
				withdrawal, err := s.svc.RequestWithdrawal(s.ctx, s.vaultID, s.holderB, 5)
				errs <- err
				if err != nil {
					continue
				}
				_, err = s.svc.CancelWithdrawal(s.ctx, s.vaultID, s.holderB, withdrawal.ID)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	vault, err := s.svc.GetVault(s.ctx, s.vaultID)
	s.Require().NoError(err)
	s.Equal(uint64(1000+workers*iterations*10), vault.TotalShares)
	s.Equal(uint64(1000+workers*iterations*10), vault.TotalValueLocked)

	acct, err := s.svc.ShareBalance(s.ctx, s.vaultID, s.holderB)
	s.Require().NoError(err)
	s.Equal(uint64(0), acct.Escrowed, "every escrow was cancelled back")
	s.requireConservation()
}
