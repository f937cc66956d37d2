package service

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aurum/internal/compliance/store"
	id "aurum/pkg/domain"
	dErrors "aurum/pkg/domain-errors"
	"aurum/pkg/requestcontext"
)

type attestor struct {
	identity id.Identity
	priv     ed25519.PrivateKey
}

func newAttestor(t *testing.T) attestor {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return attestor{identity: id.Identity(hex.EncodeToString(pub)), priv: priv}
}

func (a attestor) sign(identity id.Identity, hash string, expiry time.Time) []byte {
	return ed25519.Sign(a.priv, attestationMessage(identity, hash, expiry))
}

type ComplianceServiceSuite struct {
	suite.Suite
	svc      *Service
	store    *store.InMemory
	attestor attestor
	holder   id.Identity
	now      time.Time
	ctx      context.Context
}

func TestComplianceServiceSuite(t *testing.T) {
	suite.Run(t, new(ComplianceServiceSuite))
}

func (s *ComplianceServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.svc = NewService(s.store, slog.Default())
	s.attestor = newAttestor(s.T())
	s.holder = id.Identity("aa11bb22cc33dd44ee55ff6600112233")
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	adminCtx := requestcontext.WithAdminSubject(s.ctx, "ops")
	s.Require().NoError(s.svc.AuthorizeAttestor(adminCtx, s.attestor.identity, true))
}

func (s *ComplianceServiceSuite) addAttestation(holder id.Identity, hash string, expiry time.Time) {
	_, err := s.svc.AddAttestation(s.ctx, AddAttestationRequest{
		Identity:        holder,
		AttestationHash: hash,
		Attestor:        s.attestor.identity,
		Expiry:          expiry,
		Signature:       s.attestor.sign(holder, hash, expiry),
	})
	s.Require().NoError(err)
}

func (s *ComplianceServiceSuite) TestAddAttestation() {
	expiry := s.now.Add(24 * time.Hour)

	s.Run("accepts a signed attestation from an allow-listed attestor", func() {
		s.addAttestation(s.holder, "hash-1", expiry)

		compliant, err := s.svc.IsCompliant(s.ctx, s.holder)
		s.Require().NoError(err)
		s.True(compliant)
	})

	s.Run("rejects unknown attestors", func() {
		rogue := newAttestor(s.T())
		_, err := s.svc.AddAttestation(s.ctx, AddAttestationRequest{
			Identity:        s.holder,
			AttestationHash: "hash-2",
			Attestor:        rogue.identity,
			Expiry:          expiry,
			Signature:       rogue.sign(s.holder, "hash-2", expiry),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects a bad signature", func() {
		_, err := s.svc.AddAttestation(s.ctx, AddAttestationRequest{
			Identity:        s.holder,
			AttestationHash: "hash-3",
			Attestor:        s.attestor.identity,
			Expiry:          expiry,
			Signature:       s.attestor.sign(s.holder, "different-hash", expiry),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})

	s.Run("rejects an expiry in the past", func() {
		past := s.now.Add(-time.Hour)
		_, err := s.svc.AddAttestation(s.ctx, AddAttestationRequest{
			Identity:        s.holder,
			AttestationHash: "hash-4",
			Attestor:        s.attestor.identity,
			Expiry:          past,
			Signature:       s.attestor.sign(s.holder, "hash-4", past),
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ComplianceServiceSuite) TestSupersedeKeepsHistory() {
	s.addAttestation(s.holder, "hash-old", s.now.Add(time.Hour))
	s.addAttestation(s.holder, "hash-new", s.now.Add(48*time.Hour))

	history, err := s.svc.History(s.ctx, s.holder)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("hash-old", history[0].AttestationHash)
	s.Equal("hash-new", history[1].AttestationHash)

	// Latest wins: eligibility tracks the new expiry.
	later := requestcontext.WithTime(context.Background(), s.now.Add(2*time.Hour))
	compliant, err := s.svc.IsCompliant(later, s.holder)
	s.Require().NoError(err)
	s.True(compliant)
}

func (s *ComplianceServiceSuite) TestRevoke() {
	s.addAttestation(s.holder, "hash-1", s.now.Add(24*time.Hour))

	s.Run("revocation takes effect immediately", func() {
		s.Require().NoError(s.svc.Revoke(s.ctx, s.attestor.identity, s.holder))

		compliant, err := s.svc.IsCompliant(s.ctx, s.holder)
		s.Require().NoError(err)
		s.False(compliant)
	})

	s.Run("revoke is idempotent", func() {
		s.Require().NoError(s.svc.Revoke(s.ctx, s.attestor.identity, s.holder))
	})

	s.Run("unknown identity is UnknownReference", func() {
		err := s.svc.Revoke(s.ctx, s.attestor.identity, id.Identity("00112233445566778899aabbccddeeff"))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnknownReference))
	})

	s.Run("non-attestor may not revoke", func() {
		err := s.svc.Revoke(s.ctx, id.Identity("ffeeddccbbaa99887766554433221100"), s.holder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ComplianceServiceSuite) TestExpiry() {
	s.addAttestation(s.holder, "hash-1", s.now.Add(time.Hour))

	beforeExpiry := requestcontext.WithTime(context.Background(), s.now.Add(59*time.Minute))
	compliant, err := s.svc.IsCompliant(beforeExpiry, s.holder)
	s.Require().NoError(err)
	s.True(compliant)

	atExpiry := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
	compliant, err = s.svc.IsCompliant(atExpiry, s.holder)
	s.Require().NoError(err)
	s.False(compliant, "eligibility requires now < expiry")
}

func (s *ComplianceServiceSuite) TestStatus() {
	status, err := s.svc.Status(s.ctx, s.holder)
	s.Require().NoError(err)
	s.False(status.Eligible)
	s.Equal("no attestation", status.Reason)

	s.addAttestation(s.holder, "hash-1", s.now.Add(time.Hour))
	status, err = s.svc.Status(s.ctx, s.holder)
	s.Require().NoError(err)
	s.True(status.Eligible)

	s.Require().NoError(s.svc.Revoke(s.ctx, s.attestor.identity, s.holder))
	status, err = s.svc.Status(s.ctx, s.holder)
	s.Require().NoError(err)
	s.False(status.Eligible)
	s.Equal("revoked", status.Reason)
}

func (s *ComplianceServiceSuite) TestAuthorizeAttestorRequiresAdmin() {
	err := s.svc.AuthorizeAttestor(s.ctx, s.attestor.identity, false)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ComplianceServiceSuite) TestCommitmentRootTracksMutations() {
	empty, err := s.svc.CommitmentRoot(s.ctx)
	s.Require().NoError(err)
	s.True(empty.Zero())

	s.addAttestation(s.holder, "hash-1", s.now.Add(time.Hour))
	withAttestation, err := s.svc.CommitmentRoot(s.ctx)
	s.Require().NoError(err)
	s.False(withAttestation.Zero())
	s.NotEqual(empty, withAttestation)

	s.Require().NoError(s.svc.Revoke(s.ctx, s.attestor.identity, s.holder))
	afterRevoke, err := s.svc.CommitmentRoot(s.ctx)
	s.Require().NoError(err)
	s.True(afterRevoke.Zero(), "revoked attestation leaves the commitment")
}
