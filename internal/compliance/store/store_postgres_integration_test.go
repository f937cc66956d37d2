//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"aurum/internal/compliance/models"
	"aurum/internal/platform/postgres"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
	"aurum/pkg/testutil/containers"
)

type CompliancePostgresSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context

	identity id.Identity
	attestor id.Identity
}

func TestCompliancePostgresSuite(t *testing.T) {
	suite.Run(t, new(CompliancePostgresSuite))
}

func (s *CompliancePostgresSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(s.ctx, s.pg.DB))
	s.store = NewPostgres(s.pg.DB)
	s.identity = id.Identity("aa11aa11aa11aa11aa11aa11aa11aa11")
	s.attestor = id.Identity("ee55ee55ee55ee55ee55ee55ee55ee55")
}

func (s *CompliancePostgresSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateAll(s.ctx, "attestations", "attestors"))
}

func (s *CompliancePostgresSuite) attestation(issued time.Time) *models.Attestation {
	att, err := models.NewAttestation(s.identity, "claim-hash", s.attestor, issued, issued.Add(24*time.Hour))
	s.Require().NoError(err)
	return att
}

func (s *CompliancePostgresSuite) TestSupersedeKeepsHistoryLatestWins() {
	first := s.attestation(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	second := s.attestation(time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC))
	s.Require().NoError(s.store.Supersede(s.ctx, first))
	s.Require().NoError(s.store.Supersede(s.ctx, second))

	latest, err := s.store.Latest(s.ctx, s.identity)
	s.Require().NoError(err)
	s.True(latest.IssuedAt.Equal(second.IssuedAt))

	history, err := s.store.History(s.ctx, s.identity)
	s.Require().NoError(err)
	s.Len(history, 2)

	s.Run("unknown identity", func() {
		_, err := s.store.Latest(s.ctx, id.Identity("ff66ff66ff66ff66ff66ff66ff66ff66"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CompliancePostgresSuite) TestRevokeMarksLatest() {
	s.Require().NoError(s.store.Supersede(s.ctx, s.attestation(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))))
	s.Require().NoError(s.store.Revoke(s.ctx, s.identity))

	latest, err := s.store.Latest(s.ctx, s.identity)
	s.Require().NoError(err)
	s.True(latest.Revoked)

	s.Run("revoking an unknown identity", func() {
		err := s.store.Revoke(s.ctx, id.Identity("ff66ff66ff66ff66ff66ff66ff66ff66"))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CompliancePostgresSuite) TestListActiveExcludesRevoked() {
	s.Require().NoError(s.store.Supersede(s.ctx, s.attestation(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))))

	other, err := models.NewAttestation(
		id.Identity("bb22bb22bb22bb22bb22bb22bb22bb22"), "claim-hash", s.attestor,
		time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC),
		time.Date(2026, 5, 3, 11, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Supersede(s.ctx, other))
	s.Require().NoError(s.store.Revoke(s.ctx, other.Identity))

	active, err := s.store.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.identity, active[0].Identity)
}

func (s *CompliancePostgresSuite) TestAttestorAllowList() {
	onList, err := s.store.IsAttestor(s.ctx, s.attestor)
	s.Require().NoError(err)
	s.False(onList)

	s.Require().NoError(s.store.SetAttestor(s.ctx, s.attestor, true))
	onList, err = s.store.IsAttestor(s.ctx, s.attestor)
	s.Require().NoError(err)
	s.True(onList)

	s.Require().NoError(s.store.SetAttestor(s.ctx, s.attestor, false))
	onList, err = s.store.IsAttestor(s.ctx, s.attestor)
	s.Require().NoError(err)
	s.False(onList)
}
