package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"aurum/internal/custody/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

func admissionReceipt(t *testing.T, assetID id.AssetID) *models.CustodyReceipt {
	t.Helper()
	receipt, err := models.NewConfirmedReceipt(
		id.ReceiptID(uuid.New()),
		id.NewVaultID(),
		models.KindAssetAdmission,
		id.WithdrawalID{},
		assetID,
		id.Identity("cc33cc33cc33cc33cc33cc33cc33cc33"),
		1_000_000,
		[]byte("sig"),
		time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return receipt
}

func TestInMemoryReferenceUniqueness(t *testing.T) {
	ctx := context.Background()
	assetID := id.NewAssetID()

	t.Run("second live receipt for the same reference conflicts", func(t *testing.T) {
		s := NewInMemory()
		require.NoError(t, s.Create(ctx, admissionReceipt(t, assetID)))
		err := s.Create(ctx, admissionReceipt(t, assetID))
		require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
	})

	t.Run("duplicate receipt id conflicts", func(t *testing.T) {
		s := NewInMemory()
		receipt := admissionReceipt(t, assetID)
		require.NoError(t, s.Create(ctx, receipt))
		require.ErrorIs(t, s.Create(ctx, receipt), sentinel.ErrAlreadyUsed)
	})

	t.Run("disputed receipt releases the reference", func(t *testing.T) {
		s := NewInMemory()
		first := admissionReceipt(t, assetID)
		require.NoError(t, s.Create(ctx, first))
		require.NoError(t, s.MarkDisputed(ctx, first.ID))

		second := admissionReceipt(t, assetID)
		require.NoError(t, s.Create(ctx, second))

		live, err := s.FindByReference(ctx, assetID.String())
		require.NoError(t, err)
		require.Equal(t, second.ID, live.ID)
		require.Equal(t, models.StatusConfirmed, live.Status)

		disputed, err := s.FindByID(ctx, first.ID)
		require.NoError(t, err)
		require.Equal(t, models.StatusDisputed, disputed.Status)
	})
}
