package store

import (
	"context"
	"sync"

	"aurum/internal/assetregistry/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// InMemory holds asset records for tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	assets map[id.AssetID]*models.Asset
}

func NewInMemory() *InMemory {
	return &InMemory{assets: make(map[id.AssetID]*models.Asset)}
}

func (s *InMemory) Create(_ context.Context, asset *models.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.assets[asset.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *asset
	s.assets[asset.ID] = &copied
	return nil
}

func (s *InMemory) FindByID(_ context.Context, assetID id.AssetID) (*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *asset
	return &copied, nil
}

// Execute runs validate-then-mutate atomically under the store lock, so lock
// state checks and transitions cannot interleave.
func (s *InMemory) Execute(_ context.Context, assetID id.AssetID, validate func(*models.Asset) error, mutate func(*models.Asset)) (*models.Asset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	asset, ok := s.assets[assetID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if err := validate(asset); err != nil {
		return nil, err
	}
	mutate(asset)
	copied := *asset
	return &copied, nil
}

// ListByVault returns assets whose lock intent or confirmation references the vault.
func (s *InMemory) ListByVault(_ context.Context, vaultID id.VaultID) ([]*models.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Asset
	for _, asset := range s.assets {
		if asset.VaultRef == vaultID {
			copied := *asset
			out = append(out, &copied)
		}
	}
	return out, nil
}
