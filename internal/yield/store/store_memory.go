package store

import (
	"context"
	"sort"
	"sync"

	"aurum/internal/yield/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

type epochKey struct {
	vaultID id.VaultID
	epochID id.EpochID
}

// InMemory keeps snapshots, epochs, and credits in process memory.
type InMemory struct {
	mu        sync.RWMutex
	snapshots map[id.SnapshotID]*models.ShareSnapshot
	epochs    map[epochKey]*models.YieldEpoch
	credits   map[id.VaultID][]*models.Credit
}

func NewInMemory() *InMemory {
	return &InMemory{
		snapshots: make(map[id.SnapshotID]*models.ShareSnapshot),
		epochs:    make(map[epochKey]*models.YieldEpoch),
		credits:   make(map[id.VaultID][]*models.Credit),
	}
}

func (s *InMemory) SaveSnapshot(_ context.Context, snapshot *models.ShareSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snapshot
	copied.Balances = make(map[id.Identity]uint64, len(snapshot.Balances))
	for holder, balance := range snapshot.Balances {
		copied.Balances[holder] = balance
	}
	s.snapshots[snapshot.ID] = &copied
	return nil
}

func (s *InMemory) GetSnapshot(_ context.Context, snapshotID id.SnapshotID) (*models.ShareSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[snapshotID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *snapshot
	return &copied, nil
}

// CreateEpoch records a distributed epoch and its credits atomically. A
// second create for the same (vault, epoch) fails with ErrAlreadyUsed.
func (s *InMemory) CreateEpoch(_ context.Context, epoch *models.YieldEpoch, credits []*models.Credit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := epochKey{vaultID: epoch.VaultID, epochID: epoch.EpochID}
	if _, exists := s.epochs[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	copied := *epoch
	s.epochs[key] = &copied
	for _, credit := range credits {
		creditCopy := *credit
		s.credits[epoch.VaultID] = append(s.credits[epoch.VaultID], &creditCopy)
	}
	return nil
}

func (s *InMemory) GetEpoch(_ context.Context, vaultID id.VaultID, epochID id.EpochID) (*models.YieldEpoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	epoch, ok := s.epochs[epochKey{vaultID: vaultID, epochID: epochID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *epoch
	return &copied, nil
}

// ListEpochs returns the vault's epochs in epoch order.
func (s *InMemory) ListEpochs(_ context.Context, vaultID id.VaultID) ([]*models.YieldEpoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.YieldEpoch
	for key, epoch := range s.epochs {
		if key.vaultID == vaultID {
			copied := *epoch
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochID < out[j].EpochID })
	return out, nil
}

// Credits returns every credit the holder accrued in the vault.
func (s *InMemory) Credits(_ context.Context, vaultID id.VaultID, holder id.Identity) ([]*models.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Credit
	for _, credit := range s.credits[vaultID] {
		if credit.Holder == holder {
			copied := *credit
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochID < out[j].EpochID })
	return out, nil
}
