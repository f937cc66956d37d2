package store

import (
	"context"
	"sync"

	"aurum/internal/vault/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// InMemory keeps vault ledgers in process memory. Each vault carries its own
// write lock, so mutations on one vault serialize while independent vaults
// proceed in parallel. Used by unit tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	ledgers map[id.VaultID]*ledgerEntry
}

type ledgerEntry struct {
	mu     sync.Mutex
	ledger *models.Ledger
}

func NewInMemory() *InMemory {
	return &InMemory{ledgers: make(map[id.VaultID]*ledgerEntry)}
}

func (s *InMemory) CreateVault(_ context.Context, vault *models.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.ledgers[vault.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *vault
	s.ledgers[vault.ID] = &ledgerEntry{ledger: models.NewLedger(&copied)}
	return nil
}

// ListVaultIDs returns every vault the store knows about.
func (s *InMemory) ListVaultIDs(_ context.Context) ([]id.VaultID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]id.VaultID, 0, len(s.ledgers))
	for vaultID := range s.ledgers {
		out = append(out, vaultID)
	}
	return out, nil
}

func (s *InMemory) entry(vaultID id.VaultID) (*ledgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.ledgers[vaultID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return entry, nil
}

// View returns a snapshot of the vault's books.
func (s *InMemory) View(_ context.Context, vaultID id.VaultID) (*models.Ledger, error) {
	entry, err := s.entry(vaultID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.ledger.Clone(), nil
}

// Execute runs validate-then-mutate under the vault's write lock. The
// mutation runs on a working copy; the copy replaces the stored ledger only
// when validate passes, so a rejected call leaves no partial writes.
func (s *InMemory) Execute(_ context.Context, vaultID id.VaultID, validate func(*models.Ledger) error, mutate func(*models.Ledger)) (*models.Ledger, error) {
	entry, err := s.entry(vaultID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	working := entry.ledger.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	entry.ledger = working
	return working.Clone(), nil
}
