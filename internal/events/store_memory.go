package events

import (
	"context"
	"sync"

	id "aurum/pkg/domain"
)

// Store is the sink the publisher drains into. The in-memory implementation
// backs dev mode and tests; Kafka is the production sink.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// InMemoryStore keeps events per vault for query surfaces and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.VaultID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.VaultID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.VaultID] = append(s.events[event.VaultID], event)
	return nil
}

// ListByVault returns a copy of the events recorded for one vault in emission order.
func (s *InMemoryStore) ListByVault(_ context.Context, vaultID id.VaultID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[vaultID]...), nil
}

// ListAll returns all events across vaults.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []Event
	for _, vaultEvents := range s.events {
		all = append(all, vaultEvents...)
	}
	return all, nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.VaultID][]Event)
}
