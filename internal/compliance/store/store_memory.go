package store

import (
	"context"
	"sync"

	"aurum/internal/compliance/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// InMemory keeps attestation history and the attestor allow-list in process.
// Used for unit tests and dev mode; semantics mirror the postgres store.
type InMemory struct {
	mu        sync.RWMutex
	history   map[id.Identity][]*models.Attestation
	attestors map[id.Identity]bool
}

func NewInMemory() *InMemory {
	return &InMemory{
		history:   make(map[id.Identity][]*models.Attestation),
		attestors: make(map[id.Identity]bool),
	}
}

// Supersede appends a new attestation for the identity. Prior attestations
// stay in history; the newest entry wins for eligibility checks.
func (s *InMemory) Supersede(_ context.Context, att *models.Attestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *att
	s.history[att.Identity] = append(s.history[att.Identity], &copied)
	return nil
}

// Latest returns the attestation currently in effect for the identity.
func (s *InMemory) Latest(_ context.Context, identity id.Identity) (*models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[identity]
	if len(entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	copied := *entries[len(entries)-1]
	return &copied, nil
}

// Revoke marks the latest attestation revoked. Revoking an already-revoked
// attestation succeeds; an identity with no attestation is ErrNotFound.
func (s *InMemory) Revoke(_ context.Context, identity id.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[identity]
	if len(entries) == 0 {
		return sentinel.ErrNotFound
	}
	entries[len(entries)-1].ApplyRevocation()
	return nil
}

// History returns all attestations recorded for the identity, oldest first.
func (s *InMemory) History(_ context.Context, identity id.Identity) ([]*models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.history[identity]
	out := make([]*models.Attestation, 0, len(entries))
	for _, e := range entries {
		copied := *e
		out = append(out, &copied)
	}
	return out, nil
}

// ListActive returns the latest non-revoked attestation per identity. Expiry
// filtering is the caller's concern since the commitment binds expiry into
// each leaf.
func (s *InMemory) ListActive(_ context.Context) ([]*models.Attestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Attestation
	for _, entries := range s.history {
		latest := entries[len(entries)-1]
		if latest.Revoked {
			continue
		}
		copied := *latest
		out = append(out, &copied)
	}
	return out, nil
}

// SetAttestor flips allow-list membership for an attestor address.
func (s *InMemory) SetAttestor(_ context.Context, attestor id.Identity, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		s.attestors[attestor] = true
	} else {
		delete(s.attestors, attestor)
	}
	return nil
}

// IsAttestor reports allow-list membership.
func (s *InMemory) IsAttestor(_ context.Context, attestor id.Identity) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attestors[attestor], nil
}
