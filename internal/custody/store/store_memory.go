package store

import (
	"context"
	"sync"

	"aurum/internal/custody/models"
	id "aurum/pkg/domain"
	"aurum/pkg/platform/sentinel"
)

// InMemory keeps custody receipts in process memory.
type InMemory struct {
	mu       sync.RWMutex
	receipts map[id.ReceiptID]*models.CustodyReceipt
	byRef    map[string]id.ReceiptID
}

func NewInMemory() *InMemory {
	return &InMemory{
		receipts: make(map[id.ReceiptID]*models.CustodyReceipt),
		byRef:    make(map[string]id.ReceiptID),
	}
}

// Create records a receipt. A reference may carry at most one live receipt;
// a disputed receipt releases its reference so a force-unlocked asset can be
// re-admitted under a fresh one.
func (s *InMemory) Create(_ context.Context, receipt *models.CustodyReceipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.receipts[receipt.ID]; exists {
		return sentinel.ErrAlreadyUsed
	}
	if priorID, ok := s.byRef[receipt.Reference()]; ok {
		if s.receipts[priorID].Status != models.StatusDisputed {
			return sentinel.ErrAlreadyUsed
		}
	}
	copied := *receipt
	s.receipts[receipt.ID] = &copied
	s.byRef[receipt.Reference()] = receipt.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, receiptID id.ReceiptID) (*models.CustodyReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receipt, ok := s.receipts[receiptID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *receipt
	return &copied, nil
}

// FindByReference returns the receipt that settled the given withdrawal or
// asset.
func (s *InMemory) FindByReference(_ context.Context, reference string) (*models.CustodyReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	receiptID, ok := s.byRef[reference]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *s.receipts[receiptID]
	return &copied, nil
}

// MarkDisputed flips a confirmed receipt to disputed.
func (s *InMemory) MarkDisputed(_ context.Context, receiptID id.ReceiptID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	receipt, ok := s.receipts[receiptID]
	if !ok {
		return sentinel.ErrNotFound
	}
	receipt.Status = models.StatusDisputed
	return nil
}
