package reconciler

import (
	"context"
	"errors"
	"sync"

	"sambaza/internal/models"
)

// ErrNotFound reports an invoice id with no pending payment on record.
var ErrNotFound = errors.New("reconciler: pending payment not found")

// PendingStore tracks top-ups that have been initiated but not yet credited.
// Claim must be atomic: exactly one caller wins the record, so a webhook and
// a poll for the same invoice cannot both credit.
type PendingStore interface {
	Save(ctx context.Context, p models.PendingPayment) error
	Get(ctx context.Context, invoiceID string) (models.PendingPayment, error)
	Claim(ctx context.Context, invoiceID string) (models.PendingPayment, error)
	List(ctx context.Context) ([]models.PendingPayment, error)
}

// MemoryPendingStore keeps pending payments in a mutex-guarded map.
type MemoryPendingStore struct {
	mu      sync.Mutex
	pending map[string]models.PendingPayment
}

// NewMemoryPendingStore returns an empty store.
func NewMemoryPendingStore() *MemoryPendingStore {
	return &MemoryPendingStore{pending: make(map[string]models.PendingPayment)}
}

// Save records or overwrites a pending payment.
func (s *MemoryPendingStore) Save(ctx context.Context, p models.PendingPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[p.InvoiceID] = p
	return nil
}

// Get returns the pending payment without removing it.
func (s *MemoryPendingStore) Get(ctx context.Context, invoiceID string) (models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[invoiceID]
	if !ok {
		return models.PendingPayment{}, ErrNotFound
	}
	return p, nil
}

// Claim removes and returns the pending payment. The second claimer gets
// ErrNotFound.
func (s *MemoryPendingStore) Claim(ctx context.Context, invoiceID string) (models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[invoiceID]
	if !ok {
		return models.PendingPayment{}, ErrNotFound
	}
	delete(s.pending, invoiceID)
	return p, nil
}

// List returns all pending payments in unspecified order.
func (s *MemoryPendingStore) List(ctx context.Context) ([]models.PendingPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.PendingPayment, 0, len(s.pending))
	for _, p := range s.pending {
		out = append(out, p)
	}
	return out, nil
}
