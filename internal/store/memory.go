package store

import (
	"context"
	"sync"
	"time"

	"github.com/gokhana/payment-service/internal/payment"
)

// MemoryStore is a thread-safe in-memory PaymentStore. It is the default
// store and the test double.
type MemoryStore struct {
	mu       sync.RWMutex
	payments map[string]PaymentRecord
	orders   map[string]string // order id -> status
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		payments: make(map[string]PaymentRecord),
		orders:   make(map[string]string),
	}
}

func (s *MemoryStore) SavePayment(_ context.Context, rec PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.UpdatedAt = time.Now().UTC()
	s.payments[rec.ID] = rec
	return nil
}

// UpdatePaymentStatus is overwrite-based, so replaying the same webhook is
// harmless.
func (s *MemoryStore) UpdatePaymentStatus(_ context.Context, paymentID string, status payment.PaymentStatus, gatewayResponse *payment.GatewayPaymentResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payments[paymentID]
	if !ok {
		rec = PaymentRecord{ID: paymentID, CreatedAt: time.Now().UTC()}
	}
	rec.Status = status
	if gatewayResponse != nil {
		rec.GatewayResponse = gatewayResponse
	}
	rec.UpdatedAt = time.Now().UTC()
	s.payments[paymentID] = rec
	return nil
}

func (s *MemoryStore) GetPayment(_ context.Context, paymentID string) (PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.payments[paymentID]
	if !ok {
		return PaymentRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, orderID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[orderID] = status
	return nil
}

// OrderStatus reports the last recorded status for an order, for tests.
func (s *MemoryStore) OrderStatus(orderID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.orders[orderID]
	return status, ok
}
