package momo

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockGateway simulates a mobile money provider in memory. New collections
// start PENDING; Complete and Fail flip them, standing in for the customer
// answering the STK push.
type MockGateway struct {
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]Status
}

// NewMockGateway returns an empty in-memory gateway.
func NewMockGateway(logger *zap.Logger) *MockGateway {
	return &MockGateway{
		logger: logger,
		states: make(map[string]Status),
	}
}

// InitiateCollection records a pending collection under a fresh invoice id.
func (m *MockGateway) InitiateCollection(ctx context.Context, phone string, amountKES int64, reference string) (Collection, error) {
	id := "mock-" + uuid.NewString()

	m.mu.Lock()
	m.states[id] = Status{InvoiceID: id, State: StatePending, Reference: reference}
	m.mu.Unlock()

	m.logger.Info("initiated mock collection",
		zap.String("invoice_id", id),
		zap.String("phone", phone),
		zap.Int64("amount_kes", amountKES),
	)
	return Collection{InvoiceID: id, State: StatePending}, nil
}

// CheckStatus returns the recorded state for the invoice.
func (m *MockGateway) CheckStatus(ctx context.Context, invoiceID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[invoiceID]
	if !ok {
		return Status{}, fmt.Errorf("momo: unknown invoice %q", invoiceID)
	}
	return st, nil
}

// InitiatePayout always succeeds immediately.
func (m *MockGateway) InitiatePayout(ctx context.Context, phone string, amountKES int64, reference string) (Payout, error) {
	id := "mock-payout-" + uuid.NewString()
	m.logger.Info("initiated mock payout",
		zap.String("tracking_id", id),
		zap.String("phone", phone),
		zap.Int64("amount_kes", amountKES),
	)
	return Payout{TrackingID: id, State: StateComplete}, nil
}

// Complete marks a collection COMPLETE.
func (m *MockGateway) Complete(invoiceID string) {
	m.setState(invoiceID, StateComplete, "")
}

// Fail marks a collection FAILED with a reason.
func (m *MockGateway) Fail(invoiceID, reason string) {
	m.setState(invoiceID, StateFailed, reason)
}

func (m *MockGateway) setState(invoiceID, state, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[invoiceID]
	if !ok {
		st = Status{InvoiceID: invoiceID}
	}
	st.State = state
	st.FailedReason = reason
	m.states[invoiceID] = st
}
