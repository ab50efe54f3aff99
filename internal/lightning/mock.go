package lightning

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockProvider fabricates invoices locally and accepts any payment request.
// It backs development and tests where no node is configured.
type MockProvider struct {
	logger *zap.Logger

	mu       sync.Mutex
	invoices map[string]Invoice
}

// NewMockProvider returns an empty in-memory provider.
func NewMockProvider(logger *zap.Logger) *MockProvider {
	return &MockProvider{
		logger:   logger,
		invoices: make(map[string]Invoice),
	}
}

// CreateInvoice fabricates a bolt11-looking payment request.
func (m *MockProvider) CreateInvoice(ctx context.Context, payee string, amountSats int64, memo string) (Invoice, error) {
	id := uuid.NewString()
	inv := Invoice{
		InvoiceID:      id,
		PaymentRequest: "lnbc" + strings.ReplaceAll(id, "-", ""),
		AmountSats:     amountSats,
		Memo:           memo,
		CreatedAt:      time.Now().UTC(),
	}

	m.mu.Lock()
	m.invoices[id] = inv
	m.mu.Unlock()

	m.logger.Info("created mock invoice",
		zap.String("invoice_id", id),
		zap.String("payee", payee),
		zap.Int64("amount_sats", amountSats),
	)
	return inv, nil
}

// PayInvoice accepts any non-empty payment request.
func (m *MockProvider) PayInvoice(ctx context.Context, payer, paymentRequest string) error {
	if strings.TrimSpace(paymentRequest) == "" {
		return ErrPaymentFailed
	}
	m.logger.Info("paid mock invoice", zap.String("payer", payer))
	return nil
}
