// Package lightning abstracts the Lightning node used for invoices and
// payments. The gateway keeps its own ledger; providers here only move value
// across the node boundary.
package lightning

import (
	"context"
	"errors"
	"time"
)

// ErrPaymentFailed reports a payment the node refused or could not route.
var ErrPaymentFailed = errors.New("lightning: payment failed")

// Invoice is a generated payment request.
type Invoice struct {
	InvoiceID      string
	PaymentRequest string
	AmountSats     int64
	Memo           string
	CreatedAt      time.Time
}

// PaymentProvider creates and pays Lightning invoices on behalf of users.
type PaymentProvider interface {
	CreateInvoice(ctx context.Context, payee string, amountSats int64, memo string) (Invoice, error)
	PayInvoice(ctx context.Context, payer, paymentRequest string) error
}
