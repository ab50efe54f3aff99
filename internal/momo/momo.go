// Package momo integrates mobile money collections (buy) and payouts
// (withdraw). Collections are asynchronous: the gateway records a pending
// payment and the provider reports completion via webhook or polling.
package momo

import "context"

// Collection states as reported by the provider.
const (
	StateComplete   = "COMPLETE"
	StateFailed     = "FAILED"
	StateCancelled  = "CANCELLED"
	StatePending    = "PENDING"
	StateProcessing = "PROCESSING"
)

// Collection identifies an initiated STK push.
type Collection struct {
	InvoiceID string
	State     string
}

// Status is the provider's view of a collection.
type Status struct {
	InvoiceID    string
	State        string
	Reference    string
	FailedReason string
}

// Payout identifies an initiated disbursement to mobile money.
type Payout struct {
	TrackingID string
	State      string
}

// Gateway initiates mobile money collections and payouts.
type Gateway interface {
	InitiateCollection(ctx context.Context, phone string, amountKES int64, reference string) (Collection, error)
	CheckStatus(ctx context.Context, invoiceID string) (Status, error)
	InitiatePayout(ctx context.Context, phone string, amountKES int64, reference string) (Payout, error)
}
