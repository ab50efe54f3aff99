package models

import "time"

// PendingPayment tracks an initiated mobile-money collection that has not yet
// been confirmed by the gateway. InvoiceID is the provider's id and doubles as
// the idempotency key for reconciliation.
type PendingPayment struct {
	InvoiceID  string    `db:"invoice_id" json:"invoice_id"`
	Phone      string    `db:"phone_number" json:"phone_number"`
	AmountKES  int64     `db:"amount_kes" json:"amount_kes"`
	AmountSats int64     `db:"amount_sats" json:"amount_sats"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
