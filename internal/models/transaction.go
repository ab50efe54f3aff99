package models

import "time"

// Transaction types. Counterparties that are not wallet users appear as
// literal labels in From/To (e.g. "M-Pesa", "Airtime-Safaricom").
const (
	TxTypeLightning = "lightning"
	TxTypeTopUp     = "topup"
	TxTypeWithdraw  = "withdraw"
	TxTypeAirtime   = "airtime"
	TxTypeReversal  = "reversal"
)

// Transaction is an immutable ledger entry. Reference carries the external
// correlation id (mobile-money invoice id, payout reference) when one exists.
type Transaction struct {
	ID         int64     `db:"id" json:"id"`
	FromPhone  string    `db:"from_phone" json:"from_phone"`
	ToPhone    string    `db:"to_phone" json:"to_phone"`
	AmountSats int64     `db:"amount_sats" json:"amount_sats"`
	Type       string    `db:"tx_type" json:"tx_type"`
	Reference  string    `db:"reference" json:"reference,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
