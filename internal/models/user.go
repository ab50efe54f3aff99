package models

import "time"

// User is a wallet account keyed by canonical phone number. Balances are held
// in integer satoshis and only ever mutated through the ledger.
type User struct {
	ID          int64     `db:"id" json:"id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	BalanceSats int64     `db:"balance_sats" json:"balance_sats"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
