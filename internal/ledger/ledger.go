// Package ledger owns user balances and the append-only transaction log.
// Every balance mutation is atomic per account: the check-then-mutate sequence
// can never interleave with a concurrent mutation of the same account.
package ledger

import (
	"context"
	"errors"

	"sambaza/internal/models"
)

// MinTxSats is the absolute ledger floor. UX floors (10 sats for sends, fiat
// minimums) are presentation policy and live in the engine, not here.
const MinTxSats = 1

var (
	// ErrInsufficientFunds is returned when a debit or transfer would take an
	// account below zero.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrAmountTooSmall is returned for amounts below MinTxSats.
	ErrAmountTooSmall = errors.New("ledger: amount below minimum")
)

// Ledger is the balance and transaction-log contract. GetBalance creates the
// user with a zero balance on first access; callers should not treat a read
// as side-effect free.
type Ledger interface {
	GetBalance(ctx context.Context, phone string) (int64, error)
	// Transfer atomically debits from and credits to, appending one lightning
	// transaction. Returns the sender's new balance.
	Transfer(ctx context.Context, from, to string, amountSats int64) (int64, error)
	// Credit adds to a single account and appends one transaction. from labels
	// the external counterparty (e.g. "M-Pesa").
	Credit(ctx context.Context, phone string, amountSats int64, txType, from, reference string) (int64, error)
	// Debit removes from a single account and appends one transaction. to
	// labels the external counterparty.
	Debit(ctx context.Context, phone string, amountSats int64, txType, to, reference string) (int64, error)
	// History returns the newest transactions touching phone, newest first.
	History(ctx context.Context, phone string, limit int) ([]models.Transaction, error)
	// FindByReference returns the transaction carrying the given external
	// reference, or nil when none exists.
	FindByReference(ctx context.Context, reference string) (*models.Transaction, error)
}
