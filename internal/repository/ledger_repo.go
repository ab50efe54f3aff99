// Package repository implements the ledger and pending-payment contracts on
// Postgres. Balance checks and mutations happen in single conditional
// statements so concurrent requests cannot interleave between check and write.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sambaza/internal/ledger"
	"sambaza/internal/models"
)

// LedgerRepository is the Postgres ledger.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository returns the repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// GetBalance returns the user's balance, creating the user at zero on first
// access.
func (r *LedgerRepository) GetBalance(ctx context.Context, phone string) (int64, error) {
	const query = `
		INSERT INTO users (phone_number, balance_sats)
		VALUES ($1, 0)
		ON CONFLICT (phone_number) DO UPDATE SET phone_number = EXCLUDED.phone_number
		RETURNING balance_sats
	`
	var balance int64
	if err := r.db.QueryRowContext(ctx, query, phone).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger repo: get balance: %w", err)
	}
	return balance, nil
}

// Transfer atomically moves sats between two users inside one DB transaction.
func (r *LedgerRepository) Transfer(ctx context.Context, from, to string, amountSats int64) (int64, error) {
	if amountSats < ledger.MinTxSats {
		return 0, ledger.ErrAmountTooSmall
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger repo: begin: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := debitTx(ctx, tx, from, amountSats)
	if err != nil {
		return 0, err
	}
	if err := creditTx(ctx, tx, to, amountSats); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, from, to, amountSats, models.TxTypeLightning, ""); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger repo: commit: %w", err)
	}
	return newBalance, nil
}

// Credit adds sats to one account and records the transaction.
func (r *LedgerRepository) Credit(ctx context.Context, phone string, amountSats int64, txType, from, reference string) (int64, error) {
	if amountSats < ledger.MinTxSats {
		return 0, ledger.ErrAmountTooSmall
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger repo: begin: %w", err)
	}
	defer tx.Rollback()

	if err := creditTx(ctx, tx, phone, amountSats); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, from, phone, amountSats, txType, reference); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx, `SELECT balance_sats FROM users WHERE phone_number = $1`, phone).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger repo: read balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger repo: commit: %w", err)
	}
	return balance, nil
}

// Debit removes sats from one account and records the transaction.
func (r *LedgerRepository) Debit(ctx context.Context, phone string, amountSats int64, txType, to, reference string) (int64, error) {
	if amountSats < ledger.MinTxSats {
		return 0, ledger.ErrAmountTooSmall
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("ledger repo: begin: %w", err)
	}
	defer tx.Rollback()

	newBalance, err := debitTx(ctx, tx, phone, amountSats)
	if err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, tx, phone, to, amountSats, txType, reference); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("ledger repo: commit: %w", err)
	}
	return newBalance, nil
}

// History returns the newest transactions touching the phone, newest first.
func (r *LedgerRepository) History(ctx context.Context, phone string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `
		SELECT id, from_phone, to_phone, amount_sats, tx_type, reference, created_at
		FROM transactions
		WHERE from_phone = $1 OR to_phone = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger repo: history: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.FromPhone, &t.ToPhone, &t.AmountSats, &t.Type, &t.Reference, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ledger repo: scan history: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger repo: history rows: %w", err)
	}
	return txs, nil
}

// FindByReference returns the transaction for an external reference, nil when
// none exists.
func (r *LedgerRepository) FindByReference(ctx context.Context, reference string) (*models.Transaction, error) {
	const query = `
		SELECT id, from_phone, to_phone, amount_sats, tx_type, reference, created_at
		FROM transactions
		WHERE reference = $1
		ORDER BY id
		LIMIT 1
	`
	var t models.Transaction
	err := r.db.QueryRowContext(ctx, query, reference).Scan(
		&t.ID, &t.FromPhone, &t.ToPhone, &t.AmountSats, &t.Type, &t.Reference, &t.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger repo: find by reference: %w", err)
	}
	return &t, nil
}

// debitTx subtracts conditionally: the row only updates while the balance
// covers the amount, which makes overdraft impossible under concurrency.
func debitTx(ctx context.Context, tx *sql.Tx, phone string, amountSats int64) (int64, error) {
	const ensure = `
		INSERT INTO users (phone_number, balance_sats)
		VALUES ($1, 0)
		ON CONFLICT (phone_number) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, ensure, phone); err != nil {
		return 0, fmt.Errorf("ledger repo: ensure user: %w", err)
	}

	const debit = `
		UPDATE users
		SET balance_sats = balance_sats - $2
		WHERE phone_number = $1 AND balance_sats >= $2
		RETURNING balance_sats
	`
	var balance int64
	err := tx.QueryRowContext(ctx, debit, phone, amountSats).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ledger.ErrInsufficientFunds
	}
	if err != nil {
		return 0, fmt.Errorf("ledger repo: debit: %w", err)
	}
	return balance, nil
}

func creditTx(ctx context.Context, tx *sql.Tx, phone string, amountSats int64) error {
	const credit = `
		INSERT INTO users (phone_number, balance_sats)
		VALUES ($1, $2)
		ON CONFLICT (phone_number) DO UPDATE SET balance_sats = users.balance_sats + EXCLUDED.balance_sats
	`
	if _, err := tx.ExecContext(ctx, credit, phone, amountSats); err != nil {
		return fmt.Errorf("ledger repo: credit: %w", err)
	}
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, from, to string, amountSats int64, txType, reference string) error {
	const query = `
		INSERT INTO transactions (from_phone, to_phone, amount_sats, tx_type, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	if _, err := tx.ExecContext(ctx, query, from, to, amountSats, txType, reference); err != nil {
		return fmt.Errorf("ledger repo: insert transaction: %w", err)
	}
	return nil
}
