package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sambaza/internal/models"
	"sambaza/internal/reconciler"
)

// PendingRepository stores unsettled top-ups in Postgres.
type PendingRepository struct {
	db *sql.DB
}

// NewPendingRepository returns the repository.
func NewPendingRepository(db *sql.DB) *PendingRepository {
	return &PendingRepository{db: db}
}

// Save records or refreshes a pending payment.
func (r *PendingRepository) Save(ctx context.Context, p models.PendingPayment) error {
	const query = `
		INSERT INTO pending_payments (invoice_id, phone_number, amount_kes, amount_sats, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (invoice_id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			amount_kes = EXCLUDED.amount_kes,
			amount_sats = EXCLUDED.amount_sats
	`
	if _, err := r.db.ExecContext(ctx, query, p.InvoiceID, p.Phone, p.AmountKES, p.AmountSats, p.CreatedAt); err != nil {
		return fmt.Errorf("pending repo: save: %w", err)
	}
	return nil
}

// Get returns the pending payment without consuming it.
func (r *PendingRepository) Get(ctx context.Context, invoiceID string) (models.PendingPayment, error) {
	const query = `
		SELECT invoice_id, phone_number, amount_kes, amount_sats, created_at
		FROM pending_payments
		WHERE invoice_id = $1
	`
	var p models.PendingPayment
	err := r.db.QueryRowContext(ctx, query, invoiceID).Scan(&p.InvoiceID, &p.Phone, &p.AmountKES, &p.AmountSats, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingPayment{}, reconciler.ErrNotFound
	}
	if err != nil {
		return models.PendingPayment{}, fmt.Errorf("pending repo: get: %w", err)
	}
	return p, nil
}

// Claim consumes the pending payment. DELETE ... RETURNING makes the claim
// atomic; the losing racer sees zero rows.
func (r *PendingRepository) Claim(ctx context.Context, invoiceID string) (models.PendingPayment, error) {
	const query = `
		DELETE FROM pending_payments
		WHERE invoice_id = $1
		RETURNING invoice_id, phone_number, amount_kes, amount_sats, created_at
	`
	var p models.PendingPayment
	err := r.db.QueryRowContext(ctx, query, invoiceID).Scan(&p.InvoiceID, &p.Phone, &p.AmountKES, &p.AmountSats, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PendingPayment{}, reconciler.ErrNotFound
	}
	if err != nil {
		return models.PendingPayment{}, fmt.Errorf("pending repo: claim: %w", err)
	}
	return p, nil
}

// List returns all pending payments, oldest first.
func (r *PendingRepository) List(ctx context.Context) ([]models.PendingPayment, error) {
	const query = `
		SELECT invoice_id, phone_number, amount_kes, amount_sats, created_at
		FROM pending_payments
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pending repo: list: %w", err)
	}
	defer rows.Close()

	var out []models.PendingPayment
	for rows.Next() {
		var p models.PendingPayment
		if err := rows.Scan(&p.InvoiceID, &p.Phone, &p.AmountKES, &p.AmountSats, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("pending repo: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pending repo: rows: %w", err)
	}
	return out, nil
}
