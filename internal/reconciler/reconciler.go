// Package reconciler settles initiated top-ups against the provider's view
// and credits the ledger exactly once per invoice.
package reconciler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"sambaza/internal/ledger"
	"sambaza/internal/models"
	"sambaza/internal/momo"
)

// Outcome of reconciling one invoice.
type Outcome int

// Reconciliation outcomes.
const (
	OutcomeCredited Outcome = iota
	OutcomeAlreadyProcessed
	OutcomeNotFound
	OutcomeStillPending
	OutcomeProviderFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCredited:
		return "credited"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeStillPending:
		return "still_pending"
	case OutcomeProviderFailed:
		return "provider_failed"
	default:
		return "unknown"
	}
}

// Result reports what reconciliation did for one invoice.
type Result struct {
	InvoiceID   string
	Outcome     Outcome
	Phone       string
	AmountSats  int64
	NewBalance  int64
	ProviderMsg string
}

// Reconciler confirms provider state before crediting. Both the webhook and
// the manual sweep funnel through Reconcile, so every path shares the same
// verification and idempotency rules.
type Reconciler struct {
	pending PendingStore
	ledger  ledger.Ledger
	gateway momo.Gateway
	logger  *zap.Logger
}

// New wires a reconciler.
func New(pending PendingStore, led ledger.Ledger, gateway momo.Gateway, logger *zap.Logger) *Reconciler {
	return &Reconciler{pending: pending, ledger: led, gateway: gateway, logger: logger}
}

// Reconcile settles one invoice. Provider state is always re-checked, never
// trusted from the caller, so a forged webhook cannot mint sats.
func (r *Reconciler) Reconcile(ctx context.Context, invoiceID string) (Result, error) {
	if _, err := r.pending.Get(ctx, invoiceID); err != nil {
		if !errors.Is(err, ErrNotFound) {
			return Result{}, fmt.Errorf("reconciler: get pending: %w", err)
		}
		return r.resolveMissing(ctx, invoiceID)
	}

	status, err := r.gateway.CheckStatus(ctx, invoiceID)
	if err != nil {
		return Result{}, fmt.Errorf("reconciler: check status: %w", err)
	}

	switch status.State {
	case momo.StateComplete:
		return r.settle(ctx, invoiceID)
	case momo.StateFailed, momo.StateCancelled:
		return r.discard(ctx, invoiceID, status)
	default:
		return Result{InvoiceID: invoiceID, Outcome: OutcomeStillPending, ProviderMsg: status.State}, nil
	}
}

// Sweep reconciles every pending payment and returns per-invoice results.
func (r *Reconciler) Sweep(ctx context.Context) ([]Result, error) {
	pending, err := r.pending.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconciler: list pending: %w", err)
	}

	results := make([]Result, 0, len(pending))
	for _, p := range pending {
		res, err := r.Reconcile(ctx, p.InvoiceID)
		if err != nil {
			r.logger.Error("sweep reconcile failed",
				zap.String("invoice_id", p.InvoiceID), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

// Pending lists unsettled top-ups for the operations surface.
func (r *Reconciler) Pending(ctx context.Context) ([]models.PendingPayment, error) {
	return r.pending.List(ctx)
}

func (r *Reconciler) settle(ctx context.Context, invoiceID string) (Result, error) {
	p, err := r.pending.Claim(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Lost the race to a concurrent settle for the same invoice.
			return Result{InvoiceID: invoiceID, Outcome: OutcomeAlreadyProcessed}, nil
		}
		return Result{}, fmt.Errorf("reconciler: claim pending: %w", err)
	}

	balance, err := r.ledger.Credit(ctx, p.Phone, p.AmountSats, models.TxTypeTopUp, "mpesa", invoiceID)
	if err != nil {
		// Put the record back so the sweep retries instead of dropping funds.
		if saveErr := r.pending.Save(ctx, p); saveErr != nil {
			r.logger.Error("re-save pending after credit failure",
				zap.String("invoice_id", invoiceID), zap.Error(saveErr))
		}
		return Result{}, fmt.Errorf("reconciler: credit: %w", err)
	}

	r.logger.Info("credited top-up",
		zap.String("invoice_id", invoiceID),
		zap.String("phone", p.Phone),
		zap.Int64("amount_sats", p.AmountSats),
	)
	return Result{
		InvoiceID:  invoiceID,
		Outcome:    OutcomeCredited,
		Phone:      p.Phone,
		AmountSats: p.AmountSats,
		NewBalance: balance,
	}, nil
}

func (r *Reconciler) discard(ctx context.Context, invoiceID string, status momo.Status) (Result, error) {
	p, err := r.pending.Claim(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{InvoiceID: invoiceID, Outcome: OutcomeAlreadyProcessed}, nil
		}
		return Result{}, fmt.Errorf("reconciler: claim pending: %w", err)
	}

	r.logger.Info("discarded failed top-up",
		zap.String("invoice_id", invoiceID),
		zap.String("phone", p.Phone),
		zap.String("state", status.State),
		zap.String("reason", status.FailedReason),
	)
	return Result{
		InvoiceID:   invoiceID,
		Outcome:     OutcomeProviderFailed,
		Phone:       p.Phone,
		ProviderMsg: status.FailedReason,
	}, nil
}

// resolveMissing distinguishes an already-settled invoice from one the
// gateway never issued.
func (r *Reconciler) resolveMissing(ctx context.Context, invoiceID string) (Result, error) {
	tx, err := r.ledger.FindByReference(ctx, invoiceID)
	if err != nil {
		return Result{}, fmt.Errorf("reconciler: find by reference: %w", err)
	}
	if tx != nil {
		return Result{
			InvoiceID:  invoiceID,
			Outcome:    OutcomeAlreadyProcessed,
			Phone:      tx.ToPhone,
			AmountSats: tx.AmountSats,
		}, nil
	}
	return Result{InvoiceID: invoiceID, Outcome: OutcomeNotFound}, nil
}
