package handlers

import (
	"encoding/json"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"sambaza/internal/ledger"
	"sambaza/internal/models"
	"sambaza/internal/reconciler"
)

type reconcileRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// NewReconcileHandler returns POST /internal/reconcile. With an invoice id it
// settles that invoice; without one it sweeps everything pending.
func NewReconcileHandler(rec *reconciler.Reconciler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reconcileRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		if req.InvoiceID != "" {
			res, err := rec.Reconcile(r.Context(), req.InvoiceID)
			if err != nil {
				logger.Error("manual reconcile failed", zap.String("invoice_id", req.InvoiceID), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "reconciliation failed")
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"invoice_id":  res.InvoiceID,
				"outcome":     res.Outcome.String(),
				"amount_sats": res.AmountSats,
				"new_balance": res.NewBalance,
			})
			return
		}

		results, err := rec.Sweep(r.Context())
		if err != nil {
			logger.Error("sweep failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "sweep failed")
			return
		}

		out := make([]map[string]interface{}, 0, len(results))
		for _, res := range results {
			out = append(out, map[string]interface{}{
				"invoice_id":  res.InvoiceID,
				"outcome":     res.Outcome.String(),
				"amount_sats": res.AmountSats,
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": out})
	}
}

// NewPendingHandler returns GET /internal/pending.
func NewPendingHandler(rec *reconciler.Reconciler, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := rec.Pending(r.Context())
		if err != nil {
			logger.Error("list pending failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list pending payments")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"pending": pending})
	}
}

type reverseRequest struct {
	Reference string `json:"reference"`
}

// NewReverseHandler returns POST /internal/reverse. It credits back a debit
// whose external payout failed, keyed by the original transaction reference.
// Reversal is idempotent: the reversal itself carries a derived reference, so
// a second call finds it and refuses. The existence check and the credit run
// under one mutex so concurrent calls for the same reference cannot both
// pass the check; the partial unique index on reversal references backs this
// up across processes.
func NewReverseHandler(led ledger.Ledger, logger *zap.Logger) http.HandlerFunc {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		var req reverseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
			writeError(w, http.StatusBadRequest, "reference is required")
			return
		}

		original, err := led.FindByReference(r.Context(), req.Reference)
		if err != nil {
			logger.Error("reverse lookup failed", zap.String("reference", req.Reference), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if original == nil {
			writeError(w, http.StatusNotFound, "no transaction with that reference")
			return
		}
		if original.Type != models.TxTypeWithdraw {
			writeError(w, http.StatusConflict, "only withdrawals can be reversed")
			return
		}

		mu.Lock()
		defer mu.Unlock()

		reversalRef := "REVERSAL_" + req.Reference
		existing, err := led.FindByReference(r.Context(), reversalRef)
		if err != nil {
			logger.Error("reversal lookup failed", zap.String("reference", reversalRef), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if existing != nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":    "already_reversed",
				"reference": req.Reference,
			})
			return
		}

		newBalance, err := led.Credit(r.Context(), original.FromPhone, original.AmountSats,
			models.TxTypeReversal, "M-Pesa", reversalRef)
		if err != nil {
			logger.Error("reversal credit failed", zap.String("reference", req.Reference), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "reversal failed")
			return
		}

		logger.Info("reversed withdrawal",
			zap.String("reference", req.Reference),
			zap.String("phone", original.FromPhone),
			zap.Int64("amount_sats", original.AmountSats),
		)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "reversed",
			"reference":   req.Reference,
			"amount_sats": original.AmountSats,
			"new_balance": newBalance,
		})
	}
}
