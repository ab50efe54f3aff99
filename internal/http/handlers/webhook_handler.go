package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"sambaza/internal/models"
	"sambaza/internal/momo"
	"sambaza/internal/reconciler"
)

type webhookInvoice struct {
	InvoiceID string `json:"invoice_id"`
	State     string `json:"state"`
}

type webhookPayload struct {
	Invoice *webhookInvoice `json:"invoice"`
}

// Publisher receives settled transactions for the live feed.
type Publisher interface {
	Publish(tx models.Transaction)
}

// NewWebhookHandler returns the POST /webhook/momo handler. The payload is a
// hint only: settlement always re-verifies provider state through the
// reconciler, and replays are answered idempotently.
func NewWebhookHandler(rec *reconciler.Reconciler, events Publisher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if payload.Invoice == nil || payload.Invoice.InvoiceID == "" {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		logger.Info("mobile money webhook received",
			zap.String("invoice_id", payload.Invoice.InvoiceID),
			zap.String("state", payload.Invoice.State),
		)

		if payload.Invoice.State != momo.StateComplete {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		res, err := rec.Reconcile(r.Context(), payload.Invoice.InvoiceID)
		if err != nil {
			logger.Error("webhook reconcile failed",
				zap.String("invoice_id", payload.Invoice.InvoiceID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "reconciliation failed")
			return
		}

		if res.Outcome == reconciler.OutcomeCredited && events != nil {
			events.Publish(models.Transaction{
				FromPhone:  "M-Pesa",
				ToPhone:    res.Phone,
				AmountSats: res.AmountSats,
				Type:       models.TxTypeTopUp,
				Reference:  res.InvoiceID,
				CreatedAt:  time.Now().UTC(),
			})
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "processed",
			"outcome": res.Outcome.String(),
			"success": res.Outcome == reconciler.OutcomeCredited || res.Outcome == reconciler.OutcomeAlreadyProcessed,
		})
	}
}
