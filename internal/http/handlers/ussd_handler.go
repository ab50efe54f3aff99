package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"sambaza/internal/engine"
)

// NewUSSDHandler returns the POST /ussd handler. The aggregator sends
// form-encoded callbacks and expects the raw CON/END text back.
func NewUSSDHandler(eng *engine.Engine, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form data", http.StatusBadRequest)
			return
		}

		req := engine.Request{
			SessionID:   r.FormValue("sessionId"),
			ServiceCode: r.FormValue("serviceCode"),
			Phone:       r.FormValue("phoneNumber"),
			Text:        r.FormValue("text"),
		}
		if req.SessionID == "" || req.Phone == "" {
			http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
			return
		}

		reply := eng.Handle(r.Context(), req)

		logger.Info("ussd request served",
			zap.String("session_id", req.SessionID),
			zap.String("text", req.Text),
			zap.Int("reply_len", len(reply)),
		)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(reply))
	}
}
