package httpserver

import "net/http"

// Routes groups handlers. Ops endpoints run behind OpsAuth when set.
type Routes struct {
	USSD      http.HandlerFunc
	Webhook   http.HandlerFunc
	Reconcile http.HandlerFunc
	Pending   http.HandlerFunc
	Reverse   http.HandlerFunc
	Feed      http.HandlerFunc
	Health    http.HandlerFunc

	OpsAuth func(http.Handler) http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.USSD != nil {
		mux.Handle("/ussd", method(http.MethodPost, routes.USSD))
	}
	if routes.Webhook != nil {
		mux.Handle("/webhook/momo", method(http.MethodPost, routes.Webhook))
	}
	if routes.Reconcile != nil {
		mux.Handle("/internal/reconcile", ops(routes.OpsAuth, method(http.MethodPost, routes.Reconcile)))
	}
	if routes.Pending != nil {
		mux.Handle("/internal/pending", ops(routes.OpsAuth, method(http.MethodGet, routes.Pending)))
	}
	if routes.Reverse != nil {
		mux.Handle("/internal/reverse", ops(routes.OpsAuth, method(http.MethodPost, routes.Reverse)))
	}
	if routes.Feed != nil {
		mux.Handle("/ws/transactions", method(http.MethodGet, routes.Feed))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}

func ops(auth func(http.Handler) http.Handler, handler http.Handler) http.Handler {
	if auth == nil {
		return handler
	}
	return auth(handler)
}
