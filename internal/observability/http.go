package observability

import (
	"encoding/json"
	"net/http"
)

func Handler(metrics *Metrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := metrics.Snapshot()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})
}

// NewMux exposes the metrics snapshot and a liveness probe.
func NewMux(metrics *Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(metrics))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
