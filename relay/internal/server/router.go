// Package server exposes the relay's operational endpoints: liveness,
// readiness and Prometheus metrics. It serves no Slack traffic.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the Socket Mode connection is up.
type ReadinessChecker interface {
	Ready() bool
}

// NewRouter constructs a ServeMux with the operational routes registered.
func NewRouter(ready ReadinessChecker) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", health)
	mux.HandleFunc("/readyz", readiness(ready))

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func readiness(ready ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready == nil || !ready.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
