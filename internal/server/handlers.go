package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joshp123/kumo2mqtt/internal/coordinator"
)

type healthResponse struct {
	Status    string `json:"status"`
	LastSync  string `json:"last_sync,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// HealthHandler reports readiness from the coordinator: OK until the
// first cycle has run, then OK only while the latest cycle succeeded.
func HealthHandler(coord *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := healthResponse{Status: "ok"}
		if t := coord.LastSync(); !t.IsZero() {
			resp.LastSync = t.UTC().Format(time.RFC3339)
		}
		code := http.StatusOK
		if err := coord.LastError(); err != nil {
			resp.Status = "error"
			resp.LastError = err.Error()
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// MetricsHandler exposes the Prometheus registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// DashboardsHandler serves dashboard JSON from an in-memory map, keyed
// by URL path.
func DashboardsHandler(dashboards map[string][]byte) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if data, ok := dashboards[r.URL.Path]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}
		http.NotFound(w, r)
	})
}
