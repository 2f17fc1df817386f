package kumo

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshSuccess = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kumo_session_refresh_success_total",
			Help: "Successful access token refreshes",
		},
	)
	refreshFailure = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kumo_session_refresh_failure_total",
			Help: "Failed access token refreshes",
		},
	)
	sessionValid = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_session_token_valid",
			Help: "Access token validity (1=valid, 0=missing or expired)",
		},
	)
	persistOK = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_session_persist_ok",
			Help: "Session state persistence health (1=ok, 0=error)",
		},
	)
	rateRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_rate_limit_remaining",
			Help: "Remaining requests in the local rate-limit window",
		},
	)
	rateRetryAfter = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_rate_limit_retry_after_seconds",
			Help: "Retry-after seconds from the last service rate-limit response",
		},
	)
	lastStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_http_last_status_code",
			Help: "Last HTTP status code observed from the service",
		},
	)
)

// MetricsCollectors returns collectors for the client session and request guard.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		refreshSuccess,
		refreshFailure,
		sessionValid,
		persistOK,
		rateRemaining,
		rateRetryAfter,
		lastStatus,
	}
}
