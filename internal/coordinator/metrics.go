package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	syncCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kumo_sync_cycles_total",
			Help: "Full sync cycles by result",
		},
		[]string{"result"},
	)
	targetedRefresh = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kumo_targeted_refresh_total",
			Help: "Single-device refreshes by result",
		},
		[]string{"result"},
	)
	commandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kumo_commands_total",
			Help: "Device commands by result",
		},
		[]string{"result"},
	)
	lastSyncTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_last_sync_timestamp_seconds",
			Help: "Unix time of the last successful full sync",
		},
	)
	lastSyncSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_last_sync_success",
			Help: "1 while the latest full sync cycle succeeded",
		},
	)
)

// MetricsCollectors returns the coordinator's Prometheus collectors for
// registration.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{syncCycles, targetedRefresh, commandsTotal, lastSyncTimestamp, lastSyncSuccess}
}
