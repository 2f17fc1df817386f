package mqtt

import "github.com/prometheus/client_golang/prometheus"

var (
	brokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kumo_mqtt_connected",
			Help: "Whether the broker session is up",
		},
	)
	publishesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kumo_mqtt_publishes_total",
			Help: "Messages published to the broker",
		},
	)
	commandsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kumo_mqtt_commands_received_total",
			Help: "Command messages received, by kind",
		},
		[]string{"kind"},
	)
)

// MetricsCollectors returns the bridge's Prometheus collectors for
// registration.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{brokerConnected, publishesTotal, commandsReceived}
}
