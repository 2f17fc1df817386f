package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewRegistry builds a registry from collector groups.
func NewRegistry(groups ...[]prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	for _, group := range groups {
		for _, collector := range group {
			registry.MustRegister(collector)
		}
	}
	return registry
}
