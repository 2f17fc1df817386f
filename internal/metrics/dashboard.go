package metrics

import _ "embed"

//go:embed dashboard.json
var dashboardJSON []byte

// Dashboards returns the bundled Grafana dashboards keyed by serving path.
func Dashboards() map[string][]byte {
	return map[string][]byte{
		"/dashboards/kumo.json": dashboardJSON,
	}
}
