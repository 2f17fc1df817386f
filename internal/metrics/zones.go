// Package metrics exposes the coordinator snapshot as Prometheus gauges.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/coordinator"
)

// ZoneCollector publishes per-zone readings on scrape. Values come from
// the cached snapshot, so a scrape never hits the cloud service.
// Temperatures are always Celsius here regardless of the display units.
type ZoneCollector struct {
	coord *coordinator.Coordinator

	temp      *prometheus.GaugeVec
	humidity  *prometheus.GaugeVec
	spCool    *prometheus.GaugeVec
	spHeat    *prometheus.GaugeVec
	powerOn   *prometheus.GaugeVec
	connected *prometheus.GaugeVec
	defrost   *prometheus.GaugeVec
	standby   *prometheus.GaugeVec
}

func NewZoneCollector(coord *coordinator.Coordinator) *ZoneCollector {
	labels := []string{"zone_id", "zone_name"}
	return &ZoneCollector{
		coord: coord,
		temp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_room_temperature_celsius",
			Help: "Current room temperature per zone",
		}, labels),
		humidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_humidity_percent",
			Help: "Current humidity per zone",
		}, labels),
		spCool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_setpoint_cool_celsius",
			Help: "Cooling setpoint per zone",
		}, labels),
		spHeat: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_setpoint_heat_celsius",
			Help: "Heating setpoint per zone",
		}, labels),
		powerOn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_power_on_bool",
			Help: "Power setting per zone (1=on, 0=off)",
		}, labels),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_connected_bool",
			Help: "Adapter reachability per zone (1=connected)",
		}, labels),
		defrost: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_defrost_bool",
			Help: "Defrost lamp per zone (1=active)",
		}, labels),
		standby: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kumo_zone_standby_bool",
			Help: "Standby lamp per zone (1=active)",
		}, labels),
	}
}

func (c *ZoneCollector) Describe(ch chan<- *prometheus.Desc) {
	c.temp.Describe(ch)
	c.humidity.Describe(ch)
	c.spCool.Describe(ch)
	c.spHeat.Describe(ch)
	c.powerOn.Describe(ch)
	c.connected.Describe(ch)
	c.defrost.Describe(ch)
	c.standby.Describe(ch)
}

func (c *ZoneCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.coord.Snapshot()

	c.temp.Reset()
	c.humidity.Reset()
	c.spCool.Reset()
	c.spHeat.Reset()
	c.powerOn.Reset()
	c.connected.Reset()
	c.defrost.Reset()
	c.standby.Reset()

	for _, zone := range snap.Zones {
		if zone.Adapter == nil {
			continue
		}
		serial := zone.Adapter.DeviceSerial
		detail := snap.Devices[serial]
		reading := climate.Reading{
			Adapter:  zone.Adapter,
			Device:   detail,
			Profiles: snap.Profiles[serial],
		}

		labels := prometheus.Labels{
			"zone_id":   zone.ID,
			"zone_name": zone.Name,
		}
		if v := reading.RoomTemp(); v != nil {
			c.temp.With(labels).Set(*v)
		}
		if v := reading.Humidity(); v != nil {
			c.humidity.With(labels).Set(*v)
		}
		if v := reading.SpCool(); v != nil {
			c.spCool.With(labels).Set(*v)
		}
		if v := reading.SpHeat(); v != nil {
			c.spHeat.With(labels).Set(*v)
		}
		c.powerOn.With(labels).Set(boolToFloat(reading.Power() != 0))
		c.connected.With(labels).Set(boolToFloat(reading.Connected()))
		if v := detail.DisplayConfig.Defrost; v != nil {
			c.defrost.With(labels).Set(boolToFloat(*v))
		}
		if v := detail.DisplayConfig.Standby; v != nil {
			c.standby.With(labels).Set(boolToFloat(*v))
		}
	}

	c.temp.Collect(ch)
	c.humidity.Collect(ch)
	c.spCool.Collect(ch)
	c.spHeat.Collect(ch)
	c.powerOn.Collect(ch)
	c.connected.Collect(ch)
	c.defrost.Collect(ch)
	c.standby.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
