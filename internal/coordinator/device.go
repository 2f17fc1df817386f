package coordinator

import (
	"context"
	"time"

	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

// Device is a read-through view of one zone's adapter, bound to a
// coordinator. It holds no state of its own; every accessor reads the
// current snapshot.
type Device struct {
	coord  *Coordinator
	zoneID string
	serial string
}

func (c *Coordinator) Device(zoneID, serial string) *Device {
	return &Device{coord: c, zoneID: zoneID, serial: serial}
}

func (d *Device) ZoneID() string { return d.zoneID }
func (d *Device) Serial() string { return d.serial }

// ZoneData returns the zone record, zero-valued when the zone has left
// the snapshot.
func (d *Device) ZoneData() kumo.Zone {
	return d.coord.zone(d.zoneID)
}

// DeviceData returns the detail record, zero-valued when the device has
// not been fetched.
func (d *Device) DeviceData() kumo.DeviceDetail {
	detail, _ := d.coord.DeviceData(d.serial)
	return detail
}

func (d *Device) ProfileData() []kumo.DeviceProfile {
	return d.coord.ProfileData(d.serial)
}

// Available resolves reachability from the detail record first, the zone
// adapter second. A device absent from the snapshot reads unavailable.
func (d *Device) Available() bool {
	if detail, ok := d.coord.DeviceData(d.serial); ok && detail.Connected != nil {
		return *detail.Connected
	}
	if adapter := d.ZoneData().Adapter; adapter != nil && adapter.Connected != nil {
		return *adapter.Connected
	}
	return false
}

// SendCommand writes a partial state update and, after a short settle
// delay, refreshes this device so the snapshot reflects the values the
// unit accepted.
func (d *Device) SendCommand(ctx context.Context, cmd kumo.Command) error {
	if err := d.coord.cloud.SendCommand(ctx, d.serial, cmd); err != nil {
		commandsTotal.WithLabelValues("error").Inc()
		return err
	}
	commandsTotal.WithLabelValues("success").Inc()

	timer := time.NewTimer(d.coord.settleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil
	case <-timer.C:
	}

	d.coord.RefreshDevice(ctx, d.serial)
	return nil
}
