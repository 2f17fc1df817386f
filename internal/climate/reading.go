package climate

import "github.com/joshp123/kumo2mqtt/internal/kumo"

// Reading bundles the snapshot slices state derives from. Device is the
// zero value when the serial was absent from the last poll; every field
// then falls through to the adapter record or its default.
type Reading struct {
	Adapter  *kumo.AdapterStatus
	Device   kumo.DeviceDetail
	Profiles []kumo.DeviceProfile
}

// Effective fields resolve the detail record first, then the zone adapter
// snapshot, then a documented default.

func (r Reading) OperationMode() string {
	if r.Device.OperationMode != nil {
		return *r.Device.OperationMode
	}
	if r.Adapter != nil && r.Adapter.OperationMode != nil {
		return *r.Adapter.OperationMode
	}
	return opModeOff
}

func (r Reading) Power() int {
	if r.Device.Power != nil {
		return *r.Device.Power
	}
	if r.Adapter != nil && r.Adapter.Power != nil {
		return *r.Adapter.Power
	}
	return 0
}

func (r Reading) FanSpeed() *string {
	if r.Device.FanSpeed != nil {
		return r.Device.FanSpeed
	}
	if r.Adapter != nil {
		return r.Adapter.FanSpeed
	}
	return nil
}

func (r Reading) AirDirection() *string {
	if r.Device.AirDirection != nil {
		return r.Device.AirDirection
	}
	if r.Adapter != nil {
		return r.Adapter.AirDirection
	}
	return nil
}

// SpCool and SpHeat are Celsius, as stored on the wire.

func (r Reading) SpCool() *float64 {
	if r.Device.SpCool != nil {
		return r.Device.SpCool
	}
	if r.Adapter != nil {
		return r.Adapter.SpCool
	}
	return nil
}

func (r Reading) SpHeat() *float64 {
	if r.Device.SpHeat != nil {
		return r.Device.SpHeat
	}
	if r.Adapter != nil {
		return r.Adapter.SpHeat
	}
	return nil
}

func (r Reading) Humidity() *float64 {
	if r.Device.Humidity != nil {
		return r.Device.Humidity
	}
	if r.Adapter != nil {
		return r.Adapter.Humidity
	}
	return nil
}

// RoomTemp reads the zone adapter record only.
func (r Reading) RoomTemp() *float64 {
	if r.Adapter != nil {
		return r.Adapter.RoomTemp
	}
	return nil
}

// Connected resolves reachability; a device absent from both records reads
// as disconnected.
func (r Reading) Connected() bool {
	if r.Device.Connected != nil {
		return *r.Device.Connected
	}
	if r.Adapter != nil && r.Adapter.Connected != nil {
		return *r.Adapter.Connected
	}
	return false
}

// Mode resolves the effective abstract mode. power==0 forces OFF however
// the unit labels its operating mode.
func (r Reading) Mode() Mode {
	if r.Power() == 0 {
		return ModeOff
	}
	return modeFromVendor(r.OperationMode())
}

// Action derives what the unit is doing right now.
func (r Reading) Action() Action {
	if r.Mode() == ModeOff {
		return ActionOff
	}
	switch r.OperationMode() {
	case opModeHeat, opModeAutoHeat:
		return ActionHeating
	case opModeCool, opModeAutoCool:
		return ActionCooling
	case opModeDry:
		return ActionDrying
	case opModeVent:
		return ActionFan
	case opModeAuto:
		return r.autoAction()
	default:
		return ActionIdle
	}
}

// autoAction infers the active leg of plain auto mode by sitting the room
// temperature against the two setpoints.
func (r Reading) autoAction() Action {
	room := r.RoomTemp()
	if room == nil {
		return ActionIdle
	}
	if sp := r.SpCool(); sp != nil && *room >= *sp {
		return ActionCooling
	}
	if sp := r.SpHeat(); sp != nil && *room <= *sp {
		return ActionHeating
	}
	return ActionIdle
}

// CurrentTemperature returns the room reading in display units.
func (r Reading) CurrentTemperature(u Units) *float64 {
	return displayPtr(r.RoomTemp(), u)
}

// TargetTemperature returns the single setpoint for heat or cool mode.
// HEAT_COOL exposes the pair through the low/high accessors instead.
func (r Reading) TargetTemperature(u Units) *float64 {
	switch r.Mode() {
	case ModeCool:
		return displayPtr(r.SpCool(), u)
	case ModeHeat:
		return displayPtr(r.SpHeat(), u)
	default:
		return nil
	}
}

func (r Reading) TargetTemperatureLow(u Units) *float64 {
	if r.Mode() != ModeHeatCool {
		return nil
	}
	return displayPtr(r.SpHeat(), u)
}

func (r Reading) TargetTemperatureHigh(u Units) *float64 {
	if r.Mode() != ModeHeatCool {
		return nil
	}
	return displayPtr(r.SpCool(), u)
}

// FanMode returns the active fan speed in consumer vocabulary.
func (r Reading) FanMode() *string {
	speed := r.FanSpeed()
	if speed == nil {
		return nil
	}
	v := FanModeFromWire(*speed)
	return &v
}

// SwingMode returns the active vane position.
func (r Reading) SwingMode() *string {
	return r.AirDirection()
}

func displayPtr(c *float64, u Units) *float64 {
	if c == nil {
		return nil
	}
	v := CelsiusToDisplay(*c, u)
	return &v
}
