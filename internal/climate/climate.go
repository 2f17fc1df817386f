// Package climate translates vendor device state into a capability-gated
// climate abstraction and composes partial command writes back to the wire
// vocabulary.
package climate

import (
	"fmt"
	"math"
)

// Units selects the temperature unit presented to consumers. Setpoints are
// always Celsius on the wire regardless.
type Units int

const (
	Celsius Units = iota
	Fahrenheit
)

func ParseUnits(s string) (Units, error) {
	switch s {
	case "", "celsius":
		return Celsius, nil
	case "fahrenheit":
		return Fahrenheit, nil
	}
	return Celsius, fmt.Errorf("unknown units %q", s)
}

func (u Units) String() string {
	if u == Fahrenheit {
		return "fahrenheit"
	}
	return "celsius"
}

// Symbol returns the unit marker used in discovery payloads.
func (u Units) Symbol() string {
	if u == Fahrenheit {
		return "°F"
	}
	return "°C"
}

// Step returns the setpoint granularity presented to consumers.
func (u Units) Step() float64 {
	if u == Fahrenheit {
		return 1.0
	}
	return 0.5
}

// Mode is the abstract operating mode presented to consumers.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeHeat     Mode = "heat"
	ModeCool     Mode = "cool"
	ModeDry      Mode = "dry"
	ModeFanOnly  Mode = "fan_only"
	ModeHeatCool Mode = "heat_cool"
)

// Action is the derived "what is the unit doing right now" state.
type Action string

const (
	ActionOff     Action = "off"
	ActionIdle    Action = "idle"
	ActionHeating Action = "heating"
	ActionCooling Action = "cooling"
	ActionDrying  Action = "drying"
	ActionFan     Action = "fan"
)

// Vendor operating modes as they appear on the wire.
const (
	opModeOff      = "off"
	opModeCool     = "cool"
	opModeHeat     = "heat"
	opModeDry      = "dry"
	opModeVent     = "vent"
	opModeAuto     = "auto"
	opModeAutoCool = "autoCool"
	opModeAutoHeat = "autoHeat"
)

// Fan speeds. The consumer-facing name for the fourth speed diverges from
// the wire value.
const (
	FanAuto     = "auto"
	FanLow      = "low"
	FanMedium   = "medium"
	FanHigh     = "high"
	FanPowerful = "powerful"

	fanWireSuperHigh = "superHigh"
)

// Vane positions. Wire and consumer values are identical.
const (
	SwingAuto          = "auto"
	SwingHorizontal    = "horizontal"
	SwingMidHorizontal = "midhorizontal"
	SwingMidPoint      = "midpoint"
	SwingMidVertical   = "midvertical"
	SwingVertical      = "vertical"
	SwingSwing         = "swing"
)

// modeFromVendor collapses the three vendor auto variants into HEAT_COOL.
// Unknown modes read as OFF.
func modeFromVendor(op string) Mode {
	switch op {
	case opModeCool:
		return ModeCool
	case opModeHeat:
		return ModeHeat
	case opModeDry:
		return ModeDry
	case opModeVent:
		return ModeFanOnly
	case opModeAuto, opModeAutoCool, opModeAutoHeat:
		return ModeHeatCool
	default:
		return ModeOff
	}
}

// modeToVendor maps an abstract mode to its wire value. HEAT_COOL writes
// plain "auto"; the unit picks the heating or cooling leg itself.
func modeToVendor(m Mode) string {
	switch m {
	case ModeCool:
		return opModeCool
	case ModeHeat:
		return opModeHeat
	case ModeDry:
		return opModeDry
	case ModeFanOnly:
		return opModeVent
	case ModeHeatCool:
		return opModeAuto
	default:
		return opModeOff
	}
}

// FanModeFromWire renames superHigh for display; other speeds pass through.
func FanModeFromWire(speed string) string {
	if speed == fanWireSuperHigh {
		return FanPowerful
	}
	return speed
}

// FanModeToWire is the inverse of FanModeFromWire.
func FanModeToWire(mode string) string {
	if mode == FanPowerful {
		return fanWireSuperHigh
	}
	return mode
}

// CelsiusToDisplay converts a Celsius value for presentation. Fahrenheit
// readings round to the nearest whole degree, matching the vendor app.
func CelsiusToDisplay(c float64, u Units) float64 {
	if u == Fahrenheit {
		return math.Round(c*9/5 + 32)
	}
	return c
}

// DisplayToCelsius converts a consumer-supplied temperature to the wire
// unit at full precision.
func DisplayToCelsius(t float64, u Units) float64 {
	if u == Fahrenheit {
		return (t - 32) * 5 / 9
	}
	return t
}
