package climate

import (
	"math"
	"strings"

	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

const (
	defaultMinTempC = 16.0
	defaultMaxTempC = 30.0
)

// Capabilities is the profile-derived feature surface of one device,
// computed once at entity construction. Profiles do not change within a
// session.
type Capabilities struct {
	Modes       []Mode
	FanModes    []string
	SwingModes  []string
	MinTemp     float64
	MaxTemp     float64
	Step        float64
	HasModeHeat bool
}

// DeriveCapabilities gates the feature surface on the first profile entry.
// The detail record supplies the model number selecting the vane-position
// variant. OFF and COOL are always offered.
func DeriveCapabilities(profiles []kumo.DeviceProfile, detail kumo.DeviceDetail, u Units) Capabilities {
	caps := Capabilities{
		Modes:   []Mode{ModeOff},
		MinTemp: CelsiusToDisplay(defaultMinTempC, u),
		MaxTemp: CelsiusToDisplay(defaultMaxTempC, u),
		Step:    u.Step(),
	}

	if len(profiles) == 0 {
		caps.Modes = append(caps.Modes, ModeCool)
		return caps
	}
	profile := profiles[0]
	caps.HasModeHeat = profile.HasModeHeat

	if profile.HasModeHeat {
		caps.Modes = append(caps.Modes, ModeHeat)
	}
	caps.Modes = append(caps.Modes, ModeCool)
	if profile.HasModeDry {
		caps.Modes = append(caps.Modes, ModeDry)
	}
	if profile.HasModeVent {
		caps.Modes = append(caps.Modes, ModeFanOnly)
	}
	if profile.HasModeHeat {
		caps.Modes = append(caps.Modes, ModeHeatCool)
	}

	if profile.NumberOfFanSpeeds > 0 {
		var fans []string
		if profile.HasFanSpeedAuto {
			fans = append(fans, FanAuto)
		}
		if profile.NumberOfFanSpeeds >= 1 {
			fans = append(fans, FanLow)
		}
		if profile.NumberOfFanSpeeds >= 2 {
			fans = append(fans, FanMedium)
		}
		if profile.NumberOfFanSpeeds >= 3 {
			fans = append(fans, FanHigh)
		}
		if profile.NumberOfFanSpeeds >= 4 {
			fans = append(fans, FanPowerful)
		}
		caps.FanModes = fans
	}

	if profile.HasVaneDir || profile.HasVaneSwing {
		if strings.HasPrefix(detail.ModelNumber, "MLZ") {
			// 1-way ceiling cassettes expose the granular positions.
			caps.SwingModes = []string{
				SwingAuto, SwingHorizontal, SwingMidHorizontal, SwingMidPoint,
				SwingMidVertical, SwingVertical, SwingSwing,
			}
		} else {
			caps.SwingModes = []string{SwingAuto, SwingHorizontal, SwingVertical, SwingSwing}
		}
	}

	minC := math.Min(
		orDefault(profile.MinimumSetPoints.Heat, defaultMinTempC),
		orDefault(profile.MinimumSetPoints.Cool, defaultMinTempC),
	)
	maxC := math.Max(
		orDefault(profile.MaximumSetPoints.Heat, defaultMaxTempC),
		orDefault(profile.MaximumSetPoints.Cool, defaultMaxTempC),
	)
	caps.MinTemp = CelsiusToDisplay(minC, u)
	caps.MaxTemp = CelsiusToDisplay(maxC, u)

	return caps
}

func orDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
