package climate

import (
	"testing"

	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

func TestDeriveCapabilitiesFullProfile(t *testing.T) {
	profiles := []kumo.DeviceProfile{{
		NumberOfFanSpeeds: 4,
		HasFanSpeedAuto:   true,
		HasVaneDir:        true,
		HasModeHeat:       true,
		HasModeDry:        true,
		HasModeVent:       true,
		MinimumSetPoints:  kumo.SetPoints{Heat: ptr(10.0), Cool: ptr(19.0)},
		MaximumSetPoints:  kumo.SetPoints{Heat: ptr(28.0), Cool: ptr(31.0)},
	}}

	caps := DeriveCapabilities(profiles, kumo.DeviceDetail{ModelNumber: "MSZ-GL12NA"}, Celsius)

	wantModes := []Mode{ModeOff, ModeHeat, ModeCool, ModeDry, ModeFanOnly, ModeHeatCool}
	if len(caps.Modes) != len(wantModes) {
		t.Fatalf("unexpected modes: %v", caps.Modes)
	}
	for i, m := range wantModes {
		if caps.Modes[i] != m {
			t.Fatalf("expected %s at position %d, got %v", m, i, caps.Modes)
		}
	}

	wantFans := []string{FanAuto, FanLow, FanMedium, FanHigh, FanPowerful}
	if len(caps.FanModes) != len(wantFans) {
		t.Fatalf("unexpected fan modes: %v", caps.FanModes)
	}
	for i, f := range wantFans {
		if caps.FanModes[i] != f {
			t.Fatalf("expected fan %s at position %d, got %v", f, i, caps.FanModes)
		}
	}

	wantSwing := []string{SwingAuto, SwingHorizontal, SwingVertical, SwingSwing}
	if len(caps.SwingModes) != len(wantSwing) {
		t.Fatalf("unexpected swing modes: %v", caps.SwingModes)
	}

	if caps.MinTemp != 10 || caps.MaxTemp != 31 {
		t.Fatalf("unexpected range: %v..%v", caps.MinTemp, caps.MaxTemp)
	}
	if caps.Step != 0.5 {
		t.Fatalf("unexpected step: %v", caps.Step)
	}
	if !caps.HasModeHeat {
		t.Fatalf("expected heat capability")
	}
}

func TestDeriveCapabilitiesNoProfile(t *testing.T) {
	caps := DeriveCapabilities(nil, kumo.DeviceDetail{}, Celsius)

	if len(caps.Modes) != 2 || caps.Modes[0] != ModeOff || caps.Modes[1] != ModeCool {
		t.Fatalf("expected off and cool only, got %v", caps.Modes)
	}
	if caps.FanModes != nil || caps.SwingModes != nil {
		t.Fatalf("expected no fan or swing modes without a profile")
	}
	if caps.MinTemp != 16 || caps.MaxTemp != 30 {
		t.Fatalf("expected default range 16..30, got %v..%v", caps.MinTemp, caps.MaxTemp)
	}
}

func TestDeriveCapabilitiesCoolOnly(t *testing.T) {
	profiles := []kumo.DeviceProfile{{NumberOfFanSpeeds: 0}}
	caps := DeriveCapabilities(profiles, kumo.DeviceDetail{}, Celsius)

	if len(caps.Modes) != 2 || caps.Modes[1] != ModeCool {
		t.Fatalf("expected off and cool, got %v", caps.Modes)
	}
	if caps.FanModes != nil {
		t.Fatalf("expected no fan modes with zero speeds, got %v", caps.FanModes)
	}
	if caps.HasModeHeat {
		t.Fatalf("expected no heat capability")
	}
}

func TestDeriveCapabilitiesMLZVanes(t *testing.T) {
	profiles := []kumo.DeviceProfile{{HasVaneSwing: true}}

	caps := DeriveCapabilities(profiles, kumo.DeviceDetail{ModelNumber: "MLZ-KP12NA"}, Celsius)
	if len(caps.SwingModes) != 7 {
		t.Fatalf("expected 7 vane positions for MLZ, got %v", caps.SwingModes)
	}
	if caps.SwingModes[2] != SwingMidHorizontal {
		t.Fatalf("unexpected vane order: %v", caps.SwingModes)
	}

	caps = DeriveCapabilities(profiles, kumo.DeviceDetail{ModelNumber: "MSZ-GL12NA"}, Celsius)
	if len(caps.SwingModes) != 4 {
		t.Fatalf("expected 4 vane positions, got %v", caps.SwingModes)
	}
}

func TestDeriveCapabilitiesFahrenheit(t *testing.T) {
	caps := DeriveCapabilities(nil, kumo.DeviceDetail{}, Fahrenheit)

	// 16C is 60.8F and rounds to 61; 30C is exactly 86F.
	if caps.MinTemp != 61 || caps.MaxTemp != 86 {
		t.Fatalf("expected 61..86, got %v..%v", caps.MinTemp, caps.MaxTemp)
	}
	if caps.Step != 1.0 {
		t.Fatalf("expected whole-degree steps, got %v", caps.Step)
	}
}

func TestDeriveCapabilitiesPartialSetpointBounds(t *testing.T) {
	profiles := []kumo.DeviceProfile{{
		MinimumSetPoints: kumo.SetPoints{Cool: ptr(19.0)},
		MaximumSetPoints: kumo.SetPoints{Heat: ptr(28.0)},
	}}
	caps := DeriveCapabilities(profiles, kumo.DeviceDetail{}, Celsius)

	// Missing bounds fall back to the defaults inside min/max.
	if caps.MinTemp != 16 {
		t.Fatalf("expected min 16, got %v", caps.MinTemp)
	}
	if caps.MaxTemp != 30 {
		t.Fatalf("expected max 30, got %v", caps.MaxTemp)
	}
}
