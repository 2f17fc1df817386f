package climate

import "github.com/joshp123/kumo2mqtt/internal/kumo"

// SetMode composes a mode change. The current effective setpoints ride
// along so the unit does not reset them.
func SetMode(r Reading, mode Mode) kumo.Command {
	if mode == ModeOff {
		return kumo.Command{"operationMode": opModeOff}
	}
	cmd := kumo.Command{"operationMode": modeToVendor(mode)}
	attachSetpoints(cmd, r)
	return cmd
}

// SetTemperature composes a setpoint write for the current mode. In a
// single-setpoint mode the other setpoint is re-sent unchanged; in
// HEAT_COOL low maps to the heat setpoint and high to the cool setpoint,
// omitting whichever was not supplied. The command is empty when nothing
// applies.
func SetTemperature(r Reading, u Units, target, low, high *float64) kumo.Command {
	cmd := kumo.Command{}
	switch r.Mode() {
	case ModeCool:
		if target != nil {
			cmd["spCool"] = DisplayToCelsius(*target, u)
			if sp := r.SpHeat(); sp != nil {
				cmd["spHeat"] = *sp
			}
		}
	case ModeHeat:
		if target != nil {
			cmd["spHeat"] = DisplayToCelsius(*target, u)
			if sp := r.SpCool(); sp != nil {
				cmd["spCool"] = *sp
			}
		}
	case ModeHeatCool:
		if low != nil {
			cmd["spHeat"] = DisplayToCelsius(*low, u)
		}
		if high != nil {
			cmd["spCool"] = DisplayToCelsius(*high, u)
		}
	}
	return cmd
}

// SetFanMode composes a fan speed write.
func SetFanMode(mode string) kumo.Command {
	return kumo.Command{"fanSpeed": FanModeToWire(mode)}
}

// SetSwingMode composes a vane position write.
func SetSwingMode(mode string) kumo.Command {
	return kumo.Command{"airDirection": mode}
}

// TurnOn resumes the last known operation mode, substituting cool when the
// unit was off, and re-sends the effective setpoints.
func TurnOn(r Reading) kumo.Command {
	op := r.OperationMode()
	if op == opModeOff {
		op = opModeCool
	}
	cmd := kumo.Command{"operationMode": op}
	attachSetpoints(cmd, r)
	return cmd
}

// TurnOff switches the unit off, leaving setpoints alone.
func TurnOff() kumo.Command {
	return kumo.Command{"operationMode": opModeOff}
}

// Swing backs the vane-swing switch entity.
func Swing(on bool) kumo.Command {
	if on {
		return kumo.Command{"airDirection": SwingSwing}
	}
	return kumo.Command{"airDirection": SwingAuto}
}

// Powerful backs the powerful-mode switch entity.
func Powerful(on bool) kumo.Command {
	if on {
		return kumo.Command{"fanSpeed": fanWireSuperHigh}
	}
	return kumo.Command{"fanSpeed": FanAuto}
}

func attachSetpoints(cmd kumo.Command, r Reading) {
	if sp := r.SpCool(); sp != nil {
		cmd["spCool"] = *sp
	}
	if sp := r.SpHeat(); sp != nil {
		cmd["spHeat"] = *sp
	}
}
