package main

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

var (
	setMode     string
	setTemp     float64
	setHeatTo   float64
	setCoolTo   float64
	setFan      string
	setVane     string
	setPower    string
	setSwingOn  string
	setPowerful string
)

var setCmd = &cobra.Command{
	Use:   "set <zone>",
	Short: "Send a settings change to a device",
	Example: `  kumoctl set "Living Room" --mode cool --temp 24
  kumoctl set bedroom --mode heat_cool --heat-to 19 --cool-to 26
  kumoctl set 1234567890AB --power off
  kumoctl set hallway --fan auto --swing on`,
	Args: cobra.ExactArgs(1),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringVar(&setMode, "mode", "", "Operating mode: off, heat, cool, dry, fan_only, heat_cool")
	setCmd.Flags().Float64Var(&setTemp, "temp", 0, "Target temperature for the active single-setpoint mode")
	setCmd.Flags().Float64Var(&setHeatTo, "heat-to", 0, "Heat setpoint")
	setCmd.Flags().Float64Var(&setCoolTo, "cool-to", 0, "Cool setpoint")
	setCmd.Flags().StringVar(&setFan, "fan", "", "Fan mode: auto, low, medium, high, powerful")
	setCmd.Flags().StringVar(&setVane, "vane", "", "Vane position, e.g. auto, horizontal, vertical, swing")
	setCmd.Flags().StringVar(&setPower, "power", "", "Power: on or off")
	setCmd.Flags().StringVar(&setSwingOn, "swing", "", "Vane swing: on or off")
	setCmd.Flags().StringVar(&setPowerful, "powerful", "", "Powerful mode: on or off")
}

func runSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, cfg, err := newClient(ctx)
	if err != nil {
		return err
	}
	siteID, err := resolveSiteID(ctx, client, cfg)
	if err != nil {
		return err
	}
	zones, err := client.Zones(ctx, siteID)
	if err != nil {
		return err
	}
	zone, err := resolveZone(zones, args[0])
	if err != nil {
		return err
	}
	if zone.Adapter == nil || zone.Adapter.DeviceSerial == "" {
		return fmt.Errorf("zone %q has no device attached", zone.Name)
	}
	serial := zone.Adapter.DeviceSerial

	// Current state feeds the builders: mode changes carry the effective
	// setpoints along and --temp resolves against the active mode.
	detail, err := client.DeviceDetails(ctx, serial)
	if err != nil {
		return err
	}
	units, err := displayUnits(cfg)
	if err != nil {
		return err
	}
	reading := climate.Reading{Adapter: zone.Adapter, Device: detail}

	command, err := buildCommand(cmd, reading, units)
	if err != nil {
		return err
	}
	if len(command) == 0 {
		return fmt.Errorf("nothing to set, see 'kumoctl set --help'")
	}

	if err := client.SendCommand(ctx, serial, command); err != nil {
		return err
	}
	data, err := json.Marshal(command)
	if err != nil {
		return err
	}
	fmt.Printf("%s <- %s\n", serial, data)
	return nil
}

func buildCommand(cmd *cobra.Command, reading climate.Reading, units climate.Units) (kumo.Command, error) {
	flags := cmd.Flags()
	command := kumo.Command{}

	mode := reading.Mode()
	if setMode != "" {
		parsed, err := parseMode(setMode)
		if err != nil {
			return nil, err
		}
		maps.Copy(command, climate.SetMode(reading, parsed))
		mode = parsed
	}
	if setPower != "" {
		on, err := parseOnOff("power", setPower)
		if err != nil {
			return nil, err
		}
		if on {
			maps.Copy(command, climate.TurnOn(reading))
		} else {
			maps.Copy(command, climate.TurnOff())
		}
	}

	if flags.Changed("temp") {
		switch mode {
		case climate.ModeHeat:
			command["spHeat"] = climate.DisplayToCelsius(setTemp, units)
		case climate.ModeCool, climate.ModeDry:
			command["spCool"] = climate.DisplayToCelsius(setTemp, units)
		case climate.ModeHeatCool:
			return nil, fmt.Errorf("use --heat-to and --cool-to in heat_cool mode")
		default:
			return nil, fmt.Errorf("unit is off, combine --temp with --mode or --power on")
		}
	}
	if flags.Changed("heat-to") {
		command["spHeat"] = climate.DisplayToCelsius(setHeatTo, units)
	}
	if flags.Changed("cool-to") {
		command["spCool"] = climate.DisplayToCelsius(setCoolTo, units)
	}

	if setFan != "" {
		maps.Copy(command, climate.SetFanMode(setFan))
	}
	if setVane != "" {
		maps.Copy(command, climate.SetSwingMode(setVane))
	}
	if setSwingOn != "" {
		on, err := parseOnOff("swing", setSwingOn)
		if err != nil {
			return nil, err
		}
		maps.Copy(command, climate.Swing(on))
	}
	if setPowerful != "" {
		on, err := parseOnOff("powerful", setPowerful)
		if err != nil {
			return nil, err
		}
		maps.Copy(command, climate.Powerful(on))
	}
	return command, nil
}

func parseMode(raw string) (climate.Mode, error) {
	switch mode := climate.Mode(strings.ToLower(raw)); mode {
	case climate.ModeOff, climate.ModeHeat, climate.ModeCool,
		climate.ModeDry, climate.ModeFanOnly, climate.ModeHeatCool:
		return mode, nil
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}

func parseOnOff(flag, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("--%s wants on or off, got %q", flag, raw)
}
