package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the authenticated account profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, _, err := newClient(ctx)
		if err != nil {
			return err
		}
		account, err := client.Account(ctx)
		if err != nil {
			return err
		}
		return out.printJSON(account)
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the account's sites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, _, err := newClient(ctx)
		if err != nil {
			return err
		}
		sites, err := client.Sites(ctx)
		if err != nil {
			return err
		}
		if out.json {
			return out.printJSON(sites)
		}
		rows := [][]string{{"ID", "NAME"}}
		for _, site := range sites {
			rows = append(rows, []string{site.ID, site.Name})
		}
		out.table(rows)
		return nil
	},
}

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List zones and their last reported state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		if out.json {
			return out.printJSON(zones)
		}
		units, err := displayUnits(cfg)
		if err != nil {
			return err
		}
		rows := [][]string{{"ZONE", "NAME", "SERIAL", "CONNECTED", "MODE", "TEMP"}}
		for _, zone := range zones {
			row := []string{zone.ID, zone.Name, "-", "-", "-", "-"}
			if zone.Adapter != nil {
				reading := climate.Reading{Adapter: zone.Adapter}
				row[2] = zone.Adapter.DeviceSerial
				row[3] = strconv.FormatBool(reading.Connected())
				row[4] = string(reading.Mode())
				row[5] = formatTemp(reading.CurrentTemperature(units))
			}
			rows = append(rows, row)
		}
		out.table(rows)
		return nil
	},
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List every device's status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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
		units, err := displayUnits(cfg)
		if err != nil {
			return err
		}

		type deviceRow struct {
			Zone   kumo.Zone         `json:"zone"`
			Device kumo.DeviceDetail `json:"device"`
		}
		var dump []deviceRow
		rows := [][]string{{"SERIAL", "ZONE", "MODEL", "CONNECTED", "MODE", "TEMP", "COOL TO", "HEAT TO"}}
		for _, zone := range zones {
			if zone.Adapter == nil || zone.Adapter.DeviceSerial == "" {
				continue
			}
			detail, err := client.DeviceDetails(ctx, zone.Adapter.DeviceSerial)
			if err != nil {
				return err
			}
			if out.json {
				dump = append(dump, deviceRow{Zone: zone, Device: detail})
				continue
			}
			reading := climate.Reading{Adapter: zone.Adapter, Device: detail}
			rows = append(rows, []string{
				zone.Adapter.DeviceSerial,
				zone.Name,
				modelLabel(detail),
				strconv.FormatBool(reading.Connected()),
				string(reading.Mode()),
				formatTemp(reading.CurrentTemperature(units)),
				formatTemp(displayOrNil(reading.SpCool(), units)),
				formatTemp(displayOrNil(reading.SpHeat(), units)),
			})
		}
		if out.json {
			return out.printJSON(dump)
		}
		out.table(rows)
		return nil
	},
}

var deviceCmd = &cobra.Command{
	Use:   "device <zone>",
	Short: "Show one device's status and capabilities",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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

		detail, err := client.DeviceDetails(ctx, serial)
		if err != nil {
			return err
		}
		profiles, err := client.DeviceProfiles(ctx, serial)
		if err != nil {
			return err
		}

		if out.json {
			return out.printJSON(struct {
				Zone    kumo.Zone            `json:"zone"`
				Device  kumo.DeviceDetail    `json:"device"`
				Profile []kumo.DeviceProfile `json:"profile"`
			}{zone, detail, profiles})
		}

		units, err := displayUnits(cfg)
		if err != nil {
			return err
		}
		reading := climate.Reading{Adapter: zone.Adapter, Device: detail, Profiles: profiles}
		caps := climate.DeriveCapabilities(profiles, detail, units)

		fmt.Printf("zone: %s (%s)\n", zone.Name, zone.ID)
		fmt.Printf("serial: %s\n", serial)
		fmt.Printf("model: %s\n", modelLabel(detail))
		fmt.Printf("connected: %t\n", reading.Connected())
		fmt.Printf("mode: %s (%s)\n", reading.Mode(), reading.Action())
		fmt.Printf("temperature: %s %s\n", formatTemp(reading.CurrentTemperature(units)), units.Symbol())
		if h := reading.Humidity(); h != nil {
			fmt.Printf("humidity: %.0f%%\n", *h)
		}
		if caps.HasModeHeat {
			fmt.Printf("heat to: %s %s\n", formatTemp(reading.TargetTemperatureLow(units)), units.Symbol())
			fmt.Printf("cool to: %s %s\n", formatTemp(reading.TargetTemperatureHigh(units)), units.Symbol())
		} else {
			fmt.Printf("target: %s %s\n", formatTemp(reading.TargetTemperature(units)), units.Symbol())
		}
		fmt.Printf("fan: %s\n", formatString(reading.FanMode()))
		fmt.Printf("vane: %s\n", formatString(reading.SwingMode()))
		fmt.Printf("modes: %s\n", joinModes(caps.Modes))
		if len(caps.FanModes) > 0 {
			fmt.Printf("fan modes: %s\n", strings.Join(caps.FanModes, ", "))
		}
		if len(caps.SwingModes) > 0 {
			fmt.Printf("vane positions: %s\n", strings.Join(caps.SwingModes, ", "))
		}
		fmt.Printf("range: %.1f to %.1f step %.1f\n", caps.MinTemp, caps.MaxTemp, caps.Step)
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the full site state as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		client, cfg, err := newClient(ctx)
		if err != nil {
			return err
		}
		account, err := client.Account(ctx)
		if err != nil {
			return err
		}
		sites, err := client.Sites(ctx)
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

		type deviceDump struct {
			Device  kumo.DeviceDetail    `json:"device"`
			Profile []kumo.DeviceProfile `json:"profile"`
		}
		dump := struct {
			Account map[string]any        `json:"account"`
			Sites   []kumo.Site           `json:"sites"`
			SiteID  string                `json:"siteId"`
			Zones   []kumo.Zone           `json:"zones"`
			Devices map[string]deviceDump `json:"devices"`
		}{Account: account, Sites: sites, SiteID: siteID, Zones: zones, Devices: map[string]deviceDump{}}

		for _, zone := range zones {
			if zone.Adapter == nil || zone.Adapter.DeviceSerial == "" {
				continue
			}
			serial := zone.Adapter.DeviceSerial
			detail, err := client.DeviceDetails(ctx, serial)
			if err != nil {
				return err
			}
			profiles, err := client.DeviceProfiles(ctx, serial)
			if err != nil {
				return err
			}
			dump.Devices[serial] = deviceDump{Device: detail, Profile: profiles}
		}
		return out.printJSON(dump)
	},
}

func displayOrNil(c *float64, units climate.Units) *float64 {
	if c == nil {
		return nil
	}
	v := climate.CelsiusToDisplay(*c, units)
	return &v
}

func modelLabel(detail kumo.DeviceDetail) string {
	if detail.Model.MaterialDescription != "" {
		return detail.Model.MaterialDescription
	}
	if detail.ModelNumber != "" {
		return detail.ModelNumber
	}
	return "-"
}

func joinModes(modes []climate.Mode) string {
	names := make([]string, len(modes))
	for i, mode := range modes {
		names[i] = string(mode)
	}
	return strings.Join(names, ", ")
}
