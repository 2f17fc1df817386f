package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

// resolveZone maps a device serial, zone ID, or zone name to its zone.
// Names match case-insensitively with spaces and dashes collapsed.
func resolveZone(zones []kumo.Zone, input string) (kumo.Zone, error) {
	for _, zone := range zones {
		if zone.ID == input {
			return zone, nil
		}
		if zone.Adapter != nil && zone.Adapter.DeviceSerial == input {
			return zone, nil
		}
	}

	needle := normalizeName(input)
	for _, zone := range zones {
		if normalizeName(zone.Name) == needle {
			return zone, nil
		}
	}

	available := make([]string, 0, len(zones))
	for _, zone := range zones {
		available = append(available, zone.Name)
	}
	sort.Strings(available)
	return kumo.Zone{}, fmt.Errorf("zone %q not found. Available: %s", input, strings.Join(available, ", "))
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	replacer := strings.NewReplacer(" ", "_", "-", "_")
	name = replacer.Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return name
}
