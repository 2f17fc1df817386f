package mqtt

import (
	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

// Discovery payloads follow the Home Assistant MQTT convention. The "~"
// key abbreviates the per-device base topic inside each config.

type deviceInfo struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
}

type availability struct {
	Topic string `json:"topic"`
}

// climateConfig advertises the thermostat entity. Name is null so the
// entity takes the device name.
type climateConfig struct {
	BaseTopic string   `json:"~"`
	Name      *string  `json:"name"`
	UniqueID  string   `json:"unique_id"`
	Modes     []string `json:"modes"`
	FanModes  []string `json:"fan_modes,omitempty"`
	Swing     []string `json:"swing_modes,omitempty"`

	MinTemp         float64 `json:"min_temp"`
	MaxTemp         float64 `json:"max_temp"`
	TempStep        float64 `json:"temp_step"`
	TemperatureUnit string  `json:"temperature_unit"`

	ModeStateTopic    string `json:"mode_state_topic"`
	ModeStateTemplate string `json:"mode_state_template"`
	ModeCommandTopic  string `json:"mode_command_topic"`

	ActionTopic    string `json:"action_topic"`
	ActionTemplate string `json:"action_template"`

	CurrentTemperatureTopic    string `json:"current_temperature_topic"`
	CurrentTemperatureTemplate string `json:"current_temperature_template"`

	TemperatureStateTopic    string `json:"temperature_state_topic"`
	TemperatureStateTemplate string `json:"temperature_state_template"`
	TemperatureCommandTopic  string `json:"temperature_command_topic"`

	TemperatureLowStateTopic    string `json:"temperature_low_state_topic,omitempty"`
	TemperatureLowStateTemplate string `json:"temperature_low_state_template,omitempty"`
	TemperatureLowCommandTopic  string `json:"temperature_low_command_topic,omitempty"`

	TemperatureHighStateTopic    string `json:"temperature_high_state_topic,omitempty"`
	TemperatureHighStateTemplate string `json:"temperature_high_state_template,omitempty"`
	TemperatureHighCommandTopic  string `json:"temperature_high_command_topic,omitempty"`

	FanModeStateTopic    string `json:"fan_mode_state_topic,omitempty"`
	FanModeStateTemplate string `json:"fan_mode_state_template,omitempty"`
	FanModeCommandTopic  string `json:"fan_mode_command_topic,omitempty"`

	SwingModeStateTopic    string `json:"swing_mode_state_topic,omitempty"`
	SwingModeStateTemplate string `json:"swing_mode_state_template,omitempty"`
	SwingModeCommandTopic  string `json:"swing_mode_command_topic,omitempty"`

	PowerCommandTopic string `json:"power_command_topic"`

	Availability     []availability `json:"availability"`
	AvailabilityMode string         `json:"availability_mode"`
	Device           deviceInfo     `json:"device"`
}

type sensorConfig struct {
	BaseTopic         string         `json:"~"`
	Name              string         `json:"name"`
	UniqueID          string         `json:"unique_id"`
	StateTopic        string         `json:"state_topic"`
	ValueTemplate     string         `json:"value_template"`
	DeviceClass       string         `json:"device_class,omitempty"`
	StateClass        string         `json:"state_class,omitempty"`
	UnitOfMeasurement string         `json:"unit_of_measurement,omitempty"`
	Availability      []availability `json:"availability"`
	AvailabilityMode  string         `json:"availability_mode"`
	Device            deviceInfo     `json:"device"`
}

type binarySensorConfig struct {
	BaseTopic        string         `json:"~"`
	Name             string         `json:"name"`
	UniqueID         string         `json:"unique_id"`
	StateTopic       string         `json:"state_topic"`
	ValueTemplate    string         `json:"value_template"`
	EntityCategory   string         `json:"entity_category,omitempty"`
	Availability     []availability `json:"availability"`
	AvailabilityMode string         `json:"availability_mode"`
	Device           deviceInfo     `json:"device"`
}

type switchConfig struct {
	BaseTopic        string         `json:"~"`
	Name             string         `json:"name"`
	UniqueID         string         `json:"unique_id"`
	StateTopic       string         `json:"state_topic"`
	ValueTemplate    string         `json:"value_template"`
	CommandTopic     string         `json:"command_topic"`
	Availability     []availability `json:"availability"`
	AvailabilityMode string         `json:"availability_mode"`
	Device           deviceInfo     `json:"device"`
}

func deviceBlock(zoneName string, detail kumo.DeviceDetail, serial string) deviceInfo {
	name := zoneName
	if name == "" {
		name = "Kumo Cloud Device"
	}
	model := detail.Model.MaterialDescription
	if model == "" {
		model = "Unknown Model"
	}
	return deviceInfo{
		Identifiers:  []string{"kumo2mqtt_" + serial},
		Name:         name,
		Manufacturer: "Mitsubishi Electric",
		Model:        model,
		SWVersion:    detail.Model.SerialProfile,
		SerialNumber: detail.SerialNumber,
	}
}

func unitLetter(u climate.Units) string {
	if u == climate.Fahrenheit {
		return "F"
	}
	return "C"
}

func modeStrings(modes []climate.Mode) []string {
	out := make([]string, len(modes))
	for i, m := range modes {
		out[i] = string(m)
	}
	return out
}

func climateDiscovery(base, uid string, caps climate.Capabilities, u climate.Units, avail []availability, dev deviceInfo) climateConfig {
	cfg := climateConfig{
		BaseTopic:       base,
		UniqueID:        uid,
		Modes:           modeStrings(caps.Modes),
		FanModes:        caps.FanModes,
		Swing:           caps.SwingModes,
		MinTemp:         caps.MinTemp,
		MaxTemp:         caps.MaxTemp,
		TempStep:        caps.Step,
		TemperatureUnit: unitLetter(u),

		ModeStateTopic:    "~/state",
		ModeStateTemplate: "{{ value_json.mode }}",
		ModeCommandTopic:  "~/mode/set",

		ActionTopic:    "~/state",
		ActionTemplate: "{{ value_json.action }}",

		CurrentTemperatureTopic:    "~/state",
		CurrentTemperatureTemplate: "{{ value_json.current_temperature }}",

		TemperatureStateTopic:    "~/state",
		TemperatureStateTemplate: "{{ value_json.target_temperature }}",
		TemperatureCommandTopic:  "~/target_temp/set",

		PowerCommandTopic: "~/power/set",

		Availability:     avail,
		AvailabilityMode: "all",
		Device:           dev,
	}

	if caps.HasModeHeat {
		cfg.TemperatureLowStateTopic = "~/state"
		cfg.TemperatureLowStateTemplate = "{{ value_json.target_temperature_low }}"
		cfg.TemperatureLowCommandTopic = "~/target_temp_low/set"
		cfg.TemperatureHighStateTopic = "~/state"
		cfg.TemperatureHighStateTemplate = "{{ value_json.target_temperature_high }}"
		cfg.TemperatureHighCommandTopic = "~/target_temp_high/set"
	}
	if len(caps.FanModes) > 0 {
		cfg.FanModeStateTopic = "~/state"
		cfg.FanModeStateTemplate = "{{ value_json.fan_mode }}"
		cfg.FanModeCommandTopic = "~/fan_mode/set"
	}
	if len(caps.SwingModes) > 0 {
		cfg.SwingModeStateTopic = "~/state"
		cfg.SwingModeStateTemplate = "{{ value_json.swing_mode }}"
		cfg.SwingModeCommandTopic = "~/swing_mode/set"
	}
	return cfg
}

func humidityDiscovery(base, uid string, avail []availability, dev deviceInfo) sensorConfig {
	return sensorConfig{
		BaseTopic:         base,
		Name:              "Humidity",
		UniqueID:          uid + "_humidity",
		StateTopic:        "~/state",
		ValueTemplate:     "{{ value_json.humidity }}",
		DeviceClass:       "humidity",
		StateClass:        "measurement",
		UnitOfMeasurement: "%",
		Availability:      avail,
		AvailabilityMode:  "all",
		Device:            dev,
	}
}

func lampDiscovery(base, uid, name, field string, avail []availability, dev deviceInfo) binarySensorConfig {
	return binarySensorConfig{
		BaseTopic:        base,
		Name:             name,
		UniqueID:         uid + "_" + field,
		StateTopic:       "~/state",
		ValueTemplate:    "{{ value_json." + field + " }}",
		EntityCategory:   "diagnostic",
		Availability:     avail,
		AvailabilityMode: "all",
		Device:           dev,
	}
}

func switchDiscovery(base, uid, name, field, commandTopic string, avail []availability, dev deviceInfo) switchConfig {
	return switchConfig{
		BaseTopic:        base,
		Name:             name,
		UniqueID:         uid + "_" + field,
		StateTopic:       "~/state",
		ValueTemplate:    "{{ value_json." + field + " }}",
		CommandTopic:     commandTopic,
		Availability:     avail,
		AvailabilityMode: "all",
		Device:           dev,
	}
}

func discoveryTopic(prefix, component, objectID string) string {
	return prefix + "/" + component + "/" + objectID + "/config"
}
