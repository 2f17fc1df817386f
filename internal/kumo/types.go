package kumo

// Site is one account location.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AdapterStatus is the last-known device state embedded in a zone record.
// Fields are pointers so absent keys survive the round trip; readers treat
// them as fallbacks behind the device detail record.
type AdapterStatus struct {
	DeviceSerial  string   `json:"deviceSerial"`
	Connected     *bool    `json:"connected,omitempty"`
	RoomTemp      *float64 `json:"roomTemp,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty"`
	OperationMode *string  `json:"operationMode,omitempty"`
	Power         *int     `json:"power,omitempty"`
	FanSpeed      *string  `json:"fanSpeed,omitempty"`
	AirDirection  *string  `json:"airDirection,omitempty"`
	SpCool        *float64 `json:"spCool,omitempty"`
	SpHeat        *float64 `json:"spHeat,omitempty"`
}

// Zone is one controllable location within a site.
type Zone struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Adapter *AdapterStatus `json:"adapter,omitempty"`
}

// DeviceModel describes the physical unit behind an adapter.
type DeviceModel struct {
	MaterialDescription string `json:"materialDescription,omitempty"`
	SerialProfile       string `json:"serialProfile,omitempty"`
	IsSwing             *bool  `json:"isSwing,omitempty"`
	IsPowerfulMode      *bool  `json:"isPowerfulMode,omitempty"`
}

// DisplayConfig carries the unit's status lamp flags. A key only appears
// when the unit reports that lamp at all.
type DisplayConfig struct {
	Defrost *bool `json:"defrost,omitempty"`
	Standby *bool `json:"standby,omitempty"`
}

// DeviceDetail is the authoritative per-device status record. It takes
// precedence over the zone adapter snapshot field by field.
type DeviceDetail struct {
	SerialNumber  string        `json:"serialNumber,omitempty"`
	ModelNumber   string        `json:"modelNumber,omitempty"`
	Connected     *bool         `json:"connected,omitempty"`
	RoomTemp      *float64      `json:"roomTemp,omitempty"`
	Humidity      *float64      `json:"humidity,omitempty"`
	OperationMode *string       `json:"operationMode,omitempty"`
	Power         *int          `json:"power,omitempty"`
	FanSpeed      *string       `json:"fanSpeed,omitempty"`
	AirDirection  *string       `json:"airDirection,omitempty"`
	SpCool        *float64      `json:"spCool,omitempty"`
	SpHeat        *float64      `json:"spHeat,omitempty"`
	Model         DeviceModel   `json:"model,omitempty"`
	DisplayConfig DisplayConfig `json:"displayConfig,omitempty"`
}

// SetPoints bounds one end of a device's temperature range, per mode.
type SetPoints struct {
	Heat *float64 `json:"heat,omitempty"`
	Cool *float64 `json:"cool,omitempty"`
}

// DeviceProfile is the static capability descriptor for a device.
type DeviceProfile struct {
	NumberOfFanSpeeds int       `json:"numberOfFanSpeeds"`
	HasFanSpeedAuto   bool      `json:"hasFanSpeedAuto"`
	HasVaneDir        bool      `json:"hasVaneDir"`
	HasVaneSwing      bool      `json:"hasVaneSwing"`
	HasModeHeat       bool      `json:"hasModeHeat"`
	HasModeDry        bool      `json:"hasModeDry"`
	HasModeVent       bool      `json:"hasModeVent"`
	MinimumSetPoints  SetPoints `json:"minimumSetPoints"`
	MaximumSetPoints  SetPoints `json:"maximumSetPoints"`
}

// Command is a partial settings write. Keys use the service's wire names
// (operationMode, spCool, spHeat, fanSpeed, airDirection); only the keys
// present are applied by the unit.
type Command map[string]any
