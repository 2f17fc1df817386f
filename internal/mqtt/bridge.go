package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/coordinator"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

const commandTimeout = 30 * time.Second

// BridgeConfig carries the topic layout and display units.
type BridgeConfig struct {
	TopicPrefix     string
	DiscoveryPrefix string
	Units           climate.Units
}

// Bridge maps coordinator snapshots onto MQTT topics. Each zone with an
// adapter becomes one Home Assistant device: a climate entity plus the
// sensors and switches its records support. Entities are created the
// first time a zone's detail record appears and live for the process.
type Bridge struct {
	pub   publisher
	coord *coordinator.Coordinator
	cfg   BridgeConfig
	log   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entities map[string]*entity
}

type entity struct {
	dev  *coordinator.Device
	uid  string
	base string
	name string
	caps climate.Capabilities

	hasHumidity bool
	hasDefrost  bool
	hasStandby  bool
	hasSwing    bool
	hasPowerful bool

	unsubs []func()

	lastState []byte
	lastAvail string
}

// stateDoc is the retained per-device state document. The climate fields
// are always present; null means unknown. Gated fields are omitted when
// the device lacks the entity.
type stateDoc struct {
	Mode                  string   `json:"mode"`
	Action                string   `json:"action"`
	CurrentTemperature    *float64 `json:"current_temperature"`
	TargetTemperature     *float64 `json:"target_temperature"`
	TargetTemperatureLow  *float64 `json:"target_temperature_low"`
	TargetTemperatureHigh *float64 `json:"target_temperature_high"`
	FanMode               *string  `json:"fan_mode"`
	SwingMode             *string  `json:"swing_mode"`
	Humidity              *float64 `json:"humidity,omitempty"`
	Defrost               *string  `json:"defrost,omitempty"`
	Standby               *string  `json:"standby,omitempty"`
	Swing                 *string  `json:"swing,omitempty"`
	Powerful              *string  `json:"powerful,omitempty"`
}

func NewBridge(conn *Conn, coord *coordinator.Coordinator, cfg BridgeConfig, log *zap.Logger) *Bridge {
	return newBridge(conn, coord, cfg, log)
}

func newBridge(pub publisher, coord *coordinator.Coordinator, cfg BridgeConfig, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		pub:      pub,
		coord:    coord,
		cfg:      cfg,
		log:      log,
		entities: make(map[string]*entity),
	}
}

// Start announces the bridge and begins mirroring coordinator updates.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)
	if err := b.pub.publish(b.availabilityTopic(), []byte(payloadOnline), true); err != nil {
		return err
	}
	b.coord.OnUpdate(b.sync)
	// Pick up a snapshot installed before the listener registration.
	b.sync()
	return nil
}

// Announce re-publishes bridge availability and forces a full state
// publish. Wired to the broker reconnect hook, when the will may have
// fired with a stale offline.
func (b *Bridge) Announce() {
	if err := b.pub.publish(b.availabilityTopic(), []byte(payloadOnline), true); err != nil {
		b.log.Warn("availability publish failed", zap.Error(err))
	}
	b.mu.Lock()
	for _, e := range b.entities {
		e.lastState = nil
		e.lastAvail = ""
	}
	b.mu.Unlock()
	b.sync()
}

// Close marks the bridge offline and drops command subscriptions.
func (b *Bridge) Close() {
	if b.cancel != nil {
		b.cancel()
	}
	b.mu.Lock()
	for _, e := range b.entities {
		for _, unsub := range e.unsubs {
			unsub()
		}
		e.unsubs = nil
	}
	b.mu.Unlock()
	_ = b.pub.publish(b.availabilityTopic(), []byte(payloadOffline), true)
}

// AvailabilityTopic is where the bridge publishes its own online state.
// The broker last will targets the same topic.
func AvailabilityTopic(topicPrefix string) string {
	return topicPrefix + "/bridge/availability"
}

func (b *Bridge) availabilityTopic() string {
	return AvailabilityTopic(b.cfg.TopicPrefix)
}

func uniqueID(serial, zoneID string) string {
	return serial + "_" + zoneID
}

func (b *Bridge) sync() {
	snap := b.coord.Snapshot()
	syncOK := b.coord.LastSyncSuccess()

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, zone := range snap.Zones {
		if zone.Adapter == nil || zone.Adapter.DeviceSerial == "" {
			continue
		}
		serial := zone.Adapter.DeviceSerial
		uid := uniqueID(serial, zone.ID)

		e := b.entities[uid]
		if e == nil {
			detail, found := snap.Devices[serial]
			if !found {
				continue
			}
			var err error
			e, err = b.setupEntity(zone, detail, snap.Profiles[serial])
			if err != nil {
				b.log.Warn("entity setup failed", zap.String("zone", zone.Name), zap.Error(err))
				continue
			}
			b.entities[uid] = e
			b.log.Info("zone registered",
				zap.String("zone", zone.Name),
				zap.String("serial", serial))
		}
		b.publishEntity(e, syncOK)
	}
}

// setupEntity gates the entity surface on what the records carried at
// first sight and publishes the retained discovery configs.
func (b *Bridge) setupEntity(zone kumo.Zone, detail kumo.DeviceDetail, profiles []kumo.DeviceProfile) (*entity, error) {
	serial := zone.Adapter.DeviceSerial
	e := &entity{
		dev:  b.coord.Device(zone.ID, serial),
		uid:  uniqueID(serial, zone.ID),
		name: zone.Name,
		caps: climate.DeriveCapabilities(profiles, detail, b.cfg.Units),

		hasHumidity: zone.Adapter.Humidity != nil,
		hasDefrost:  detail.DisplayConfig.Defrost != nil,
		hasStandby:  detail.DisplayConfig.Standby != nil,
		hasSwing:    detail.Model.IsSwing != nil,
		hasPowerful: detail.Model.IsPowerfulMode != nil,
	}
	e.base = b.cfg.TopicPrefix + "/" + e.uid

	if err := b.publishDiscovery(e, zone, detail); err != nil {
		return nil, err
	}
	if err := b.subscribeCommands(e); err != nil {
		for _, unsub := range e.unsubs {
			unsub()
		}
		return nil, err
	}
	return e, nil
}

func (b *Bridge) publishDiscovery(e *entity, zone kumo.Zone, detail kumo.DeviceDetail) error {
	avail := []availability{
		{Topic: b.availabilityTopic()},
		{Topic: e.base + "/availability"},
	}
	dev := deviceBlock(zone.Name, detail, e.dev.Serial())

	type entry struct {
		component string
		objectID  string
		payload   any
	}
	configs := []entry{
		{"climate", e.uid, climateDiscovery(e.base, e.uid, e.caps, b.cfg.Units, avail, dev)},
	}
	if e.hasHumidity {
		configs = append(configs, entry{"sensor", e.uid + "_humidity", humidityDiscovery(e.base, e.uid, avail, dev)})
	}
	if e.hasDefrost {
		configs = append(configs, entry{"binary_sensor", e.uid + "_defrost", lampDiscovery(e.base, e.uid, "Defrost", "defrost", avail, dev)})
	}
	if e.hasStandby {
		configs = append(configs, entry{"binary_sensor", e.uid + "_standby", lampDiscovery(e.base, e.uid, "Standby", "standby", avail, dev)})
	}
	if e.hasSwing {
		configs = append(configs, entry{"switch", e.uid + "_swing", switchDiscovery(e.base, e.uid, "Swing", "swing", "~/swing/set", avail, dev)})
	}
	if e.hasPowerful {
		configs = append(configs, entry{"switch", e.uid + "_powerful", switchDiscovery(e.base, e.uid, "Powerful Mode", "powerful", "~/powerful/set", avail, dev)})
	}

	for _, cfg := range configs {
		data, err := json.Marshal(cfg.payload)
		if err != nil {
			return err
		}
		topic := discoveryTopic(b.cfg.DiscoveryPrefix, cfg.component, cfg.objectID)
		if err := b.pub.publish(topic, data, true); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) subscribeCommands(e *entity) error {
	type sub struct {
		suffix  string
		kind    string
		handler func(*entity, string)
	}
	subs := []sub{
		{"mode/set", "mode", b.onMode},
		{"target_temp/set", "temperature", b.onTargetTemp},
		{"power/set", "power", b.onPower},
	}
	if e.caps.HasModeHeat {
		subs = append(subs,
			sub{"target_temp_low/set", "temperature_low", b.onTargetTempLow},
			sub{"target_temp_high/set", "temperature_high", b.onTargetTempHigh})
	}
	if len(e.caps.FanModes) > 0 {
		subs = append(subs, sub{"fan_mode/set", "fan_mode", b.onFanMode})
	}
	if len(e.caps.SwingModes) > 0 {
		subs = append(subs, sub{"swing_mode/set", "swing_mode", b.onSwingMode})
	}
	if e.hasSwing {
		subs = append(subs, sub{"swing/set", "swing_switch", b.onSwingSwitch})
	}
	if e.hasPowerful {
		subs = append(subs, sub{"powerful/set", "powerful_switch", b.onPowerfulSwitch})
	}

	for _, s := range subs {
		handler := s.handler
		kind := s.kind
		unsub, err := b.pub.subscribe(e.base+"/"+s.suffix, func(data []byte) {
			commandsReceived.WithLabelValues(kind).Inc()
			// Handlers block for the settle delay; keep the
			// dispatch goroutine free.
			go handler(e, strings.TrimSpace(string(data)))
		})
		if err != nil {
			return err
		}
		e.unsubs = append(e.unsubs, unsub)
	}
	return nil
}

func (b *Bridge) publishEntity(e *entity, syncOK bool) {
	avail := payloadOffline
	if syncOK && e.dev.Available() {
		avail = payloadOnline
	}
	if avail != e.lastAvail {
		if err := b.pub.publish(e.base+"/availability", []byte(avail), true); err != nil {
			b.log.Warn("availability publish failed", zap.String("zone", e.name), zap.Error(err))
		} else {
			e.lastAvail = avail
		}
	}

	doc, err := json.Marshal(b.buildState(e))
	if err != nil {
		return
	}
	if bytes.Equal(doc, e.lastState) {
		return
	}
	if err := b.pub.publish(e.base+"/state", doc, true); err != nil {
		b.log.Warn("state publish failed", zap.String("zone", e.name), zap.Error(err))
		return
	}
	e.lastState = doc
}

func (b *Bridge) buildState(e *entity) stateDoc {
	r := b.reading(e)
	u := b.cfg.Units
	doc := stateDoc{
		Mode:                  string(r.Mode()),
		Action:                string(r.Action()),
		CurrentTemperature:    r.CurrentTemperature(u),
		TargetTemperature:     r.TargetTemperature(u),
		TargetTemperatureLow:  r.TargetTemperatureLow(u),
		TargetTemperatureHigh: r.TargetTemperatureHigh(u),
		FanMode:               r.FanMode(),
		SwingMode:             r.SwingMode(),
	}

	detail := e.dev.DeviceData()
	if e.hasHumidity {
		doc.Humidity = r.Humidity()
	}
	if e.hasDefrost {
		doc.Defrost = onOff(detail.DisplayConfig.Defrost)
	}
	if e.hasStandby {
		doc.Standby = onOff(detail.DisplayConfig.Standby)
	}
	if e.hasSwing {
		doc.Swing = onOff(detail.Model.IsSwing)
	}
	if e.hasPowerful {
		doc.Powerful = onOff(detail.Model.IsPowerfulMode)
	}
	return doc
}

func (b *Bridge) reading(e *entity) climate.Reading {
	zone := e.dev.ZoneData()
	return climate.Reading{
		Adapter:  zone.Adapter,
		Device:   e.dev.DeviceData(),
		Profiles: e.dev.ProfileData(),
	}
}

func onOff(v *bool) *string {
	if v == nil {
		return nil
	}
	s := "OFF"
	if *v {
		s = "ON"
	}
	return &s
}

func (b *Bridge) onMode(e *entity, payload string) {
	b.send(e, "mode", climate.SetMode(b.reading(e), climate.Mode(payload)))
}

func (b *Bridge) onTargetTemp(e *entity, payload string) {
	v, ok := b.parseTemp(e, payload)
	if !ok {
		return
	}
	b.send(e, "temperature", climate.SetTemperature(b.reading(e), b.cfg.Units, &v, nil, nil))
}

func (b *Bridge) onTargetTempLow(e *entity, payload string) {
	v, ok := b.parseTemp(e, payload)
	if !ok {
		return
	}
	b.send(e, "temperature_low", climate.SetTemperature(b.reading(e), b.cfg.Units, nil, &v, nil))
}

func (b *Bridge) onTargetTempHigh(e *entity, payload string) {
	v, ok := b.parseTemp(e, payload)
	if !ok {
		return
	}
	b.send(e, "temperature_high", climate.SetTemperature(b.reading(e), b.cfg.Units, nil, nil, &v))
}

func (b *Bridge) onPower(e *entity, payload string) {
	switch strings.ToUpper(payload) {
	case "ON":
		b.send(e, "power", climate.TurnOn(b.reading(e)))
	case "OFF":
		b.send(e, "power", climate.TurnOff())
	default:
		b.log.Warn("bad power payload", zap.String("zone", e.name), zap.String("payload", payload))
	}
}

func (b *Bridge) onFanMode(e *entity, payload string) {
	b.send(e, "fan_mode", climate.SetFanMode(payload))
}

func (b *Bridge) onSwingMode(e *entity, payload string) {
	b.send(e, "swing_mode", climate.SetSwingMode(payload))
}

func (b *Bridge) onSwingSwitch(e *entity, payload string) {
	b.send(e, "swing_switch", climate.Swing(strings.EqualFold(payload, "ON")))
}

func (b *Bridge) onPowerfulSwitch(e *entity, payload string) {
	b.send(e, "powerful_switch", climate.Powerful(strings.EqualFold(payload, "ON")))
}

func (b *Bridge) parseTemp(e *entity, payload string) (float64, bool) {
	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		b.log.Warn("bad temperature payload", zap.String("zone", e.name), zap.String("payload", payload))
		return 0, false
	}
	return v, true
}

func (b *Bridge) send(e *entity, kind string, cmd kumo.Command) {
	if len(cmd) == 0 {
		b.log.Debug("command produced no update", zap.String("zone", e.name), zap.String("kind", kind))
		return
	}
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if err := e.dev.SendCommand(ctx, cmd); err != nil {
		b.log.Warn("command failed",
			zap.String("zone", e.name),
			zap.String("kind", kind),
			zap.Error(err))
	}
}
