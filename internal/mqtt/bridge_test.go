package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joshp123/kumo2mqtt/internal/climate"
	"github.com/joshp123/kumo2mqtt/internal/coordinator"
	"github.com/joshp123/kumo2mqtt/internal/kumo"
)

func ptr[T any](v T) *T { return &v }

type pubMsg struct {
	topic   string
	payload string
	retain  bool
}

type fakePub struct {
	mu       sync.Mutex
	messages []pubMsg
	subs     map[string]func([]byte)
}

func (f *fakePub) publish(topic string, payload []byte, retain bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, pubMsg{topic, string(payload), retain})
	return nil
}

func (f *fakePub) subscribe(topic string, cb func([]byte)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subs == nil {
		f.subs = make(map[string]func([]byte))
	}
	f.subs[topic] = cb
	return func() {}, nil
}

func (f *fakePub) deliver(t *testing.T, topic, payload string) {
	t.Helper()
	f.mu.Lock()
	cb := f.subs[topic]
	f.mu.Unlock()
	if cb == nil {
		t.Fatalf("no subscription for %s", topic)
	}
	cb([]byte(payload))
}

func (f *fakePub) find(topic string) (pubMsg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].topic == topic {
			return f.messages[i], true
		}
	}
	return pubMsg{}, false
}

func (f *fakePub) count(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.messages {
		if m.topic == topic {
			n++
		}
	}
	return n
}

type fakeCloud struct {
	mu       sync.Mutex
	zones    []kumo.Zone
	details  map[string]kumo.DeviceDetail
	profiles map[string][]kumo.DeviceProfile
	zonesErr error
	commands []kumo.Command
}

func (f *fakeCloud) Zones(ctx context.Context, siteID string) ([]kumo.Zone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.zonesErr != nil {
		return nil, f.zonesErr
	}
	return f.zones, nil
}

func (f *fakeCloud) DeviceDetails(ctx context.Context, serial string) (kumo.DeviceDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.details[serial], nil
}

func (f *fakeCloud) DeviceProfiles(ctx context.Context, serial string) ([]kumo.DeviceProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[serial], nil
}

func (f *fakeCloud) RefreshToken(ctx context.Context) error { return nil }

func (f *fakeCloud) SendCommand(ctx context.Context, serial string, cmd kumo.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	return nil
}

func (f *fakeCloud) lastCommand() (kumo.Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		return nil, false
	}
	return f.commands[len(f.commands)-1], true
}

func fullFeaturedCloud() *fakeCloud {
	return &fakeCloud{
		zones: []kumo.Zone{
			{ID: "z1", Name: "Living Room", Adapter: &kumo.AdapterStatus{
				DeviceSerial: "SER1",
				Connected:    ptr(true),
				Humidity:     ptr(45.0),
			}},
		},
		details: map[string]kumo.DeviceDetail{
			"SER1": {
				SerialNumber:  "SER1",
				ModelNumber:   "MSZ-GL12NA",
				Connected:     ptr(true),
				RoomTemp:      ptr(21.5),
				Humidity:      ptr(47.0),
				OperationMode: ptr("cool"),
				Power:         ptr(1),
				FanSpeed:      ptr("auto"),
				SpCool:        ptr(24.0),
				SpHeat:        ptr(20.0),
				Model: kumo.DeviceModel{
					MaterialDescription: "MSZ-GL12NA-U1",
					SerialProfile:       "01.02.03",
					IsSwing:             ptr(false),
					IsPowerfulMode:      ptr(false),
				},
				DisplayConfig: kumo.DisplayConfig{
					Defrost: ptr(false),
					Standby: ptr(true),
				},
			},
		},
		profiles: map[string][]kumo.DeviceProfile{
			"SER1": {{
				NumberOfFanSpeeds: 3,
				HasFanSpeedAuto:   true,
				HasVaneDir:        true,
				HasModeHeat:       true,
				HasModeDry:        true,
			}},
		},
	}
}

func startBridge(t *testing.T, f *fakeCloud) (*Bridge, *fakePub, *coordinator.Coordinator) {
	t.Helper()
	coord := coordinator.New(f, coordinator.Options{
		SiteID:      "site-1",
		SettleDelay: time.Millisecond,
	})
	pub := &fakePub{}
	b := newBridge(pub, coord, BridgeConfig{
		TopicPrefix:     "kumo2mqtt",
		DiscoveryPrefix: "homeassistant",
		Units:           climate.Celsius,
	}, nil)

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(b.Close)
	return b, pub, coord
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgePublishesDiscovery(t *testing.T) {
	_, pub, _ := startBridge(t, fullFeaturedCloud())

	msg, ok := pub.find("homeassistant/climate/SER1_z1/config")
	if !ok {
		t.Fatal("climate discovery not published")
	}
	if !msg.retain {
		t.Fatal("discovery must be retained")
	}

	var cfg map[string]any
	if err := json.Unmarshal([]byte(msg.payload), &cfg); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if cfg["~"] != "kumo2mqtt/SER1_z1" {
		t.Fatalf("base topic: %v", cfg["~"])
	}
	if cfg["unique_id"] != "SER1_z1" {
		t.Fatalf("unique_id: %v", cfg["unique_id"])
	}
	if _, hasName := cfg["name"]; !hasName || cfg["name"] != nil {
		t.Fatalf("climate name should be null, got %v", cfg["name"])
	}
	modes := cfg["modes"].([]any)
	want := []any{"off", "heat", "cool", "dry", "heat_cool"}
	if len(modes) != len(want) {
		t.Fatalf("modes: %v", modes)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Fatalf("modes[%d]: got %v, want %v", i, modes[i], want[i])
		}
	}
	if cfg["temperature_unit"] != "C" {
		t.Fatalf("temperature_unit: %v", cfg["temperature_unit"])
	}
	if cfg["temperature_low_command_topic"] != "~/target_temp_low/set" {
		t.Fatal("range command topics missing for a heat-capable unit")
	}

	device := cfg["device"].(map[string]any)
	if device["manufacturer"] != "Mitsubishi Electric" {
		t.Fatalf("manufacturer: %v", device["manufacturer"])
	}
	if device["model"] != "MSZ-GL12NA-U1" {
		t.Fatalf("model: %v", device["model"])
	}

	for _, topic := range []string{
		"homeassistant/sensor/SER1_z1_humidity/config",
		"homeassistant/binary_sensor/SER1_z1_defrost/config",
		"homeassistant/binary_sensor/SER1_z1_standby/config",
		"homeassistant/switch/SER1_z1_swing/config",
		"homeassistant/switch/SER1_z1_powerful/config",
	} {
		if _, ok := pub.find(topic); !ok {
			t.Fatalf("missing discovery config %s", topic)
		}
	}
}

func TestBridgePublishesState(t *testing.T) {
	_, pub, _ := startBridge(t, fullFeaturedCloud())

	if msg, ok := pub.find("kumo2mqtt/bridge/availability"); !ok || msg.payload != "online" {
		t.Fatal("bridge availability not online")
	}
	if msg, ok := pub.find("kumo2mqtt/SER1_z1/availability"); !ok || msg.payload != "online" {
		t.Fatal("device availability not online")
	}

	msg, ok := pub.find("kumo2mqtt/SER1_z1/state")
	if !ok {
		t.Fatal("state not published")
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(msg.payload), &doc); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if doc["mode"] != "cool" || doc["action"] != "cooling" {
		t.Fatalf("mode/action: %v/%v", doc["mode"], doc["action"])
	}
	if doc["current_temperature"] != 21.5 {
		t.Fatalf("current_temperature: %v", doc["current_temperature"])
	}
	if doc["target_temperature"] != 24.0 {
		t.Fatalf("target_temperature: %v", doc["target_temperature"])
	}
	if doc["target_temperature_low"] != nil {
		t.Fatalf("low setpoint should be null outside heat_cool: %v", doc["target_temperature_low"])
	}
	// Detail humidity wins over the adapter value.
	if doc["humidity"] != 47.0 {
		t.Fatalf("humidity: %v", doc["humidity"])
	}
	if doc["standby"] != "ON" || doc["defrost"] != "OFF" {
		t.Fatalf("lamp fields: %v/%v", doc["standby"], doc["defrost"])
	}
}

func TestBridgeGatesEntities(t *testing.T) {
	f := &fakeCloud{
		zones: []kumo.Zone{
			{ID: "z1", Name: "Closet", Adapter: &kumo.AdapterStatus{
				DeviceSerial: "SER2",
				Connected:    ptr(true),
			}},
		},
		details:  map[string]kumo.DeviceDetail{"SER2": {SerialNumber: "SER2", Connected: ptr(true)}},
		profiles: map[string][]kumo.DeviceProfile{},
	}
	_, pub, _ := startBridge(t, f)

	if _, ok := pub.find("homeassistant/climate/SER2_z1/config"); !ok {
		t.Fatal("climate discovery missing")
	}
	for _, topic := range []string{
		"homeassistant/sensor/SER2_z1_humidity/config",
		"homeassistant/binary_sensor/SER2_z1_defrost/config",
		"homeassistant/binary_sensor/SER2_z1_standby/config",
		"homeassistant/switch/SER2_z1_swing/config",
		"homeassistant/switch/SER2_z1_powerful/config",
	} {
		if _, ok := pub.find(topic); ok {
			t.Fatalf("unexpected discovery config %s", topic)
		}
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	for topic := range pub.subs {
		switch {
		case strings.HasSuffix(topic, "/mode/set"),
			strings.HasSuffix(topic, "/target_temp/set"),
			strings.HasSuffix(topic, "/power/set"):
		default:
			t.Fatalf("unexpected command subscription %s", topic)
		}
	}
}

func TestBridgeCommandFlow(t *testing.T) {
	f := fullFeaturedCloud()
	_, pub, _ := startBridge(t, f)

	pub.deliver(t, "kumo2mqtt/SER1_z1/mode/set", "heat_cool")
	waitFor(t, "mode command", func() bool {
		cmd, ok := f.lastCommand()
		return ok && cmd["operationMode"] == "auto"
	})
	cmd, _ := f.lastCommand()
	if cmd["spCool"] != 24.0 || cmd["spHeat"] != 20.0 {
		t.Fatalf("mode change should carry both setpoints: %v", cmd)
	}

	pub.deliver(t, "kumo2mqtt/SER1_z1/target_temp/set", "22.5")
	waitFor(t, "temperature command", func() bool {
		cmd, ok := f.lastCommand()
		return ok && cmd["spCool"] == 22.5
	})
	cmd, _ = f.lastCommand()
	if cmd["spHeat"] != 20.0 {
		t.Fatalf("single-mode write should re-send the other setpoint: %v", cmd)
	}

	pub.deliver(t, "kumo2mqtt/SER1_z1/power/set", "OFF")
	waitFor(t, "power off command", func() bool {
		cmd, ok := f.lastCommand()
		return ok && cmd["operationMode"] == "off" && len(cmd) == 1
	})

	pub.deliver(t, "kumo2mqtt/SER1_z1/swing/set", "ON")
	waitFor(t, "swing switch command", func() bool {
		cmd, ok := f.lastCommand()
		return ok && cmd["airDirection"] == "swing"
	})

	pub.deliver(t, "kumo2mqtt/SER1_z1/powerful/set", "ON")
	waitFor(t, "powerful switch command", func() bool {
		cmd, ok := f.lastCommand()
		return ok && cmd["fanSpeed"] == "superHigh"
	})
}

func TestBridgeAvailabilityFollowsSync(t *testing.T) {
	f := fullFeaturedCloud()
	_, pub, coord := startBridge(t, f)

	f.mu.Lock()
	f.zonesErr = kumo.ConnectionError{Op: "zones", Err: errors.New("timeout")}
	f.mu.Unlock()

	if err := coord.Refresh(context.Background()); err == nil {
		t.Fatal("expected Refresh to fail")
	}
	if msg, ok := pub.find("kumo2mqtt/SER1_z1/availability"); !ok || msg.payload != "offline" {
		t.Fatal("device should go offline after a failed sync")
	}

	f.mu.Lock()
	f.zonesErr = nil
	f.mu.Unlock()

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("recovery Refresh: %v", err)
	}
	if msg, ok := pub.find("kumo2mqtt/SER1_z1/availability"); !ok || msg.payload != "online" {
		t.Fatal("device should come back online after recovery")
	}
}

func TestBridgeDeduplicatesState(t *testing.T) {
	f := fullFeaturedCloud()
	_, pub, coord := startBridge(t, f)

	before := pub.count("kumo2mqtt/SER1_z1/state")
	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := pub.count("kumo2mqtt/SER1_z1/state"); got != before {
		t.Fatalf("identical state republished: %d -> %d", before, got)
	}

	f.mu.Lock()
	detail := f.details["SER1"]
	detail.RoomTemp = ptr(22.0)
	f.details["SER1"] = detail
	f.mu.Unlock()

	if err := coord.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := pub.count("kumo2mqtt/SER1_z1/state"); got != before+1 {
		t.Fatalf("changed state not republished: %d -> %d", before, got)
	}
}

func TestBridgeAnnounceRepublishes(t *testing.T) {
	b, pub, _ := startBridge(t, fullFeaturedCloud())

	stateBefore := pub.count("kumo2mqtt/SER1_z1/state")
	availBefore := pub.count("kumo2mqtt/bridge/availability")

	b.Announce()

	if got := pub.count("kumo2mqtt/SER1_z1/state"); got != stateBefore+1 {
		t.Fatalf("state not republished after announce: %d -> %d", stateBefore, got)
	}
	if got := pub.count("kumo2mqtt/bridge/availability"); got != availBefore+1 {
		t.Fatalf("availability not republished after announce: %d -> %d", availBefore, got)
	}
}
