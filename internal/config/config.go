package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion          = 1
	DefaultPath            = "/etc/kumo2mqtt/config.yaml"
	DefaultPollInterval    = 60 * time.Second
	DefaultHTTPAddr        = ":9810"
	DefaultBroker          = "tcp://localhost:1883"
	DefaultClientID        = "kumo2mqtt"
	DefaultTopicPrefix     = "kumo2mqtt"
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultBlobPrefix      = "kumo2mqtt/session"
	UnitsCelsius           = "celsius"
	UnitsFahrenheit        = "fahrenheit"
)

// Config is the root of the YAML config file.
type Config struct {
	SchemaVersion int           `yaml:"schema_version"`
	Kumo          KumoConfig    `yaml:"kumo"`
	MQTT          MQTTConfig    `yaml:"mqtt"`
	HTTP          HTTPConfig    `yaml:"http"`
	Units         string        `yaml:"units"`
	Logging       LoggingConfig `yaml:"logging"`
}

// KumoConfig holds cloud credentials and sync tuning.
type KumoConfig struct {
	Username     string      `yaml:"username"`
	Password     string      `yaml:"password"`
	SiteID       string      `yaml:"site_id"`
	PollInterval Duration    `yaml:"poll_interval"`
	StateFile    string      `yaml:"state_file"`
	Blob         *BlobConfig `yaml:"blob"`
}

// BlobConfig mirrors session state to S3-compatible storage when present.
type BlobConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	AccessKeyFile string `yaml:"access_key_file"`
	SecretKeyFile string `yaml:"secret_key_file"`
	Region        string `yaml:"region"`
}

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	ClientID        string `yaml:"client_id"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Duration accepts either a Go duration string ("60s") or bare seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, perr := time.ParseDuration(raw)
		if perr != nil {
			return fmt.Errorf("invalid duration %q", raw)
		}
		*d = Duration(parsed)
		return nil
	}
	var seconds int
	if err := value.Decode(&seconds); err == nil {
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value on line %d", value.Line)
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load parses the YAML config file, applies defaults, and validates.
// Unknown keys are rejected so typos fail loudly at startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err = Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = SchemaVersion
	}
	if cfg.Kumo.PollInterval == 0 {
		cfg.Kumo.PollInterval = Duration(DefaultPollInterval)
	}
	if cfg.Kumo.Blob != nil && cfg.Kumo.Blob.Prefix == "" {
		cfg.Kumo.Blob.Prefix = DefaultBlobPrefix
	}
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = DefaultBroker
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.MQTT.DiscoveryPrefix == "" {
		cfg.MQTT.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = DefaultHTTPAddr
	}
	if cfg.Units == "" {
		cfg.Units = UnitsCelsius
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}

	if cfg.Kumo.Username == "" {
		return fmt.Errorf("kumo.username is required")
	}
	if cfg.Kumo.Password == "" {
		return fmt.Errorf("kumo.password is required")
	}
	if cfg.Kumo.PollInterval.Std() <= 0 {
		return fmt.Errorf("kumo.poll_interval must be positive")
	}

	if blob := cfg.Kumo.Blob; blob != nil {
		if blob.Endpoint == "" {
			return fmt.Errorf("kumo.blob.endpoint is required")
		}
		if blob.Bucket == "" {
			return fmt.Errorf("kumo.blob.bucket is required")
		}
		if blob.AccessKeyFile == "" {
			return fmt.Errorf("kumo.blob.access_key_file is required")
		}
		if blob.SecretKeyFile == "" {
			return fmt.Errorf("kumo.blob.secret_key_file is required")
		}
	}

	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if cfg.HTTP.Listen == "" {
		return fmt.Errorf("http.listen is required")
	}

	if cfg.Units != UnitsCelsius && cfg.Units != UnitsFahrenheit {
		return fmt.Errorf("units must be %q or %q", UnitsCelsius, UnitsFahrenheit)
	}

	return nil
}
