// Package config loads the poller's YAML configuration.
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/common/model"

	"github.com/nanoncore/olt-telemetry/pkg/logger"
	"github.com/nanoncore/olt-telemetry/pkg/resilience"
	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

type Config struct {
	Listen       string            `yaml:"listen"`
	MetricsPath  string            `yaml:"metrics_path"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	Concurrency  int               `yaml:"concurrency"`
	WalkWorkers  int               `yaml:"walk_workers"`
	Log          logger.Config     `yaml:"log"`
	Defaults     Defaults          `yaml:"defaults"`
	Breaker      resilience.Config `yaml:"breaker"`
	Devices      []Device          `yaml:"devices"`
}

func DefaultConfig() Config {
	return Config{
		Listen:       ":9810",
		MetricsPath:  "/metrics",
		PollInterval: time.Minute,
		Concurrency:  8,
		WalkWorkers:  snmp.DefaultSnapshotConcurrency,
		Log:          logger.DefaultConfig(),
		Defaults:     DefaultDefaults(),
		Breaker:      resilience.DefaultConfig(),
	}
}

func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*c = DefaultConfig()

	type plain Config
	return unmarshal((*plain)(c))
}

// Defaults apply to every device that leaves the field unset.
type Defaults struct {
	Port           uint16        `yaml:"port"`
	Community      string        `yaml:"community"`
	Version        string        `yaml:"version"`
	Timeout        time.Duration `yaml:"timeout"`
	Retries        int           `yaml:"retries"`
	MaxRepetitions uint32        `yaml:"max_repetitions"`
	LegacyUptime   bool          `yaml:"legacy_uptime"`
}

func DefaultDefaults() Defaults {
	return Defaults{
		Port:      snmp.DefaultPort,
		Community: "public",
		Version:   string(snmp.SNMPv2c),
		Timeout:   snmp.DefaultTimeout,
		Retries:   snmp.DefaultRetries,
	}
}

func (d *Defaults) UnmarshalYAML(unmarshal func(interface{}) error) error {
	*d = DefaultDefaults()

	type plain Defaults
	return unmarshal((*plain)(d))
}

type Device struct {
	Name           string            `yaml:"name"`
	Host           string            `yaml:"host"`
	Port           uint16            `yaml:"port"`
	Community      string            `yaml:"community"`
	Version        string            `yaml:"version"`
	Timeout        time.Duration     `yaml:"timeout"`
	Retries        *int              `yaml:"retries"`
	MaxRepetitions *uint32           `yaml:"max_repetitions"`
	LegacyUptime   *bool             `yaml:"legacy_uptime"`
	PONs           []string          `yaml:"pons"`
	Labels         map[string]string `yaml:"labels"`
}

// DeviceConfig merges the device entry with the global defaults.
func (c *Config) DeviceConfig(d Device) snmp.DeviceConfig {
	dc := snmp.DeviceConfig{
		Name:           d.Name,
		Host:           d.Host,
		Port:           d.Port,
		Community:      d.Community,
		Version:        snmp.SNMPVersion(d.Version),
		Timeout:        d.Timeout,
		Retries:        c.Defaults.Retries,
		MaxRepetitions: c.Defaults.MaxRepetitions,
		LegacyUptime:   c.Defaults.LegacyUptime,
		PONs:           d.PONs,
		Labels:         d.Labels,
	}
	if dc.Port == 0 {
		dc.Port = c.Defaults.Port
	}
	if dc.Community == "" {
		dc.Community = c.Defaults.Community
	}
	if dc.Version == "" {
		dc.Version = snmp.SNMPVersion(c.Defaults.Version)
	}
	if dc.Timeout == 0 {
		dc.Timeout = c.Defaults.Timeout
	}
	if d.Retries != nil {
		dc.Retries = *d.Retries
	}
	if d.MaxRepetitions != nil {
		dc.MaxRepetitions = *d.MaxRepetitions
	}
	if d.LegacyUptime != nil {
		dc.LegacyUptime = *d.LegacyUptime
	}
	return dc
}

// DeviceConfigs returns the merged configuration of every device.
func (c *Config) DeviceConfigs() []snmp.DeviceConfig {
	out := make([]snmp.DeviceConfig, 0, len(c.Devices))
	for _, d := range c.Devices {
		out = append(out, c.DeviceConfig(d))
	}
	return out
}

// LabelKeys returns the sorted union of device label names. Each becomes a
// label of olt_device_info.
func (c *Config) LabelKeys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, d := range c.Devices {
		for k := range d.Labels {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

func validateLabel(i int, name string) error {
	field := fmt.Sprintf("devices[%d].labels", i)
	switch {
	case !model.LabelName(name).IsValid():
		return snmp.NewConfigurationError(field, name, "invalid label name")
	case strings.HasPrefix(name, "__"):
		return snmp.NewConfigurationError(field, name, "label names starting with __ are reserved")
	case name == "device", name == "host":
		return snmp.NewConfigurationError(field, name, "label name is already used by olt_device_info")
	}
	return nil
}

// Validate checks the configuration. Every problem is a snmp.ConfigurationError.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return snmp.NewConfigurationError("listen", "", "required")
	}
	if c.MetricsPath == "" || c.MetricsPath[0] != '/' {
		return snmp.NewConfigurationError("metrics_path", c.MetricsPath, "must start with /")
	}
	if c.PollInterval <= 0 {
		return snmp.NewConfigurationError("poll_interval", c.PollInterval.String(), "must be positive")
	}
	if c.Concurrency <= 0 {
		return snmp.NewConfigurationError("concurrency", fmt.Sprint(c.Concurrency), "must be positive")
	}
	if len(c.Devices) == 0 {
		return snmp.NewConfigurationError("devices", "", "at least one device is required")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.DeviceConfigs() {
		if d.Host == "" {
			return snmp.NewConfigurationError(fmt.Sprintf("devices[%d].host", i), "", "required")
		}
		if seen[d.ID()] {
			return snmp.NewConfigurationError(fmt.Sprintf("devices[%d].name", i), d.ID(), "duplicate device")
		}
		seen[d.ID()] = true

		for name := range d.Labels {
			if err := validateLabel(i, name); err != nil {
				return err
			}
		}

		if err := snmp.NewClient(d).Validate(); err != nil {
			return fmt.Errorf("devices[%d]: %w", i, err)
		}
	}
	return nil
}
