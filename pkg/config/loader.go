package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvCommunity = "OLT_TELEMETRY_COMMUNITY"
	EnvLogLevel  = "OLT_TELEMETRY_LOG_LEVEL"
	EnvListen    = "OLT_TELEMETRY_LISTEN"
)

var (
	configReloadSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "olt_telemetry",
		Name:      "config_last_reload_successful",
		Help:      "OLT telemetry config loaded successfully.",
	})

	configReloadSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "olt_telemetry",
		Name:      "config_last_reload_success_timestamp_seconds",
		Help:      "Timestamp of the last successful configuration reload.",
	})
)

// RegisterMetrics registers the reload gauges with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{configReloadSuccess, configReloadSeconds} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnv reads KEY=VALUE pairs from the given dotenv files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Parse decodes and validates a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	c := DefaultConfig()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvCommunity); v != "" {
		c.Defaults.Community = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
}

// Load reads the configuration from a file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// SafeConfig holds the active configuration and swaps it on reload.
type SafeConfig struct {
	sync.RWMutex
	configFile string
	c          *Config
}

func New(configFile string) *SafeConfig {
	c := DefaultConfig()
	return &SafeConfig{
		c:          &c,
		configFile: configFile,
	}
}

func (sc *SafeConfig) Get() *Config {
	sc.RLock()
	defer sc.RUnlock()
	return sc.c
}

// LoadConfig re-reads the file. The active configuration is kept on error.
func (sc *SafeConfig) LoadConfig() (err error) {
	defer func() {
		if err != nil {
			configReloadSuccess.Set(0)
		} else {
			configReloadSuccess.Set(1)
			configReloadSeconds.SetToCurrentTime()
		}
	}()

	c, err := Load(sc.configFile)
	if err != nil {
		return err
	}

	sc.Lock()
	sc.c = c
	sc.Unlock()

	return nil
}
