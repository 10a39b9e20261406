package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

const sampleConfig = `
listen: ":9900"
poll_interval: 30s
log:
  level: debug
  json: true
defaults:
  community: private
  timeout: 5s
devices:
  - name: olt-a
    host: 10.0.0.1
    pons: ["4194312192"]
    labels:
      site: north
  - name: olt-b
    host: 10.0.0.2
    port: 1161
    version: "1"
    community: legacy
    retries: 0
    legacy_uptime: true
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, ":9900", c.Listen)
	assert.Equal(t, "/metrics", c.MetricsPath)
	assert.Equal(t, 30*time.Second, c.PollInterval)
	assert.Equal(t, 8, c.Concurrency)
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.JSON)
	assert.Equal(t, 3, c.Breaker.FailureThreshold)

	devices := c.DeviceConfigs()
	require.Len(t, devices, 2)

	assert.Equal(t, snmp.DeviceConfig{
		Name:      "olt-a",
		Host:      "10.0.0.1",
		Port:      snmp.DefaultPort,
		Community: "private",
		Version:   snmp.SNMPv2c,
		Timeout:   5 * time.Second,
		Retries:   snmp.DefaultRetries,
		PONs:      []string{"4194312192"},
		Labels:    map[string]string{"site": "north"},
	}, devices[0])

	assert.Equal(t, uint16(1161), devices[1].Port)
	assert.Equal(t, snmp.SNMPv1, devices[1].Version)
	assert.Equal(t, "legacy", devices[1].Community)
	assert.Equal(t, 0, devices[1].Retries)
	assert.True(t, devices[1].LegacyUptime)
}

func TestConfig_LabelKeys(t *testing.T) {
	c, err := Parse(strings.NewReader(`
devices:
  - host: 10.0.0.1
    labels: {site: north, rack: r1}
  - host: 10.0.0.2
    labels: {site: south, tier: core}
  - host: 10.0.0.3
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"rack", "site", "tier"}, c.LabelKeys())

	c, err = Parse(strings.NewReader("devices: [{host: 10.0.0.1}]\n"))
	require.NoError(t, err)
	assert.Empty(t, c.LabelKeys())
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]struct {
		yaml      string
		configErr bool
	}{
		"unknown key": {
			yaml: "pollinterval: 5s\ndevices: [{host: 10.0.0.1}]\n",
		},
		"no devices": {
			yaml:      "listen: \":9900\"\n",
			configErr: true,
		},
		"missing host": {
			yaml:      "devices: [{name: olt-a}]\n",
			configErr: true,
		},
		"duplicate device": {
			yaml:      "devices: [{name: a, host: 10.0.0.1}, {name: a, host: 10.0.0.2}]\n",
			configErr: true,
		},
		"bad version": {
			yaml:      "devices: [{host: 10.0.0.1, version: \"3\"}]\n",
			configErr: true,
		},
		"bad pon": {
			yaml:      "devices: [{host: 10.0.0.1, pons: [\"0/1/2\"]}]\n",
			configErr: true,
		},
		"bad metrics path": {
			yaml:      "metrics_path: metrics\ndevices: [{host: 10.0.0.1}]\n",
			configErr: true,
		},
		"bad label name": {
			yaml:      "devices: [{host: 10.0.0.1, labels: {\"rack-1\": a}}]\n",
			configErr: true,
		},
		"reserved label name": {
			yaml:      "devices: [{host: 10.0.0.1, labels: {host: a}}]\n",
			configErr: true,
		},
		"zero interval": {
			yaml:      "poll_interval: 0s\ndevices: [{host: 10.0.0.1}]\n",
			configErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(test.yaml))
			require.Error(t, err)
			assert.Equal(t, test.configErr, snmp.IsConfigurationError(err), "error: %v", err)
		})
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv(EnvCommunity, "from-env")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvListen, ":9999")

	c, err := Parse(strings.NewReader("devices: [{host: 10.0.0.1}, {host: 10.0.0.2, community: own}]\n"))
	require.NoError(t, err)

	assert.Equal(t, ":9999", c.Listen)
	assert.Equal(t, "warn", c.Log.Level)

	devices := c.DeviceConfigs()
	assert.Equal(t, "from-env", devices[0].Community)
	assert.Equal(t, "own", devices[1].Community)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("OLT_TELEMETRY_TEST_VAR=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("OLT_TELEMETRY_TEST_VAR") })

	require.NoError(t, LoadEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("OLT_TELEMETRY_TEST_VAR"))
}

func TestSafeConfig_LoadConfig(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	sc := New(path)
	assert.Empty(t, sc.Get().Devices)

	require.NoError(t, sc.LoadConfig())
	assert.Len(t, sc.Get().Devices, 2)
	assert.Equal(t, float64(1), testutil.ToFloat64(configReloadSuccess))

	require.NoError(t, os.WriteFile(path, []byte("devices: []\n"), 0o600))
	assert.Error(t, sc.LoadConfig())
	assert.Len(t, sc.Get().Devices, 2, "previous config kept")
	assert.Equal(t, float64(0), testutil.ToFloat64(configReloadSuccess))
}
