package exporter

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

type fakeSource struct {
	stats   map[string]*snmp.CollectionStats
	latest  map[string]*snmp.Snapshot
	configs map[string]snmp.DeviceConfig
}

func (f *fakeSource) ListDevices() []string {
	return []string{"olt-a", "olt-b"}
}

func (f *fakeSource) DeviceConfig(name string) (snmp.DeviceConfig, bool) {
	c, ok := f.configs[name]
	return c, ok
}

func (f *fakeSource) Latest(name string) (*snmp.Snapshot, bool) {
	s, ok := f.latest[name]
	return s, ok
}

func (f *fakeSource) GetStats(name string) (*snmp.CollectionStats, error) {
	s, ok := f.stats[name]
	if !ok {
		return nil, fmt.Errorf("device %s not found", name)
	}
	return s, nil
}

func testSnapshot() *snmp.Snapshot {
	return &snmp.Snapshot{
		Device: "olt-a",
		ONUs: map[string]*snmp.ONUTelemetry{
			"4194312192.0": {
				Index:         "4194312192.0",
				Status:        snmp.StatusOnline,
				Description:   "cliente-1",
				Serial:        "485754430011D168",
				RxPower:       "-21.50",
				OltPower:      "-23.10",
				LastDownAt:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
				LastDownCause: snmp.CauseDyingGasp,
			},
			"4194312192.1": {
				Index:    "4194312192.1",
				Status:   snmp.StatusOffline,
				RxPower:  snmp.OfflineReading,
				OltPower: snmp.OfflineReading,
			},
		},
		Boards: []snmp.BoardTemperature{
			{Index: "0", Value: "41"},
			{Index: "1", Value: snmp.NoData},
		},
		Uptime: &snmp.Uptime{Days: 2, Hours: 3, Minutes: 4},
		Errors: []string{"serial: decode failed"},
	}
}

func newTestCollector() *Collector {
	return NewCollector(&fakeSource{
		stats: map[string]*snmp.CollectionStats{
			"olt-a": {TotalCollects: 3, LastDuration: 2 * time.Second},
			"olt-b": {TotalErrors: 2, LastError: "timeout"},
		},
		latest: map[string]*snmp.Snapshot{"olt-a": testSnapshot()},
		configs: map[string]snmp.DeviceConfig{
			"olt-a": {Name: "olt-a", Host: "10.0.0.1", Labels: map[string]string{"site": "north", "rack": "r1"}},
			"olt-b": {Name: "olt-b", Host: "10.0.0.2", Labels: map[string]string{"site": "south"}},
		},
	}, zerolog.Nop(), []string{"rack", "site"})
}

func TestCollector_Counts(t *testing.T) {
	c := newTestCollector()

	tests := map[string]int{
		"olt_onu_status":                      2,
		"olt_onu_power_dbm":                   2,
		"olt_onu_last_down_timestamp_seconds": 1,
		"olt_onu_info":                        2,
		"olt_board_temperature_celsius":       1,
		"olt_uptime_seconds":                  1,
		"olt_snapshot_walk_errors":            1,
		"olt_poll_success":                    2,
		"olt_poll_errors_total":               2,
		"olt_device_info":                     2,
	}
	for name, want := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, want, testutil.CollectAndCount(c, name))
		})
	}
}

func TestCollector_Values(t *testing.T) {
	c := newTestCollector()

	expected := `
# HELP olt_poll_success Whether the last poll of the device succeeded.
# TYPE olt_poll_success gauge
olt_poll_success{device="olt-a"} 1
olt_poll_success{device="olt-b"} 0
# HELP olt_uptime_seconds Device uptime at minute resolution.
# TYPE olt_uptime_seconds gauge
olt_uptime_seconds{device="olt-a"} 183840
# HELP olt_onu_status ONU run state, 1 online and 0 offline.
# TYPE olt_onu_status gauge
olt_onu_status{device="olt-a",onu="4194312192.0",port="1/0:0"} 1
olt_onu_status{device="olt-a",onu="4194312192.1",port="1/0:1"} 0
`
	err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"olt_poll_success", "olt_uptime_seconds", "olt_onu_status")
	require.NoError(t, err)
}

func TestCollector_DeviceInfo(t *testing.T) {
	c := newTestCollector()

	expected := `
# HELP olt_device_info Configured device identity and labels.
# TYPE olt_device_info gauge
olt_device_info{device="olt-a",host="10.0.0.1",rack="r1",site="north"} 1
olt_device_info{device="olt-b",host="10.0.0.2",rack="",site="south"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "olt_device_info"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewCollector(&fakeSource{}, zerolog.Nop(), nil)))
}

func TestSnapshotCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(SnapshotCollector{Device: "olt-a", Snapshot: testSnapshot(), Logger: zerolog.Nop()}))

	n, err := testutil.GatherAndCount(reg, "olt_onu_info", "olt_onu_power_dbm")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
