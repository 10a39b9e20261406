// Package snmp retrieves per-ONU telemetry from Huawei GPON OLTs over SNMP v1/v2c.
//
// A subtree walk returns the raw rendering of every leaf under a metric's root OID;
// the Decode* functions turn those raw sequences into operator values.
package snmp

import (
	"time"
)

// SNMPVersion represents SNMP protocol version.
type SNMPVersion string

const (
	SNMPv1  SNMPVersion = "1"
	SNMPv2c SNMPVersion = "2c"
)

// DeviceConfig holds SNMP device connection configuration.
type DeviceConfig struct {
	Name      string            `json:"name,omitempty"`
	Host      string            `json:"host"`
	Port      uint16            `json:"port"`
	Community string            `json:"community,omitempty"`
	Version   SNMPVersion       `json:"version"`
	Timeout   time.Duration     `json:"timeout"`
	Retries   int               `json:"retries"` // 0 disables transport retries
	Labels    map[string]string `json:"labels,omitempty"`

	// MaxRepetitions switches walks to GETBULK when > 0 (v2c only).
	MaxRepetitions uint32 `json:"max_repetitions,omitempty"`

	// PONs limits snapshot collection to these port scopes; empty means the whole OLT.
	PONs []string `json:"pons,omitempty"`

	// LegacyUptime reproduces the remainder-of-self uptime arithmetic.
	LegacyUptime bool `json:"legacy_uptime,omitempty"`
}

// ID returns the name used to identify the device in logs and metrics.
func (c DeviceConfig) ID() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Host
}

// Metric names one of the eight retrievable metrics.
type Metric string

const (
	MetricStatus           Metric = "status"
	MetricDescription      Metric = "description"
	MetricLastDowntime     Metric = "last-downtime"
	MetricLastDownCause    Metric = "last-down-cause"
	MetricPower            Metric = "power"
	MetricSerial           Metric = "serial"
	MetricBoardTemperature Metric = "board-temperature"
	MetricUptime           Metric = "uptime"
)

// Metrics lists every supported metric in a stable order.
var Metrics = []Metric{
	MetricStatus,
	MetricDescription,
	MetricLastDowntime,
	MetricLastDownCause,
	MetricPower,
	MetricSerial,
	MetricBoardTemperature,
	MetricUptime,
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", NewConfigurationError("metric", s, "unknown metric")
}

// PowerSide selects which optical reading the power metric walks.
type PowerSide string

const (
	// PowerONU is the receive power measured at the ONU.
	PowerONU PowerSide = "onu"
	// PowerOLT is the OLT-side optical reading for each ONU.
	PowerOLT PowerSide = "olt"
)

// ParsePowerSide accepts exactly "onu" or "olt".
func ParsePowerSide(s string) (PowerSide, error) {
	switch PowerSide(s) {
	case PowerONU, PowerOLT:
		return PowerSide(s), nil
	default:
		return "", NewConfigurationError("power side", s, `must be "onu" or "olt"`)
	}
}

// ONUStatus is the decoded run state of an ONU.
type ONUStatus string

const (
	StatusOnline  ONUStatus = "online"
	StatusOffline ONUStatus = "offline"
)

// DownCause is the decoded reason of an ONU's last outage.
type DownCause string

const (
	CauseLOS       DownCause = "LOS"
	CauseDyingGasp DownCause = "dying-gasp"
	CauseNoInfo    DownCause = "no-info"
	CauseUnknown   DownCause = "unknown-condition"
)

// Uptime is a device uptime split into whole days, hours and minutes.
type Uptime struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
}

// Duration converts the uptime back to a time.Duration.
func (u Uptime) Duration() time.Duration {
	return time.Duration(u.Days)*24*time.Hour +
		time.Duration(u.Hours)*time.Hour +
		time.Duration(u.Minutes)*time.Minute
}

// Request selects one metric retrieval.
type Request struct {
	Metric Metric    `json:"metric"`
	PON    string    `json:"pon,omitempty"`
	Side   PowerSide `json:"side,omitempty"`
}

// Result carries the decoded values of one metric retrieval. Uptime is only
// set for MetricUptime; Values holds everything else.
type Result struct {
	Device string   `json:"device"`
	Metric Metric   `json:"metric"`
	PON    string   `json:"pon,omitempty"`
	Values []string `json:"values,omitempty"`
	Uptime *Uptime  `json:"uptime,omitempty"`
}

// ONUTelemetry joins every per-ONU metric for one ONU index.
type ONUTelemetry struct {
	Index         string    `json:"index"` // OID suffix: ifIndex.ontId
	Status        ONUStatus `json:"status,omitempty"`
	Description   string    `json:"description,omitempty"`
	Serial        string    `json:"serial,omitempty"`
	LastDowntime  string    `json:"last_downtime,omitempty"`
	LastDownAt    time.Time `json:"last_down_at,omitempty"`
	LastDownCause DownCause `json:"last_down_cause,omitempty"`
	RxPower       string    `json:"rx_power,omitempty"`  // ONU side
	OltPower      string    `json:"olt_power,omitempty"` // OLT side
}

// BoardTemperature is one board temperature reading.
type BoardTemperature struct {
	Index string `json:"index"`
	Value string `json:"value"` // degrees Celsius or NoData
}

// Snapshot aggregates all telemetry collected from one OLT in one pass.
type Snapshot struct {
	Device      string                   `json:"device"`
	Host        string                   `json:"host"`
	ONUs        map[string]*ONUTelemetry `json:"onus"`
	Boards      []BoardTemperature       `json:"boards,omitempty"`
	Uptime      *Uptime                  `json:"uptime,omitempty"`
	CollectedAt time.Time                `json:"collected_at"`
	Duration    time.Duration            `json:"duration"`
	Errors      []string                 `json:"errors,omitempty"`
}

// CollectionStats tracks collection statistics.
type CollectionStats struct {
	LastCollection time.Time     `json:"last_collection"`
	LastDuration   time.Duration `json:"last_duration"`
	TotalCollects  uint64        `json:"total_collects"`
	TotalErrors    uint64        `json:"total_errors"`
	Skipped        uint64        `json:"skipped"`
	ONUCount       int           `json:"onu_count"`
	OnlineONUs     int           `json:"online_onus"`
	OfflineONUs    int           `json:"offline_onus"`
	// LastError is the error of the most recent failed poll, cleared on success.
	LastError string `json:"last_error,omitempty"`
}
