// Package exporter exposes OLT snapshots as Prometheus metrics.
package exporter

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

const namespace = "olt"

var (
	onuLabels = []string{"device", "onu", "port"}

	onuStatusDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "onu", "status"),
		"ONU run state, 1 online and 0 offline.",
		onuLabels, nil)
	onuPowerDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "onu", "power_dbm"),
		"Received optical power in dBm, side onu or olt.",
		append(onuLabels, "side"), nil)
	onuLastDownDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "onu", "last_down_timestamp_seconds"),
		"Time the ONU last went down.",
		onuLabels, nil)
	onuInfoDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "onu", "info"),
		"ONU identity and last down cause.",
		append(onuLabels, "serial", "serial_ascii", "description", "last_down_cause"), nil)

	boardTemperatureDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "board", "temperature_celsius"),
		"Board temperature.",
		[]string{"device", "board"}, nil)
	uptimeDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "uptime_seconds"),
		"Device uptime at minute resolution.",
		[]string{"device"}, nil)
	walkErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "snapshot", "walk_errors"),
		"Walks or values that failed in the latest snapshot.",
		[]string{"device"}, nil)

	pollSuccessDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "poll", "success"),
		"Whether the last poll of the device succeeded.",
		[]string{"device"}, nil)
	pollDurationDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "poll", "duration_seconds"),
		"Duration of the last successful poll.",
		[]string{"device"}, nil)
	pollErrorsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "poll", "errors_total"),
		"Failed polls.",
		[]string{"device"}, nil)
	pollSkippedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "poll", "skipped_total"),
		"Polls skipped while the circuit breaker was open.",
		[]string{"device"}, nil)
	pollCollectsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "poll", "collects_total"),
		"Successful polls.",
		[]string{"device"}, nil)
)

// Source provides the latest poll results. *snmp.Manager implements it.
type Source interface {
	ListDevices() []string
	DeviceConfig(name string) (snmp.DeviceConfig, bool)
	Latest(name string) (*snmp.Snapshot, bool)
	GetStats(name string) (*snmp.CollectionStats, error)
}

// Collector implements prometheus.Collector over a Source.
type Collector struct {
	source         Source
	logger         zerolog.Logger
	labelKeys      []string
	deviceInfoDesc *prometheus.Desc
}

// NewCollector exports olt_device_info with one label per labelKeys entry,
// filled from each device's configured labels. The keys are fixed for the
// collector's lifetime.
func NewCollector(source Source, logger zerolog.Logger, labelKeys []string) *Collector {
	keys := append([]string{}, labelKeys...)
	return &Collector{
		source:    source,
		logger:    logger.With().Str("component", "exporter").Logger(),
		labelKeys: keys,
		deviceInfoDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "device", "info"),
			"Configured device identity and labels.",
			append([]string{"device", "host"}, keys...), nil),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	describeSnapshot(ch)
	ch <- c.deviceInfoDesc
	ch <- pollSuccessDesc
	ch <- pollDurationDesc
	ch <- pollErrorsDesc
	ch <- pollSkippedDesc
	ch <- pollCollectsDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, device := range c.source.ListDevices() {
		stats, err := c.source.GetStats(device)
		if err != nil {
			// removed between ListDevices and GetStats
			continue
		}

		if cfg, ok := c.source.DeviceConfig(device); ok {
			values := []string{device, cfg.Host}
			for _, k := range c.labelKeys {
				values = append(values, cfg.Labels[k])
			}
			ch <- prometheus.MustNewConstMetric(c.deviceInfoDesc, prometheus.GaugeValue, 1, values...)
		}

		success := 0.0
		if stats.TotalCollects > 0 && stats.LastError == "" {
			success = 1
		}
		ch <- prometheus.MustNewConstMetric(pollSuccessDesc, prometheus.GaugeValue, success, device)
		ch <- prometheus.MustNewConstMetric(pollDurationDesc, prometheus.GaugeValue, stats.LastDuration.Seconds(), device)
		ch <- prometheus.MustNewConstMetric(pollErrorsDesc, prometheus.CounterValue, float64(stats.TotalErrors), device)
		ch <- prometheus.MustNewConstMetric(pollSkippedDesc, prometheus.CounterValue, float64(stats.Skipped), device)
		ch <- prometheus.MustNewConstMetric(pollCollectsDesc, prometheus.CounterValue, float64(stats.TotalCollects), device)

		snap, ok := c.source.Latest(device)
		if !ok {
			continue
		}
		collectSnapshot(ch, c.logger, device, snap)
	}
}

// SnapshotCollector exposes a single snapshot, used for on-demand probes.
type SnapshotCollector struct {
	Device   string
	Snapshot *snmp.Snapshot
	Logger   zerolog.Logger
}

// Describe implements prometheus.Collector
func (s SnapshotCollector) Describe(ch chan<- *prometheus.Desc) {
	describeSnapshot(ch)
}

// Collect implements prometheus.Collector
func (s SnapshotCollector) Collect(ch chan<- prometheus.Metric) {
	collectSnapshot(ch, s.Logger, s.Device, s.Snapshot)
}

func describeSnapshot(ch chan<- *prometheus.Desc) {
	ch <- onuStatusDesc
	ch <- onuPowerDesc
	ch <- onuLastDownDesc
	ch <- onuInfoDesc
	ch <- boardTemperatureDesc
	ch <- uptimeDesc
	ch <- walkErrorsDesc
}

func collectSnapshot(ch chan<- prometheus.Metric, logger zerolog.Logger, device string, snap *snmp.Snapshot) {
	for _, onu := range snap.SortedONUs() {
		port := snmp.PortName(onu.Index)

		switch onu.Status {
		case snmp.StatusOnline:
			ch <- prometheus.MustNewConstMetric(onuStatusDesc, prometheus.GaugeValue, 1, device, onu.Index, port)
		case snmp.StatusOffline:
			ch <- prometheus.MustNewConstMetric(onuStatusDesc, prometheus.GaugeValue, 0, device, onu.Index, port)
		}

		// Offline and absent readings are omitted rather than exported as 0 dBm.
		if dbm, ok := snmp.ParsePowerReading(onu.RxPower); ok {
			ch <- prometheus.MustNewConstMetric(onuPowerDesc, prometheus.GaugeValue, dbm, device, onu.Index, port, string(snmp.PowerONU))
		}
		if dbm, ok := snmp.ParsePowerReading(onu.OltPower); ok {
			ch <- prometheus.MustNewConstMetric(onuPowerDesc, prometheus.GaugeValue, dbm, device, onu.Index, port, string(snmp.PowerOLT))
		}

		if !onu.LastDownAt.IsZero() {
			ch <- prometheus.MustNewConstMetric(onuLastDownDesc, prometheus.GaugeValue,
				float64(onu.LastDownAt.Unix()), device, onu.Index, port)
		}

		ch <- prometheus.MustNewConstMetric(onuInfoDesc, prometheus.GaugeValue, 1,
			device, onu.Index, port,
			onu.Serial, snmp.SerialVendorID(onu.Serial), onu.Description, string(onu.LastDownCause))
	}

	for _, board := range snap.Boards {
		celsius, err := strconv.ParseFloat(board.Value, 64)
		if err != nil {
			logger.Debug().Str("device", device).Str("board", board.Index).Str("value", board.Value).Msg("skipping board temperature")
			continue
		}
		ch <- prometheus.MustNewConstMetric(boardTemperatureDesc, prometheus.GaugeValue, celsius, device, board.Index)
	}

	if snap.Uptime != nil {
		ch <- prometheus.MustNewConstMetric(uptimeDesc, prometheus.GaugeValue, snap.Uptime.Duration().Seconds(), device)
	}
	ch <- prometheus.MustNewConstMetric(walkErrorsDesc, prometheus.GaugeValue, float64(len(snap.Errors)), device)
}
