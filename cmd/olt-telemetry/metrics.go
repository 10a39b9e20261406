package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nanoncore/olt-telemetry/pkg/config"
	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

// OLT connection flags
var (
	oltHost           string
	oltPort           uint16
	oltCommunity      string
	oltVersion        string
	oltTimeout        time.Duration
	oltRetries        int
	oltMaxRepetitions uint32
	oltLegacyUptime   bool
	outputJSON        bool
)

// Selector flags
var (
	ponScope  string
	powerSide string
	ponScopes []string
)

var metricHelp = map[snmp.Metric]string{
	snmp.MetricStatus:           "Run state of each ONU (online/offline)",
	snmp.MetricDescription:      "Configured description of each ONU",
	snmp.MetricLastDowntime:     "Last down time of each ONU",
	snmp.MetricLastDownCause:    "Cause of each ONU's last outage",
	snmp.MetricPower:            "Optical power of each ONU in dBm",
	snmp.MetricSerial:           "Serial number of each ONU",
	snmp.MetricBoardTemperature: "Temperature of each board in Celsius",
	snmp.MetricUptime:           "Device uptime",
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Collect every metric and join them per ONU",
	Long: `Collect every metric of the OLT in one pass and print one row per ONU.

Walks that fail are reported as warnings; the command only fails when nothing
could be collected.

Examples:
  olt-telemetry snapshot --host 10.0.0.1
  olt-telemetry snapshot --host 10.0.0.1 --pon 4194312192 --pon 4194312448 --json`,
	RunE: runSnapshot,
}

func newMetricCmd(metric snmp.Metric) *cobra.Command {
	cmd := &cobra.Command{
		Use:   string(metric),
		Short: metricHelp[metric],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMetric(cmd.Context(), metric)
		},
	}
	addConnectionFlags(cmd)

	if metric != snmp.MetricBoardTemperature && metric != snmp.MetricUptime {
		cmd.Flags().StringVar(&ponScope, "pon", "", "Restrict the walk to one PON port (ifIndex suffix)")
	}
	if metric == snmp.MetricPower {
		cmd.Flags().StringVar(&powerSide, "side", string(snmp.PowerONU), "Reading to return (onu, olt)")
	}
	return cmd
}

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&oltHost, "host", "", "OLT management address [required]")
	cmd.Flags().Uint16Var(&oltPort, "port", snmp.DefaultPort, "SNMP port")
	cmd.Flags().StringVar(&oltCommunity, "community", "", "SNMP community (default $"+config.EnvCommunity+" or public)")
	cmd.Flags().StringVar(&oltVersion, "snmp-version", string(snmp.SNMPv2c), "SNMP version (1, 2c)")
	cmd.Flags().DurationVar(&oltTimeout, "timeout", snmp.DefaultTimeout, "Per-request timeout")
	cmd.Flags().IntVar(&oltRetries, "retries", snmp.DefaultRetries, "Retries per request")
	cmd.Flags().Uint32Var(&oltMaxRepetitions, "max-repetitions", 0, "Use GETBULK with this many repetitions (v2c)")
	cmd.Flags().BoolVar(&oltLegacyUptime, "legacy-uptime", false, "Use the legacy remainder arithmetic for uptime")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")

	_ = cmd.MarkFlagRequired("host")
}

func init() {
	for _, metric := range snmp.Metrics {
		rootCmd.AddCommand(newMetricCmd(metric))
	}

	addConnectionFlags(snapshotCmd)
	snapshotCmd.Flags().StringSliceVar(&ponScopes, "pon", nil, "Restrict to PON ports (can be specified multiple times)")
	rootCmd.AddCommand(snapshotCmd)
}

// deviceFromFlags builds the device configuration from the connection flags.
func deviceFromFlags() snmp.DeviceConfig {
	community := oltCommunity
	if community == "" {
		community = os.Getenv(config.EnvCommunity)
	}
	if community == "" {
		community = "public"
	}

	return snmp.DeviceConfig{
		Host:           oltHost,
		Port:           oltPort,
		Community:      community,
		Version:        snmp.SNMPVersion(oltVersion),
		Timeout:        oltTimeout,
		Retries:        oltRetries,
		MaxRepetitions: oltMaxRepetitions,
		LegacyUptime:   oltLegacyUptime,
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runMetric(parent context.Context, metric snmp.Metric) error {
	req := snmp.Request{Metric: metric, PON: ponScope}
	if metric == snmp.MetricPower {
		side, err := snmp.ParsePowerSide(powerSide)
		if err != nil {
			return err
		}
		req.Side = side
	}

	ctx, cancel := signalContext(parent)
	defer cancel()

	client := snmp.NewClient(deviceFromFlags(), snmp.WithLogger(log))
	res, err := client.Fetch(ctx, req)
	if err != nil {
		return err
	}

	return writeResult(os.Stdout, res, outputJSON)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	client := snmp.NewClient(deviceFromFlags(), snmp.WithLogger(log))
	snap, err := client.Snapshot(ctx, ponScopes)
	if err != nil {
		return err
	}
	for _, e := range snap.Errors {
		log.Warn().Str("device", snap.Device).Msg(e)
	}

	return writeSnapshot(os.Stdout, snap, outputJSON)
}
