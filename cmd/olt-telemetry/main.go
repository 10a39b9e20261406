package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nanoncore/olt-telemetry/pkg/config"
	"github.com/nanoncore/olt-telemetry/pkg/logger"
)

var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	envFile  string
	logLevel string
	logJSON  bool
	noColor  bool
)

// log is configured in PersistentPreRunE.
var log = zerolog.Nop()

var rootCmd = &cobra.Command{
	Use:   "olt-telemetry",
	Short: "SNMP telemetry for Huawei GPON OLTs",
	Long: `olt-telemetry reads per-ONU telemetry from Huawei GPON OLTs over SNMP v1/v2c.

Each metric command walks one subtree and prints the decoded values in walk
order. The serve command polls a fleet of OLTs and exposes the results as
Prometheus metrics.

Quick start:
  olt-telemetry status --host 10.0.0.1 --community public
  olt-telemetry power --host 10.0.0.1 --pon 4194312192 --side olt
  olt-telemetry serve --config /etc/olt-telemetry/config.yml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadEnv(envFile); err != nil {
			return err
		}
		if noColor {
			color.NoColor = true
		}

		cfg := logger.DefaultConfig()
		cfg.JSON = logJSON
		cfg.Color = !color.NoColor
		cfg.Level = logLevel
		if cfg.Level == "" {
			cfg.Level = os.Getenv(config.EnvLogLevel)
		}
		if cfg.Level == "" {
			cfg.Level = "warn"
		}

		l, err := logger.New(cfg, os.Stderr)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("olt-telemetry version %s (commit: %s, built: %s)\n", version, commit, buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file to load before running")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable coloured output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
