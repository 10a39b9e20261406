package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"reflect"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nanoncore/olt-telemetry/pkg/config"
	"github.com/nanoncore/olt-telemetry/pkg/exporter"
	"github.com/nanoncore/olt-telemetry/pkg/logger"
	"github.com/nanoncore/olt-telemetry/pkg/snmp"
)

var configFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Poll OLTs periodically and expose Prometheus metrics",
	Long: `Run the poller in the foreground.

Every device in the configuration file is polled on the configured interval.
The latest snapshot of each device is exposed on the metrics path, and
/probe?target=<device> collects a fresh snapshot on demand.

The device list is reloaded on SIGHUP or POST /-/reload. Listen address and
poll interval changes need a restart. POST /-/breaker/reset?target=<device>
closes the circuit breaker of a device that is being skipped.

Example:
  olt-telemetry serve --config /etc/olt-telemetry/config.yml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configFile, "config", "config.yml", "Configuration file")
	rootCmd.AddCommand(serveCmd)
}

// fleet keeps the manager's device set in sync with the configuration.
type fleet struct {
	mu      sync.Mutex
	manager *snmp.Manager
	applied map[string]snmp.DeviceConfig
	logger  zerolog.Logger
}

func newFleet(m *snmp.Manager, l zerolog.Logger) *fleet {
	return &fleet{
		manager: m,
		applied: make(map[string]snmp.DeviceConfig),
		logger:  l,
	}
}

// sync adds new devices, removes dropped ones and re-creates changed ones.
func (f *fleet) sync(devices []snmp.DeviceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	wanted := make(map[string]snmp.DeviceConfig, len(devices))
	for _, d := range devices {
		wanted[d.ID()] = d
	}

	var errs []error
	for id, old := range f.applied {
		d, keep := wanted[id]
		if keep && reflect.DeepEqual(old, d) {
			continue
		}
		if err := f.manager.RemoveDevice(id); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(f.applied, id)
		f.logger.Info().Str("device", id).Msg("device removed")
	}

	for id, d := range wanted {
		if _, ok := f.applied[id]; ok {
			continue
		}
		if err := f.manager.AddDevice(d); err != nil {
			errs = append(errs, err)
			continue
		}
		f.applied[id] = d
		f.logger.Info().Str("device", id).Str("host", d.Host).Msg("device added")
	}

	return errors.Join(errs...)
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := config.RegisterMetrics(reg); err != nil {
		return err
	}

	sc := config.New(configFile)
	if err := sc.LoadConfig(); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	cfg := sc.Get()

	logCfg := cfg.Log
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if logJSON {
		logCfg.JSON = true
	}
	l, err := logger.New(logCfg, os.Stderr)
	if err != nil {
		return err
	}
	log = l

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Int("devices", len(cfg.Devices)).
		Dur("interval", cfg.PollInterval).
		Msg("starting olt-telemetry")

	manager := snmp.NewManager(snmp.ManagerConfig{
		PollInterval: cfg.PollInterval,
		Concurrency:  cfg.Concurrency,
		Breaker:      cfg.Breaker,
		Logger:       &log,
		ClientOptions: []snmp.ClientOption{
			snmp.WithConcurrency(cfg.WalkWorkers),
		},
	})
	devices := newFleet(manager, log)
	if err := devices.sync(cfg.DeviceConfigs()); err != nil {
		return err
	}

	labelKeys := cfg.LabelKeys()
	if err := reg.Register(exporter.NewCollector(manager, log, labelKeys)); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := func() error {
		if err := sc.LoadConfig(); err != nil {
			return err
		}
		next := sc.Get()
		if !slices.Equal(labelKeys, next.LabelKeys()) {
			log.Warn().
				Strs("current", labelKeys).
				Strs("configured", next.LabelKeys()).
				Msg("device label names changed, restart to export them")
		}
		return devices.sync(next.DeviceConfigs())
	}

	// config reload
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	reloadRequest := make(chan chan error)
	go func() {
		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case <-hup:
				log.Debug().Msg("config reload triggered by SIGHUP")
				err = reload()
			case result := <-reloadRequest:
				log.Debug().Msg("config reload triggered by API")
				err = reload()
				result <- err
			}
			if err != nil {
				log.Error().Err(err).Msg("error reloading config")
			} else {
				log.Info().Int("devices", manager.DeviceCount()).Msg("reloaded config file")
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = writeJSON(w, manager.GetSummary())
	})
	mux.HandleFunc("/probe", probeHandler(manager))
	mux.HandleFunc("/-/breaker/reset", resetBreakerHandler(manager))
	mux.HandleFunc("/-/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "use POST", http.StatusMethodNotAllowed)
			return
		}
		result := make(chan error)
		select {
		case reloadRequest <- result:
		case <-r.Context().Done():
			return
		}
		if err := <-result; err != nil {
			http.Error(w, fmt.Sprintf("failed to reload config: %s", err), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	manager.Start(ctx)
	defer manager.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Str("metrics_path", cfg.MetricsPath).Msg("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// resetBreakerHandler closes the circuit breaker of ?target= so an operator
// can retry a device without waiting for the open timeout.
func resetBreakerHandler(manager *snmp.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "use POST", http.StatusMethodNotAllowed)
			return
		}
		target := r.URL.Query().Get("target")
		if target == "" {
			http.Error(w, "?target= missing", http.StatusBadRequest)
			return
		}
		if err := manager.ResetBreaker(target); err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		log.Info().Str("device", target).Msg("circuit breaker reset")
	}
}

// probeHandler collects a fresh snapshot of one device and serves it in its
// own registry.
func probeHandler(manager *snmp.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("target")
		if target == "" {
			http.Error(w, "?target= missing", http.StatusBadRequest)
			return
		}
		plog := log.With().Str("target", target).Logger()

		start := time.Now()
		registry := prometheus.NewRegistry()

		success := 1.0
		snap, err := manager.PollDevice(r.Context(), target)
		if err != nil {
			plog.Error().Err(err).Msg("error probing device")
			success = 0
		} else {
			registry.MustRegister(exporter.SnapshotCollector{Device: target, Snapshot: snap, Logger: plog})
		}

		probeDuration := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_duration_seconds",
			Help: "Returns how long the probe took to complete in seconds",
		})
		probeSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_success",
			Help: "Displays whether or not the probe was a success",
		})
		registry.MustRegister(probeDuration, probeSuccess)
		probeDuration.Set(time.Since(start).Seconds())
		probeSuccess.Set(success)

		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	}
}
