package snmp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/nanoncore/olt-telemetry/pkg/resilience"
)

// Manager handles concurrent SNMP polling of multiple OLT devices.
type Manager struct {
	clients  map[string]*Client
	stats    map[string]*CollectionStats
	latest   map[string]*Snapshot
	breakers *resilience.Group
	mu       sync.RWMutex

	interval    time.Duration
	concurrency int
	logger      zerolog.Logger
	clientOpts  []ClientOption

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Callbacks
	OnSnapshot func(device string, snap *Snapshot)
	OnError    func(device string, err error)
}

// ManagerConfig holds manager configuration.
type ManagerConfig struct {
	PollInterval time.Duration
	// Concurrency bounds how many devices are polled at once.
	Concurrency int
	Breaker     resilience.Config
	Logger      *zerolog.Logger
	// ClientOptions are passed to every device client.
	ClientOptions []ClientOption
}

// NewManager creates a new SNMP manager.
func NewManager(config ManagerConfig) *Manager {
	if config.PollInterval == 0 {
		config.PollInterval = 60 * time.Second
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 8
	}
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	m := &Manager{
		clients:     make(map[string]*Client),
		stats:       make(map[string]*CollectionStats),
		latest:      make(map[string]*Snapshot),
		interval:    config.PollInterval,
		concurrency: config.Concurrency,
		logger:      logger,
		clientOpts:  config.ClientOptions,
	}
	m.breakers = resilience.NewGroup(config.Breaker, func(name string, from, to resilience.CircuitState) {
		m.logger.Warn().
			Str("device", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("circuit breaker state changed")
	})
	return m
}

// AddDevice adds a device to be polled.
func (m *Manager) AddDevice(config DeviceConfig) error {
	opts := append([]ClientOption{WithLogger(m.logger)}, m.clientOpts...)
	client := NewClient(config, opts...)
	if err := client.Validate(); err != nil {
		return fmt.Errorf("device %s: %w", config.ID(), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := config.ID()
	if _, exists := m.clients[id]; exists {
		return fmt.Errorf("device %s already exists", id)
	}

	m.clients[id] = client
	m.stats[id] = &CollectionStats{}
	m.breakers.Get(id)

	return nil
}

// RemoveDevice removes a device from polling.
func (m *Manager) RemoveDevice(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.clients[name]; !exists {
		return fmt.Errorf("device %s not found", name)
	}

	delete(m.clients, name)
	delete(m.stats, name)
	delete(m.latest, name)
	m.breakers.Remove(name)

	return nil
}

// Start begins the polling loop.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.pollLoop(ctx)
	}()
}

// Stop terminates the polling loop and waits for in-flight polls.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// pollLoop runs the periodic polling.
func (m *Manager) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// Initial poll
	m.pollAll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.pollAll(ctx)
		}
	}
}

// pollAll polls all devices concurrently.
func (m *Manager) pollAll(ctx context.Context) {
	names := m.ListDevices()

	p := pool.New().WithMaxGoroutines(m.concurrency)
	for _, name := range names {
		name := name
		p.Go(func() {
			m.pollDevice(ctx, name)
		})
	}
	p.Wait()
}

// pollDevice polls a single device through its circuit breaker.
func (m *Manager) pollDevice(ctx context.Context, name string) {
	m.mu.RLock()
	client, exists := m.clients[name]
	m.mu.RUnlock()

	if !exists {
		return
	}

	var snap *Snapshot
	err := m.breakers.Get(name).Execute(func() error {
		var err error
		pollCtx, cancel := context.WithTimeout(ctx, m.interval)
		defer cancel()
		snap, err = client.Snapshot(pollCtx, nil)
		return err
	})

	if errors.Is(err, resilience.ErrOpen) {
		m.mu.Lock()
		if stats, ok := m.stats[name]; ok {
			stats.Skipped++
		}
		m.mu.Unlock()
		m.logger.Debug().Str("device", name).Msg("poll skipped, circuit open")
		return
	}

	if err != nil {
		m.mu.Lock()
		if stats, ok := m.stats[name]; ok {
			stats.TotalErrors++
			stats.LastError = err.Error()
		}
		m.mu.Unlock()

		m.logger.Error().Err(err).Str("device", name).Msg("poll failed")
		if m.OnError != nil {
			m.OnError(name, err)
		}
		return
	}

	online, offline := snap.CountStatus()

	m.mu.Lock()
	stats, ok := m.stats[name]
	if ok {
		stats.LastCollection = snap.CollectedAt
		stats.LastDuration = snap.Duration
		stats.TotalCollects++
		stats.ONUCount = len(snap.ONUs)
		stats.OnlineONUs = online
		stats.OfflineONUs = offline
		stats.LastError = ""
		m.latest[name] = snap
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	event := m.logger.Info()
	if len(snap.Errors) > 0 {
		event = m.logger.Warn().Strs("walk_errors", snap.Errors)
	}
	event.
		Str("device", name).
		Int("onus", len(snap.ONUs)).
		Int("online", online).
		Int("offline", offline).
		Dur("took", snap.Duration).
		Msg("poll complete")

	if m.OnSnapshot != nil {
		m.OnSnapshot(name, snap)
	}
}

// PollNow triggers an immediate poll of all devices.
func (m *Manager) PollNow(ctx context.Context) {
	m.pollAll(ctx)
}

// PollDevice collects a snapshot of one device, bypassing its breaker.
func (m *Manager) PollDevice(ctx context.Context, name string) (*Snapshot, error) {
	m.mu.RLock()
	client, exists := m.clients[name]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("device %s not found", name)
	}

	return client.Snapshot(ctx, nil)
}

// DeviceConfig returns the configuration a device is polled with.
func (m *Manager) DeviceConfig(name string) (DeviceConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	client, ok := m.clients[name]
	if !ok {
		return DeviceConfig{}, false
	}
	return client.Config(), true
}

// Latest returns the most recent successful snapshot of a device.
func (m *Manager) Latest(name string) (*Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.latest[name]
	return snap, ok
}

// GetStats returns collection statistics for a device.
func (m *Manager) GetStats(name string) (*CollectionStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, exists := m.stats[name]
	if !exists {
		return nil, fmt.Errorf("device %s not found", name)
	}

	// Return a copy
	statsCopy := *stats
	return &statsCopy, nil
}

// GetAllStats returns collection statistics for all devices.
func (m *Manager) GetAllStats() map[string]CollectionStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]CollectionStats, len(m.stats))
	for name, stats := range m.stats {
		result[name] = *stats
	}
	return result
}

// ResetBreaker closes the circuit breaker of a device so that the next cycle
// polls it again.
func (m *Manager) ResetBreaker(name string) error {
	m.mu.RLock()
	_, exists := m.clients[name]
	m.mu.RUnlock()
	if !exists || !m.breakers.Reset(name) {
		return fmt.Errorf("device %s not found", name)
	}
	return nil
}

// BreakerStats returns the circuit breaker state of every device.
func (m *Manager) BreakerStats() []resilience.Stats {
	return m.breakers.Stats()
}

// ListDevices returns all configured device names, sorted.
func (m *Manager) ListDevices() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DeviceCount returns the number of configured devices.
func (m *Manager) DeviceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Summary provides a quick overview of all devices.
type Summary struct {
	TotalDevices int `json:"total_devices"`
	OpenCircuits int `json:"open_circuits"`
	TotalONUs    int `json:"total_onus"`
	OnlineONUs   int `json:"online_onus"`
	OfflineONUs  int `json:"offline_onus"`
	TotalErrors  int `json:"total_errors"`
}

// GetSummary returns a summary of all devices.
func (m *Manager) GetSummary() Summary {
	m.mu.RLock()
	summary := Summary{
		TotalDevices: len(m.clients),
	}
	for _, stats := range m.stats {
		summary.TotalONUs += stats.ONUCount
		summary.OnlineONUs += stats.OnlineONUs
		summary.OfflineONUs += stats.OfflineONUs
		summary.TotalErrors += int(stats.TotalErrors)
	}
	m.mu.RUnlock()

	for _, b := range m.breakers.Stats() {
		if b.State == resilience.StateOpen {
			summary.OpenCircuits++
		}
	}
	return summary
}
