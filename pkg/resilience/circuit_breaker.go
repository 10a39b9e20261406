// Package resilience keeps unreachable OLTs from stalling a polling cycle.
package resilience

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while a device's breaker is open.
var ErrOpen = errors.New("circuit open: device polling suspended")

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed polls the device normally.
	StateClosed CircuitState = iota
	// StateOpen skips the device until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets trial polls through after the cool-down.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failed polls before opening.
	FailureThreshold int `yaml:"failure_threshold"`
	// SuccessThreshold is the number of consecutive successful trial polls needed to close.
	SuccessThreshold int `yaml:"success_threshold"`
	// Timeout is how long an open breaker skips the device.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the default circuit breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          2 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = d.SuccessThreshold
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// StateChangeFunc is called after a breaker changes state, outside its lock.
type StateChangeFunc func(name string, from, to CircuitState)

// CircuitBreaker guards polling of a single device.
type CircuitBreaker struct {
	mu sync.Mutex

	name         string
	config       Config
	state        CircuitState
	failureCount int
	successCount int
	lastFailure  time.Time
	lastError    error
	openedAt     time.Time

	now      func() time.Time
	onChange StateChangeFunc
}

// NewCircuitBreaker creates a breaker for the named device.
func NewCircuitBreaker(name string, config Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config.withDefaults(),
		state:  StateClosed,
		now:    time.Now,
	}
}

// Name returns the device name the breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a poll may run now, moving an expired open breaker
// to half-open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	from := cb.state
	allowed := true
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) >= cb.config.Timeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
		} else {
			allowed = false
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
	return allowed
}

// RecordSuccess records a successful poll.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state
	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.config.SuccessThreshold {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.lastError = nil
		}
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RecordFailure records a failed poll and its cause.
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	from := cb.state
	cb.lastFailure = cb.now()
	cb.lastError = err

	switch cb.state {
	case StateClosed:
		cb.failureCount++
		if cb.failureCount >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.lastFailure
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.lastFailure
		cb.successCount = 0
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// Execute runs fn when the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrOpen
	}
	if err := fn(); err != nil {
		cb.RecordFailure(err)
		return err
	}
	cb.RecordSuccess()
	return nil
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if from != to && cb.onChange != nil {
		cb.onChange(cb.name, from, to)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns current statistics for the circuit breaker.
func (cb *CircuitBreaker) Stats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s := Stats{
		Name:         cb.name,
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
		LastFailure:  cb.lastFailure,
		OpenedAt:     cb.openedAt,
	}
	if cb.lastError != nil {
		s.LastError = cb.lastError.Error()
	}
	return s
}

// Reset closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.lastFailure = time.Time{}
	cb.lastError = nil
	cb.openedAt = time.Time{}
	cb.mu.Unlock()

	cb.notify(from, StateClosed)
}

// Stats contains statistics about a circuit breaker.
type Stats struct {
	Name         string       `json:"name"`
	State        CircuitState `json:"state"`
	FailureCount int          `json:"failure_count"`
	SuccessCount int          `json:"success_count"`
	LastFailure  time.Time    `json:"last_failure,omitempty"`
	LastError    string       `json:"last_error,omitempty"`
	OpenedAt     time.Time    `json:"opened_at,omitempty"`
}

// Group hands out one breaker per device name, all sharing a config.
type Group struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*CircuitBreaker
	onChange StateChangeFunc
}

// NewGroup creates an empty breaker group. onChange may be nil.
func NewGroup(config Config, onChange StateChangeFunc) *Group {
	return &Group{
		config:   config.withDefaults(),
		breakers: make(map[string]*CircuitBreaker),
		onChange: onChange,
	}
}

// Get returns the breaker for name, creating it on first use.
func (g *Group) Get(name string) *CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[name]
	if !ok {
		cb = NewCircuitBreaker(name, g.config)
		cb.onChange = g.onChange
		g.breakers[name] = cb
	}
	return cb
}

// Remove forgets the breaker for name.
func (g *Group) Remove(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.breakers, name)
}

// Reset closes the breaker for name. It reports false when name has no breaker.
func (g *Group) Reset(name string) bool {
	g.mu.Lock()
	cb, ok := g.breakers[name]
	g.mu.Unlock()
	if !ok {
		return false
	}
	cb.Reset()
	return true
}

// Stats returns the statistics of every breaker, ordered by name.
func (g *Group) Stats() []Stats {
	g.mu.Lock()
	breakers := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, cb := range g.breakers {
		breakers = append(breakers, cb)
	}
	g.mu.Unlock()

	out := make([]Stats, 0, len(breakers))
	for _, cb := range breakers {
		out = append(out, cb.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
