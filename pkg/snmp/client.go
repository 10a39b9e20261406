package snmp

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
)

// Connection defaults applied by NewClient.
const (
	DefaultPort    uint16 = 161
	DefaultTimeout        = 10 * time.Second
	DefaultRetries        = 2
)

// Client binds a device configuration to the walk primitive. Every operation
// opens its own SNMP session and closes it before returning, so a Client is
// safe for concurrent use.
type Client struct {
	config        DeviceConfig
	newSnmpClient func() gosnmp.Handler
	logger        zerolog.Logger
	concurrency   int
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHandlerFactory replaces gosnmp.NewHandler, typically with a mock.
func WithHandlerFactory(f func() gosnmp.Handler) ClientOption {
	return func(c *Client) { c.newSnmpClient = f }
}

// WithLogger sets the logger used for session and walk diagnostics.
func WithLogger(l zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithConcurrency bounds the parallel walks of a snapshot.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) { c.concurrency = n }
}

// NewClient creates a client for one OLT, filling in connection defaults.
// Retries is used as given: 0 sends each request once.
func NewClient(config DeviceConfig, opts ...ClientOption) *Client {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	if config.Version == "" {
		config.Version = SNMPv2c
	}

	c := &Client{
		config:        config,
		newSnmpClient: gosnmp.NewHandler,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("device", config.ID()).Logger()
	return c
}

// Config returns the device configuration with defaults applied.
func (c *Client) Config() DeviceConfig {
	return c.config
}

// Validate checks the configuration without touching the network.
func (c *Client) Validate() error {
	if c.config.Host == "" {
		return NewConfigurationError("host", "", "required")
	}
	if _, err := snmpVersion(c.config.Version); err != nil {
		return err
	}
	if c.config.Retries < 0 {
		return NewConfigurationError("retries", strconv.Itoa(c.config.Retries), "must not be negative")
	}
	for _, pon := range c.config.PONs {
		if !ValidOID(pon) {
			return NewConfigurationError("pon", pon, "must be dot-separated non-negative integers")
		}
	}
	return nil
}

func snmpVersion(v SNMPVersion) (gosnmp.SnmpVersion, error) {
	switch v {
	case SNMPv1:
		return gosnmp.Version1, nil
	case SNMPv2c, "":
		return gosnmp.Version2c, nil
	default:
		return 0, NewConfigurationError("version", string(v), `must be "1" or "2c"`)
	}
}

// connect opens a new session. The caller must Close the returned handler.
func (c *Client) connect(ctx context.Context) (gosnmp.Handler, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewCommunicationError(c.config.Host, "", err)
	}

	version, _ := snmpVersion(c.config.Version)
	client := c.newSnmpClient()
	client.SetTarget(c.config.Host)
	client.SetPort(c.config.Port)
	client.SetCommunity(c.config.Community)
	client.SetVersion(version)
	client.SetTimeout(c.config.Timeout)
	client.SetRetries(c.config.Retries)
	client.SetMaxRepetitions(c.config.MaxRepetitions)

	if err := client.Connect(); err != nil {
		return nil, NewCommunicationError(c.config.Host, "", fmt.Errorf("connect: %w", err))
	}
	return client, nil
}

// walk runs one subtree walk over a fresh session.
func (c *Client) walk(ctx context.Context, root string) ([]Binding, error) {
	handler, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := handler.Close(); cerr != nil {
			c.logger.Debug().Err(cerr).Msg("closing SNMP session")
		}
	}()

	w := NewWalker(handler, c.config.Host)
	w.MaxRepetitions = c.config.MaxRepetitions
	w.Logger = c.logger
	return w.WalkBindings(ctx, root)
}

// walkValues runs one subtree walk and keeps only the rendered values.
func (c *Client) walkValues(ctx context.Context, root string) ([]string, error) {
	bindings, err := c.walk(ctx, root)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(bindings))
	for i, b := range bindings {
		values[i] = b.Value
	}
	return values, nil
}
