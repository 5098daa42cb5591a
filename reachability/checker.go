// Package reachability answers whether a remote endpoint can be reached,
// probing it at most once per cool-down window however often it is asked.
package reachability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/launcher/health"
	"github.com/GoCodeAlone/launcher/logging"
	"github.com/GoCodeAlone/launcher/metrics"
)

const (
	// DefaultCooldown is the minimum time between two completed probes.
	DefaultCooldown = 60 * time.Second

	// DefaultTimeout bounds a single connect attempt.
	DefaultTimeout = 5 * time.Second
)

// ErrInvalidAddress is returned for a server location without a usable host or port.
var ErrInvalidAddress = errors.New("invalid server address")

// Status is the reachability of the endpoint.
type Status int

const (
	StatusChecking Status = iota
	StatusOnline
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusChecking:
		return "CHECKING"
	case StatusOnline:
		return "ONLINE"
	case StatusOffline:
		return "OFFLINE"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Prober performs one connect attempt. Any error means unreachable.
type Prober interface {
	Probe(ctx context.Context, address string) error
}

// SocketProber opens and closes a TCP connection.
type SocketProber struct {
	Timeout time.Duration
}

// Probe implements Prober.
func (p SocketProber) Probe(ctx context.Context, address string) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Checker caches the reachability of one address.
type Checker struct {
	mu        sync.Mutex
	status    Status
	lastCheck time.Time
	probed    bool

	address  string
	prober   Prober
	cooldown time.Duration
	now      func() time.Time
	logger   logging.Logger
	metrics  *metrics.Collector
}

// Option configures a Checker.
type Option func(*Checker)

// WithProber replaces the TCP socket prober.
func WithProber(p Prober) Option {
	return func(c *Checker) {
		if p != nil {
			c.prober = p
		}
	}
}

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(c *Checker) {
		c.cooldown = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the checker logger.
func WithLogger(logger logging.Logger) Option {
	return func(c *Checker) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records every completed probe.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Checker) {
		c.metrics = m
	}
}

// NewChecker creates a checker for a server location such as
// "http://updates.example.com/" or "example.com:8080". HTTP and HTTPS URLs
// without a port use 80 and 443.
func NewChecker(server string, opts ...Option) (*Checker, error) {
	address, err := Address(server)
	if err != nil {
		return nil, err
	}
	c := &Checker{
		address:  address,
		prober:   SocketProber{Timeout: DefaultTimeout},
		cooldown: DefaultCooldown,
		now:      time.Now,
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Address returns the host:port a server location is probed on.
func Address(server string) (string, error) {
	if server == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if !strings.Contains(server, "://") {
		server = "tcp://" + server
	}
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	host, port := u.Hostname(), u.Port()
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidAddress, server)
	}
	if port == "" {
		switch u.Scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		default:
			return "", fmt.Errorf("%w: %q has no port", ErrInvalidAddress, server)
		}
	}
	return net.JoinHostPort(host, port), nil
}

// Address returns the probed host:port.
func (c *Checker) Address() string {
	return c.address
}

// IsOnline reports whether the last probe reached the endpoint.
func (c *Checker) IsOnline() bool {
	return c.Status() == StatusOnline
}

// IsOffline reports whether the last probe failed.
func (c *Checker) IsOffline() bool {
	return c.Status() == StatusOffline
}

// IsChecking reports whether a probe is in flight.
func (c *Checker) IsChecking() bool {
	return c.Status() == StatusChecking
}

// Status returns the current reachability, probing if the cool-down window
// since the last completed probe has elapsed. While a probe runs, every
// other caller gets StatusChecking without waiting.
func (c *Checker) Status() Status {
	return c.respond(context.Background())
}

func (c *Checker) respond(ctx context.Context) Status {
	c.mu.Lock()
	if c.status == StatusChecking && c.probed {
		c.mu.Unlock()
		return StatusChecking
	}
	if c.probed && c.now().Sub(c.lastCheck) < c.cooldown {
		status := c.status
		c.mu.Unlock()
		return status
	}
	prevStatus, prevCheck, prevProbed := c.status, c.lastCheck, c.probed
	c.status = StatusChecking
	c.probed = true
	c.mu.Unlock()

	status := StatusOnline
	if err := c.prober.Probe(ctx, c.address); err != nil {
		if ctx.Err() != nil {
			// The caller gave up; the endpoint was not measured.
			c.mu.Lock()
			c.status, c.lastCheck, c.probed = prevStatus, prevCheck, prevProbed
			c.mu.Unlock()
			c.logger.Debug("Probe abandoned", "address", c.address, "error", err)
			return prevStatus
		}
		status = StatusOffline
		c.logger.Debug("Endpoint unreachable", "address", c.address, "error", err)
	}
	c.metrics.Probe(strings.ToLower(status.String()))

	c.mu.Lock()
	c.status = status
	c.lastCheck = c.now()
	c.mu.Unlock()
	return status
}

// Name implements health.HealthChecker.
func (c *Checker) Name() string {
	return "reachability:" + c.address
}

// Description implements health.HealthChecker.
func (c *Checker) Description() string {
	return "TCP reachability of " + c.address
}

// Check implements health.HealthChecker. An unreachable endpoint is reported
// as a warning; the application keeps running without it.
func (c *Checker) Check(ctx context.Context) (*health.CheckResult, error) {
	start := time.Now()
	status := c.respond(ctx)
	result := &health.CheckResult{
		Name:      c.Name(),
		Timestamp: start,
		Duration:  time.Since(start),
		Details:   map[string]any{"address": c.address, "reachability": status.String()},
	}
	switch status {
	case StatusOnline:
		result.Status = health.StatusHealthy
		result.Message = "endpoint reachable"
	case StatusOffline:
		result.Status = health.StatusWarning
		result.Message = "endpoint unreachable"
	default:
		result.Status = health.StatusUnknown
		result.Message = "probe in progress"
	}
	return result, nil
}

var _ health.HealthChecker = (*Checker)(nil)
