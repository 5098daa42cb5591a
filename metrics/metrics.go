// Package metrics exposes Prometheus collectors for startup, update and
// reachability activity. A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "launcher"

// Collector groups the launcher metrics.
type Collector struct {
	updateAttempts  *prometheus.CounterVec
	updateDuration  *prometheus.HistogramVec
	downloadedBytes prometheus.Counter
	probes          *prometheus.CounterVec
	startupDuration prometheus.Gauge
}

// NewCollector creates the collectors and registers them with reg.
// Collectors already registered by another Collector are reused.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		updateAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "attempts_total",
			Help:      "Update checks by outcome.",
		}, []string{"outcome"}),
		updateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "duration_seconds",
			Help:      "Duration of non-skipped update checks.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		downloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "update",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes downloaded by update attempts.",
		}),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reachability",
			Name:      "probes_total",
			Help:      "Reachability probes by result.",
		}, []string{"status"}),
		startupDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "startup_duration_seconds",
			Help:      "Duration of the startup sequence.",
		}),
	}

	if reg == nil {
		return c, nil
	}

	var err error
	if c.updateAttempts, err = register(reg, c.updateAttempts); err != nil {
		return nil, err
	}
	if c.updateDuration, err = register(reg, c.updateDuration); err != nil {
		return nil, err
	}
	if c.downloadedBytes, err = register(reg, c.downloadedBytes); err != nil {
		return nil, err
	}
	if c.probes, err = register(reg, c.probes); err != nil {
		return nil, err
	}
	if c.startupDuration, err = register(reg, c.startupDuration); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("failed to register metrics collector: %w", err)
	}
	return c, nil
}

// UpdateAttempt records the outcome of an update check. Skipped checks carry
// no duration.
func (c *Collector) UpdateAttempt(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.updateAttempts.WithLabelValues(outcome).Inc()
	if d > 0 {
		c.updateDuration.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

// Downloaded adds n transferred bytes.
func (c *Collector) Downloaded(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.downloadedBytes.Add(float64(n))
}

// Probe records a completed reachability probe.
func (c *Collector) Probe(status string) {
	if c == nil {
		return
	}
	c.probes.WithLabelValues(status).Inc()
}

// Startup records the duration of the startup sequence.
func (c *Collector) Startup(d time.Duration) {
	if c == nil {
		return
	}
	c.startupDuration.Set(d.Seconds())
}
