// Package health polls component pingers and caches an aggregate
// up/down flag for the health endpoints.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is implemented by components that expose a health probe.
// HealthPing must return nil when the component is healthy.
type Pinger interface {
	HealthPing(ctx context.Context) error
}

const probeTimeout = 5 * time.Second

// Check wraps one named component pinger with a cached result.
type Check struct {
	name    string
	pinger  Pinger
	healthy atomic.Int32

	mu      sync.Mutex
	lastErr string
}

func NewCheck(name string, p Pinger) *Check {
	return &Check{name: name, pinger: p}
}

func (c *Check) Name() string    { return c.name }
func (c *Check) IsHealthy() bool { return c.healthy.Load() == 1 }

// LastError returns the most recent probe failure, empty when healthy.
func (c *Check) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Check) probe(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := c.pinger.HealthPing(pctx)
	c.mu.Lock()
	if err != nil {
		c.healthy.Store(0)
		c.lastErr = err.Error()
	} else {
		c.healthy.Store(1)
		c.lastErr = ""
	}
	c.mu.Unlock()
}

// Monitor aggregates component checks into a single service health flag.
type Monitor struct {
	healthy atomic.Int32
	checks  []*Check
	log     zerolog.Logger
}

func NewMonitor(log zerolog.Logger, checks ...*Check) *Monitor {
	return &Monitor{checks: checks, log: log}
}

// IsHealthy returns the cached aggregate health.
func (m *Monitor) IsHealthy() bool { return m.healthy.Load() == 1 }

// Details reports per-component status, keyed by check name. Healthy
// components map to "ok".
func (m *Monitor) Details() map[string]string {
	out := make(map[string]string, len(m.checks))
	for _, c := range m.checks {
		if c.IsHealthy() {
			out[c.Name()] = "ok"
		} else if msg := c.LastError(); msg != "" {
			out[c.Name()] = msg
		} else {
			out[c.Name()] = "not probed yet"
		}
	}
	return out
}

// Start probes every check immediately and then on each tick until ctx is
// cancelled. Run it in its own goroutine.
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	prev := int32(-1)
	eval := func() {
		all := int32(1)
		for _, c := range m.checks {
			c.probe(ctx)
			if !c.IsHealthy() {
				all = 0
			}
		}
		m.healthy.Store(all)
		if all != prev {
			if all == 1 {
				m.log.Info().Msg("service health: UP")
			} else {
				m.log.Error().Fields(map[string]interface{}{"components": m.Details()}).Msg("service health: DOWN")
			}
			prev = all
		}
	}

	eval()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			eval()
		}
	}
}
