// Package catalog keeps the latest metrics for every known pool and reports drift between refreshes.
package catalog

import (
	"sync"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

const (
	// ApyDropThreshold is the absolute drop, in percentage points, that raises ApyDrop.
	ApyDropThreshold = 2.0
	// RiskDecayFactor: a new risk score below old*factor raises RiskIncrease.
	RiskDecayFactor = 0.8
)

// Catalog is a keyed store of the latest PoolMetrics. Iteration order is the
// order in which pool ids were first seen.
type Catalog struct {
	mu     sync.RWMutex
	pools  map[string]types.PoolMetrics
	order  []string
	alerts alerts.Publisher
	logger zerolog.Logger
}

// New creates an empty catalog. A nil publisher discards alerts.
func New(publisher alerts.Publisher) *Catalog {
	return &Catalog{
		pools:  make(map[string]types.PoolMetrics),
		alerts: publisher,
		logger: logger.GetForComponent("pool_catalog"),
	}
}

// Refresh replaces each incoming pool's record, comparing against the prior
// record first. Alerts are published after the lock is released.
func (c *Catalog) Refresh(pools []types.PoolMetrics) []types.Alert {
	var raised []types.Alert

	c.mu.Lock()
	for _, pool := range pools {
		if pool.PoolID == "" {
			c.logger.Warn().Str("protocol", pool.Protocol).Msg("Skipping pool without id")
			continue
		}
		old, exists := c.pools[pool.PoolID]
		if exists {
			raised = append(raised, drift(old, pool)...)
		} else {
			c.order = append(c.order, pool.PoolID)
		}
		c.pools[pool.PoolID] = pool
	}
	size := len(c.pools)
	c.mu.Unlock()

	c.logger.Debug().Int("incoming", len(pools)).Int("catalogSize", size).Int("alerts", len(raised)).Msg("Catalog refreshed")

	if c.alerts != nil {
		for _, a := range raised {
			c.alerts.Publish(a)
		}
	}
	return raised
}

func drift(old, cur types.PoolMetrics) []types.Alert {
	var out []types.Alert
	if old.APY-cur.APY > ApyDropThreshold {
		out = append(out, types.ApyDrop{PoolID: cur.PoolID, OldAPY: old.APY, NewAPY: cur.APY})
	}
	if cur.RiskScore < old.RiskScore*RiskDecayFactor {
		out = append(out, types.RiskIncrease{PoolID: cur.PoolID, RiskFactor: cur.RiskScore})
	}
	return out
}

// Snapshot returns a copy of every pool in first-seen order.
func (c *Catalog) Snapshot() []types.PoolMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.PoolMetrics, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.pools[id])
	}
	return out
}

func (c *Catalog) Get(poolID string) (types.PoolMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[poolID]
	return p, ok
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pools)
}
