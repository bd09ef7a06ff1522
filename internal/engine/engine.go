// Package engine runs the periodic decision cycle: sentiment, band selection,
// allocation, drift detection, execution and performance recording.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/executor"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/strategy"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// PortfolioStrategyID is the performance series for the managed portfolio itself.
const PortfolioStrategyID = "portfolio"

const recentCycles = 50

type SentimentSource interface {
	Refresh(ctx context.Context) types.SentimentReading
}

type PoolSnapshotter interface {
	Snapshot() []types.PoolMetrics
}

type StrategyEvaluator interface {
	Evaluate(score float64) []types.StrategyAction
}

type PerformanceRecorder interface {
	Record(ctx context.Context, strategyID string, value, sentimentScore float64, action *string) types.StrategyPerformance
}

// VolatilityProbe reports the reference asset's 24h move as a fraction.
type VolatilityProbe interface {
	PriceChange24h(ctx context.Context) (float64, error)
}

type SnapshotStore interface {
	NextCycleNumber(ctx context.Context) (int, error)
	SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error)
}

// Config holds the collaborators for creating a new Engine.
type Config struct {
	Sentiment  SentimentSource
	Catalog    PoolSnapshotter
	Selector   *strategy.Selector
	Strategies StrategyEvaluator // optional
	Manager    executor.Manager
	Tracker    PerformanceRecorder
	Store      SnapshotStore    // optional
	Alerts     alerts.Publisher // optional
	Policy     types.Policy
	Denom      string
	Precision  int

	// Volatility switches RunLoop to VolatileInterval while the absolute 24h
	// move is at or above VolatilityThreshold. Optional.
	Volatility          VolatilityProbe
	VolatileInterval    time.Duration
	VolatilityThreshold float64

	// RiskAdjust steps the risk tier from the portfolio's realized APY. Optional.
	RiskAdjust *RiskAdjustConfig
}

// RiskAdjustConfig raises the tier one step when APY is above RaiseAboveAPY and
// lowers it one step when APY is below LowerBelowAPY. Series shorter than
// MinHistory are ignored; zero means one day.
type RiskAdjustConfig struct {
	RaiseAboveAPY float64
	LowerBelowAPY float64
	MinHistory    time.Duration
}

type Engine struct {
	logger zerolog.Logger

	sentiment  SentimentSource
	catalog    PoolSnapshotter
	selector   *strategy.Selector
	strategies StrategyEvaluator
	manager    executor.Manager
	tracker    PerformanceRecorder
	store      SnapshotStore
	alerts     alerts.Publisher
	denom      string
	precision  int

	volatility          VolatilityProbe
	volatileInterval    time.Duration
	volatilityThreshold float64
	riskAdjust          *RiskAdjustConfig

	policy     atomic.Pointer[types.Policy]
	cycleCount atomic.Int64

	mu     sync.RWMutex
	recent []types.CycleSnapshot
}

func New(cfg Config) (*Engine, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine configuration validation failed: %w", err)
	}

	e := &Engine{
		logger:     logger.GetForComponent("engine"),
		sentiment:  cfg.Sentiment,
		catalog:    cfg.Catalog,
		selector:   cfg.Selector,
		strategies: cfg.Strategies,
		manager:    cfg.Manager,
		tracker:    cfg.Tracker,
		store:      cfg.Store,
		alerts:     cfg.Alerts,
		denom:      cfg.Denom,
		precision:  cfg.Precision,

		volatility:          cfg.Volatility,
		volatileInterval:    cfg.VolatileInterval,
		volatilityThreshold: cfg.VolatilityThreshold,
	}
	if cfg.RiskAdjust != nil {
		adjust := *cfg.RiskAdjust
		if adjust.MinHistory == 0 {
			adjust.MinHistory = 24 * time.Hour
		}
		e.riskAdjust = &adjust
	}
	e.SetPolicy(cfg.Policy)

	e.logger.Info().
		Str("risk_tier", cfg.Policy.RiskTier.String()).
		Str("denom", cfg.Denom).
		Bool("persistence", cfg.Store != nil).
		Bool("volatilityWatch", cfg.Volatility != nil).
		Bool("riskAdjust", cfg.RiskAdjust != nil).
		Msg("Engine created")
	return e, nil
}

func validateConfig(cfg Config) error {
	if cfg.Sentiment == nil {
		return fmt.Errorf("sentiment source cannot be nil")
	}
	if cfg.Catalog == nil {
		return fmt.Errorf("pool catalog cannot be nil")
	}
	if cfg.Selector == nil {
		return fmt.Errorf("strategy selector cannot be nil")
	}
	if cfg.Manager == nil {
		return fmt.Errorf("executor cannot be nil")
	}
	if cfg.Tracker == nil {
		return fmt.Errorf("performance tracker cannot be nil")
	}
	if cfg.Denom == "" {
		return fmt.Errorf("denom cannot be empty")
	}
	if cfg.Precision < 0 || cfg.Precision > 18 {
		return fmt.Errorf("precision must be between 0 and 18")
	}
	if cfg.Volatility != nil {
		if cfg.VolatileInterval <= 0 {
			return fmt.Errorf("volatile interval must be positive")
		}
		if cfg.VolatilityThreshold <= 0 {
			return fmt.Errorf("volatility threshold must be positive")
		}
	}
	if a := cfg.RiskAdjust; a != nil {
		if a.LowerBelowAPY >= a.RaiseAboveAPY {
			return fmt.Errorf("risk adjust lower APY must be below raise APY")
		}
		if a.MinHistory < 0 {
			return fmt.Errorf("risk adjust min history cannot be negative")
		}
	}
	return nil
}

// SetPolicy swaps the policy used by subsequent cycles.
func (e *Engine) SetPolicy(p types.Policy) {
	e.policy.Store(&p)
}

func (e *Engine) Policy() types.Policy {
	return *e.policy.Load()
}

// Recent returns up to limit in-memory snapshots, newest first.
func (e *Engine) Recent(limit int) []types.CycleSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if limit <= 0 || limit > len(e.recent) {
		limit = len(e.recent)
	}
	out := make([]types.CycleSnapshot, 0, limit)
	for i := len(e.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, e.recent[i])
	}
	return out
}

func (e *Engine) remember(snap types.CycleSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recent = append(e.recent, snap)
	if over := len(e.recent) - recentCycles; over > 0 {
		e.recent = append([]types.CycleSnapshot(nil), e.recent[over:]...)
	}
}

// RunLoop runs one cycle immediately and then one per interval until ctx is cancelled.
// With a volatility probe the interval is re-chosen before every cycle.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration) {
	e.logger.Info().Dur("interval", interval).Msg("Starting engine loop")

	current := e.loopInterval(ctx, interval)
	ticker := time.NewTicker(current)
	defer ticker.Stop()

	e.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("Engine loop stopped due to context cancellation")
			return
		case <-ticker.C:
			if next := e.loopInterval(ctx, interval); next != current {
				e.logger.Info().Dur("from", current).Dur("to", next).Msg("Switching loop interval")
				ticker.Reset(next)
				current = next
			}
			e.RunCycle(ctx)
		}
	}
}

func (e *Engine) nextCycleNumber(ctx context.Context) int {
	local := int(e.cycleCount.Add(1))
	if e.store == nil {
		return local
	}
	n, err := e.store.NextCycleNumber(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to increment persistent cycle number, using local counter")
		return local
	}
	return n
}
