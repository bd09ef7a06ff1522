// Package performance records strategy portfolio values over time and derives
// return and risk statistics from them.
package performance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

var ErrUnknownStrategy = errors.New("no performance recorded for strategy")

// Benchmark supplies the market APY used for alpha, in percent.
type Benchmark interface {
	MarketAPY(ctx context.Context) (float64, error)
}

// StaticBenchmark always reports the same market APY.
type StaticBenchmark float64

func (b StaticBenchmark) MarketAPY(context.Context) (float64, error) { return float64(b), nil }

// PointSaver persists recorded points. The PostgreSQL store implements it.
type PointSaver interface {
	SavePerformancePoint(ctx context.Context, strategyID string, point types.TimeSeriesPoint) error
}

type TrackerConfig struct {
	Benchmark    Benchmark
	RiskFreeRate float64
	Saver        PointSaver // optional
}

type Tracker struct {
	mu         sync.RWMutex
	strategies map[string]*types.StrategyPerformance

	benchmark    Benchmark
	riskFreeRate float64
	saver        PointSaver
	now          func() time.Time
	logger       zerolog.Logger
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.Benchmark == nil {
		cfg.Benchmark = StaticBenchmark(config.DefaultMarketBenchmarkAPY)
	}
	return &Tracker{
		strategies:   make(map[string]*types.StrategyPerformance),
		benchmark:    cfg.Benchmark,
		riskFreeRate: cfg.RiskFreeRate,
		saver:        cfg.Saver,
		now:          time.Now,
		logger:       logger.GetForComponent("performance_tracker"),
	}
}

// Record appends a point for the strategy. The first point fixes the initial value;
// a non-nil action counts as a rebalance. APY is recomputed on every call.
func (t *Tracker) Record(ctx context.Context, strategyID string, value, sentimentScore float64, action *string) types.StrategyPerformance {
	now := t.now().UTC()
	point := types.TimeSeriesPoint{
		Timestamp:      now,
		Value:          value,
		SentimentScore: sentimentScore,
		Action:         action,
	}

	t.mu.Lock()
	perf, ok := t.strategies[strategyID]
	if !ok {
		perf = &types.StrategyPerformance{StrategyID: strategyID, InitialValue: value}
		t.strategies[strategyID] = perf
	}
	perf.HistoricalValues = append(perf.HistoricalValues, point)
	perf.CurrentValue = value
	perf.LastUpdate = now
	if action != nil {
		perf.RebalanceCount++
	}
	perf.APY = AnnualizedAPY(perf.InitialValue, value, now.Sub(perf.HistoricalValues[0].Timestamp))
	snapshot := clonePerformance(perf)
	t.mu.Unlock()

	if t.saver != nil {
		if err := t.saver.SavePerformancePoint(ctx, strategyID, point); err != nil {
			t.logger.Error().Err(err).Str("strategy_id", strategyID).Msg("Failed to persist performance point")
		}
	}
	return snapshot
}

// Seed replaces a strategy's history with previously persisted points, oldest first.
func (t *Tracker) Seed(strategyID string, points []types.TimeSeriesPoint) {
	if len(points) == 0 {
		return
	}
	perf := &types.StrategyPerformance{
		StrategyID:       strategyID,
		InitialValue:     points[0].Value,
		HistoricalValues: append([]types.TimeSeriesPoint(nil), points...),
	}
	last := points[len(points)-1]
	perf.CurrentValue = last.Value
	perf.LastUpdate = last.Timestamp
	for _, p := range points {
		if p.Action != nil {
			perf.RebalanceCount++
		}
	}
	perf.APY = AnnualizedAPY(perf.InitialValue, perf.CurrentValue, last.Timestamp.Sub(points[0].Timestamp))

	t.mu.Lock()
	t.strategies[strategyID] = perf
	t.mu.Unlock()
	t.logger.Info().Str("strategy_id", strategyID).Int("points", len(points)).Msg("Seeded performance history")
}

// Get returns a copy of the strategy's performance record.
func (t *Tracker) Get(strategyID string) (types.StrategyPerformance, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	perf, ok := t.strategies[strategyID]
	if !ok {
		return types.StrategyPerformance{}, false
	}
	return clonePerformance(perf), true
}

// IDs lists tracked strategies in sorted order.
func (t *Tracker) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.strategies))
	for id := range t.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Report derives the statistics for one strategy. A failing benchmark falls back
// to the configured default market APY.
func (t *Tracker) Report(ctx context.Context, strategyID string) (types.PerformanceReport, error) {
	perf, ok := t.Get(strategyID)
	if !ok {
		return types.PerformanceReport{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategyID)
	}

	marketAPY, err := t.benchmark.MarketAPY(ctx)
	if err != nil {
		t.logger.Warn().Err(err).Msg("Benchmark unavailable; using default market APY")
		marketAPY = config.DefaultMarketBenchmarkAPY
	}

	return types.PerformanceReport{
		StrategyID:       perf.StrategyID,
		APY:              perf.APY,
		TotalReturn:      TotalReturn(perf.InitialValue, perf.CurrentValue),
		SharpeRatio:      SharpeRatio(perf.HistoricalValues, t.riskFreeRate),
		WinRate:          WinRate(perf.HistoricalValues),
		AvgRebalanceGain: AvgRebalanceGain(perf.HistoricalValues),
		GasSaved:         float64(perf.RebalanceCount) * config.GasSavedPerRebalance,
		Alpha:            perf.APY - marketAPY,
		MarketAPY:        marketAPY,
		RebalanceCount:   perf.RebalanceCount,
		Points:           len(perf.HistoricalValues),
		LastUpdate:       perf.LastUpdate,
	}, nil
}

func clonePerformance(p *types.StrategyPerformance) types.StrategyPerformance {
	out := *p
	out.HistoricalValues = make([]types.TimeSeriesPoint, len(p.HistoricalValues))
	copy(out.HistoricalValues, p.HistoricalValues)
	return out
}
