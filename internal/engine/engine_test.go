package engine

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/catalog"
	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/executor"
	"github.com/elys-network/yieldbalancer/internal/performance"
	"github.com/elys-network/yieldbalancer/internal/strategy"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentimentFunc func() float64

func (f sentimentFunc) Refresh(context.Context) types.SentimentReading {
	return types.SentimentReading{CompositeScore: f(), Confidence: 1, Sources: []string{"test"}, Timestamp: time.Now()}
}

type memoryStore struct {
	mu    sync.Mutex
	n     int
	saved []types.CycleSnapshot
	err   error
}

func (m *memoryStore) NextCycleNumber(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.n++
	return m.n, nil
}

func (m *memoryStore) SaveCycleSnapshot(_ context.Context, s types.CycleSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.saved = append(m.saved, s)
	return int64(len(m.saved)), nil
}

func testPools() []types.PoolMetrics {
	base := func(id, cat string, apy, risk float64) types.PoolMetrics {
		return types.PoolMetrics{
			Protocol:    "ref-finance",
			PoolID:      id,
			APY:         apy,
			TVL:         2_000_000,
			RiskScore:   risk,
			AuditStatus: true,
			TokenPair:   id,
			ChainFactor: 0.95,
			Category:    cat,
		}
	}
	return []types.PoolMetrics{
		base("stake-near", types.BucketStaking, 9, 0.9),
		base("usdc-usdt", types.BucketStablePools, 8.5, 0.95),
		base("near-usdc", types.BucketNearPools, 14, 0.7),
		base("aurora-eth", types.BucketAuroraPools, 18, 0.65),
	}
}

type fixture struct {
	engine  *Engine
	paper   *executor.PaperExecutor
	catalog *catalog.Catalog
	tracker *performance.Tracker
	store   *memoryStore
	bus     *alerts.Bus
	score   float64
}

func newFixture(t *testing.T, pools []types.PoolMetrics) *fixture {
	t.Helper()
	f := &fixture{score: 90, store: &memoryStore{}, bus: alerts.NewBus(10)}

	f.catalog = catalog.New(f.bus)
	f.catalog.Refresh(pools)

	paper, err := executor.NewPaperExecutor(100_000, 6)
	require.NoError(t, err)
	f.paper = paper

	selector, err := strategy.NewSelector(strategy.DefaultSelectorConfig(
		types.Mix{{Bucket: types.BucketStablePools, Percent: 100}}, 15))
	require.NoError(t, err)

	f.tracker = performance.NewTracker(performance.TrackerConfig{})
	registry := strategy.NewRegistry(nil)
	_, err = registry.Create(context.Background(), types.Strategy{
		HighSentimentThreshold: 80,
		LowSentimentThreshold:  20,
		HighRiskPool:           "aurora-eth",
		LowRiskPool:            "usdc-usdt",
		IsActive:               true,
	})
	require.NoError(t, err)

	f.engine, err = New(Config{
		Sentiment:  sentimentFunc(func() float64 { return f.score }),
		Catalog:    f.catalog,
		Selector:   selector,
		Strategies: registry,
		Manager:    paper,
		Tracker:    f.tracker,
		Store:      f.store,
		Alerts:     f.bus,
		Policy:     config.NewPolicy(types.RiskTierModerate),
		Denom:      "usdc",
		Precision:  6,
	})
	require.NoError(t, err)
	return f
}

func holdingsByPool(t *testing.T, p *executor.PaperExecutor) map[string]float64 {
	t.Helper()
	holdings, err := p.Holdings(context.Background())
	require.NoError(t, err)
	out := make(map[string]float64, len(holdings))
	for _, h := range holdings {
		out[h.PoolID] = h.ValueUSD
	}
	return out
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sentiment source")
}

func TestRunCycleConvergesOnBullishMix(t *testing.T) {
	f := newFixture(t, testPools())
	ctx := context.Background()

	snap := f.engine.RunCycle(ctx)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, types.BandBullish, snap.Decision.Band)
	assert.Equal(t, 1, snap.CycleNumber)
	assert.Equal(t, int64(1), snap.SnapshotID)
	require.Len(t, snap.TargetAllocations, 3)
	assert.Len(t, snap.Receipts, 3)

	held := holdingsByPool(t, f.paper)
	assert.InDelta(t, 20_000, held["stake-near"], 0.01)
	assert.InDelta(t, 50_000, held["near-usdc"], 0.01)
	assert.InDelta(t, 30_000, held["aurora-eth"], 0.01)
	assert.InDelta(t, 100_000, snap.FinalValueUSD, 0.01)

	// the user strategy fires risk_on at 90
	require.Len(t, snap.StrategyActions, 1)
	assert.Equal(t, types.DirectionRiskOn, snap.StrategyActions[0].Direction)

	perf, ok := f.tracker.Get(PortfolioStrategyID)
	require.True(t, ok)
	assert.Equal(t, 1, perf.RebalanceCount)

	second := f.engine.RunCycle(ctx)
	assert.Empty(t, second.Deltas)
	assert.Empty(t, second.Receipts)
	assert.Equal(t, 2, second.CycleNumber)

	perf, _ = f.tracker.Get(PortfolioStrategyID)
	assert.Equal(t, 1, perf.RebalanceCount)
	assert.Len(t, perf.HistoricalValues, 2)
}

func TestRunCycleEmergencyExitsToDefensiveMix(t *testing.T) {
	f := newFixture(t, testPools())
	ctx := context.Background()
	f.engine.RunCycle(ctx)

	f.score = 10
	snap := f.engine.RunCycle(ctx)
	assert.True(t, snap.Decision.Emergency)
	assert.Equal(t, types.BandDefensive, snap.Decision.Band)

	// withdrawals are submitted before the deposit
	require.NotEmpty(t, snap.Receipts)
	assert.Equal(t, types.InstructionWithdraw, snap.Receipts[0].Instruction.Type)
	assert.Equal(t, types.InstructionDeposit, snap.Receipts[len(snap.Receipts)-1].Instruction.Type)

	held := holdingsByPool(t, f.paper)
	assert.InDelta(t, 100_000, held["usdc-usdt"], 0.01)
	for _, id := range []string{"stake-near", "near-usdc", "aurora-eth"} {
		assert.InDelta(t, 0, held[id], 0.01, id)
	}

	created, err := f.paper.EnsureProvisioned(ctx)
	require.NoError(t, err)
	assert.False(t, created, "proxy should already exist after the emergency cycle")
}

func withoutPools(pools []types.PoolMetrics, ids ...string) []types.PoolMetrics {
	out := make([]types.PoolMetrics, 0, len(pools))
	for _, p := range pools {
		if !slices.Contains(ids, p.PoolID) {
			out = append(out, p)
		}
	}
	return out
}

func TestRunCycleEmergencyWithoutStablePoolsStaysInSafeTier(t *testing.T) {
	f := newFixture(t, withoutPools(testPools(), "usdc-usdt"))
	ctx := context.Background()
	f.engine.RunCycle(ctx)

	f.score = 10
	snap := f.engine.RunCycle(ctx)
	require.True(t, snap.Decision.Emergency)

	// only stake-near passes the Low tier floor of 0.8 risk score
	require.Len(t, snap.TargetAllocations, 1)
	assert.Equal(t, "stake-near", snap.TargetAllocations[0].PoolID)

	held := holdingsByPool(t, f.paper)
	assert.InDelta(t, 100_000, held["stake-near"], 0.01)
	assert.InDelta(t, 0, held["near-usdc"], 0.01)
	assert.InDelta(t, 0, held["aurora-eth"], 0.01)
}

func TestRunCycleEmergencyWithoutSafePoolsHoldsPositions(t *testing.T) {
	f := newFixture(t, withoutPools(testPools(), "usdc-usdt", "stake-near"))
	ctx := context.Background()
	f.engine.RunCycle(ctx)
	before := holdingsByPool(t, f.paper)

	f.score = 10
	snap := f.engine.RunCycle(ctx)
	require.True(t, snap.Decision.Emergency)
	assert.Empty(t, snap.TargetAllocations)
	assert.Empty(t, snap.Receipts)
	assert.Equal(t, before, holdingsByPool(t, f.paper))
}

func TestRunCycleWithEmptyCatalogHoldsPositions(t *testing.T) {
	f := newFixture(t, nil)

	snap := f.engine.RunCycle(context.Background())
	assert.Empty(t, snap.TargetAllocations)
	assert.Empty(t, snap.Receipts)
	assert.InDelta(t, 100_000, f.paper.Cash(), 1e-9)
}

func TestRunCycleSkipsPerformanceWithoutValue(t *testing.T) {
	f := newFixture(t, testPools())
	empty, err := executor.NewPaperExecutor(0, 6)
	require.NoError(t, err)
	f.engine.manager = empty

	snap := f.engine.RunCycle(context.Background())
	require.Len(t, snap.StrategyActions, 1)
	assert.Zero(t, snap.FinalValueUSD)

	_, ok := f.tracker.Get(PortfolioStrategyID)
	assert.False(t, ok)
	_, ok = f.tracker.Get(snap.StrategyActions[0].StrategyID)
	assert.False(t, ok)
}

func TestRunCyclePublishesRebalanceNeeded(t *testing.T) {
	f := newFixture(t, testPools())
	sub := f.bus.Subscribe()
	defer sub.Unsubscribe()

	f.engine.RunCycle(context.Background())

	select {
	case ev := <-sub.C():
		assert.Equal(t, types.AlertRebalanceNeeded, ev.Alert.Kind())
	case <-time.After(time.Second):
		t.Fatal("expected a rebalance alert")
	}
}

func TestRunCycleFallsBackToLocalCycleNumber(t *testing.T) {
	f := newFixture(t, testPools())
	f.store.err = errors.New("db down")

	snap := f.engine.RunCycle(context.Background())
	assert.Equal(t, 1, snap.CycleNumber)
	assert.Zero(t, snap.SnapshotID)
	assert.Len(t, f.engine.Recent(10), 1)
}

func TestSetPolicyAppliesToNextCycle(t *testing.T) {
	f := newFixture(t, testPools())

	f.engine.SetPolicy(config.NewPolicy(types.RiskTierHigh))
	assert.Equal(t, types.RiskTierHigh, f.engine.Policy().RiskTier)

	// High admits only pools at or above 12% APY, so only near-usdc and aurora-eth remain.
	snap := f.engine.RunCycle(context.Background())
	assert.Equal(t, types.RiskTierHigh, snap.RiskTier)
	for _, a := range snap.TargetAllocations {
		assert.Contains(t, []string{"near-usdc", "aurora-eth"}, a.PoolID)
	}
}

func TestRecentIsNewestFirstAndBounded(t *testing.T) {
	f := newFixture(t, testPools())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.engine.RunCycle(ctx)
	}
	recent := f.engine.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].CycleNumber)
	assert.Equal(t, 2, recent[1].CycleNumber)
}

func TestRunLoopStopsOnCancel(t *testing.T) {
	f := newFixture(t, testPools())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.engine.RunLoop(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.engine.Recent(1)) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunLoop did not stop")
	}
}

type priceProbe struct {
	change float64
	err    error
}

func (p priceProbe) PriceChange24h(context.Context) (float64, error) { return p.change, p.err }

func TestLoopIntervalFollowsPriceVolatility(t *testing.T) {
	f := newFixture(t, testPools())
	f.engine.volatileInterval = time.Minute
	f.engine.volatilityThreshold = 0.05
	ctx := context.Background()

	assert.Equal(t, time.Hour, f.engine.loopInterval(ctx, time.Hour), "no probe")

	f.engine.volatility = priceProbe{change: 0.01}
	assert.Equal(t, time.Hour, f.engine.loopInterval(ctx, time.Hour))

	f.engine.volatility = priceProbe{change: -0.05}
	assert.Equal(t, time.Minute, f.engine.loopInterval(ctx, time.Hour))

	f.engine.volatility = priceProbe{err: errors.New("price feed down")}
	assert.Equal(t, time.Hour, f.engine.loopInterval(ctx, time.Hour))
}

func TestRunLoopUsesVolatileInterval(t *testing.T) {
	f := newFixture(t, testPools())
	f.engine.volatility = priceProbe{change: 0.12}
	f.engine.volatileInterval = 10 * time.Millisecond
	f.engine.volatilityThreshold = 0.05

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.engine.RunLoop(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.engine.Recent(10)) >= 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestNewValidatesVolatilityAndRiskAdjust(t *testing.T) {
	f := newFixture(t, testPools())
	base := Config{
		Sentiment: f.engine.sentiment,
		Catalog:   f.catalog,
		Selector:  f.engine.selector,
		Manager:   f.paper,
		Tracker:   f.tracker,
		Policy:    config.NewPolicy(types.RiskTierModerate),
		Denom:     "usdc",
	}

	cfg := base
	cfg.Volatility = priceProbe{}
	_, err := New(cfg)
	assert.ErrorContains(t, err, "volatile interval")

	cfg = base
	cfg.RiskAdjust = &RiskAdjustConfig{RaiseAboveAPY: 5, LowerBelowAPY: 12}
	_, err = New(cfg)
	assert.ErrorContains(t, err, "lower APY")

	cfg.RiskAdjust = &RiskAdjustConfig{RaiseAboveAPY: 12, LowerBelowAPY: 5}
	e, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, e.riskAdjust.MinHistory)
}

// recorderFunc returns a crafted performance record for the portfolio series.
type recorderFunc func(id string) types.StrategyPerformance

func (f recorderFunc) Record(_ context.Context, id string, _, _ float64, _ *string) types.StrategyPerformance {
	return f(id)
}

func performanceWithAPY(apy float64, span time.Duration) recorderFunc {
	now := time.Now().UTC()
	return func(id string) types.StrategyPerformance {
		return types.StrategyPerformance{
			StrategyID:       id,
			APY:              apy,
			LastUpdate:       now,
			HistoricalValues: []types.TimeSeriesPoint{{Timestamp: now.Add(-span)}, {Timestamp: now}},
		}
	}
}

func TestRunCycleAdjustsRiskTierFromRealizedAPY(t *testing.T) {
	tests := []struct {
		name string
		from types.RiskTier
		apy  float64
		span time.Duration
		want types.RiskTier
	}{
		{"strong returns raise the tier", types.RiskTierModerate, 15, 48 * time.Hour, types.RiskTierHigh},
		{"weak returns lower the tier", types.RiskTierModerate, 3, 48 * time.Hour, types.RiskTierLow},
		{"middle band holds", types.RiskTierModerate, 8, 48 * time.Hour, types.RiskTierModerate},
		{"short history holds", types.RiskTierModerate, 15, time.Hour, types.RiskTierModerate},
		{"high is the ceiling", types.RiskTierHigh, 30, 48 * time.Hour, types.RiskTierHigh},
		{"low is the floor", types.RiskTierLow, 1, 48 * time.Hour, types.RiskTierLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testPools())
			f.engine.SetPolicy(config.NewPolicy(tt.from).WithPreferredAssets([]string{"NEAR"}))
			f.engine.tracker = performanceWithAPY(tt.apy, tt.span)
			f.engine.riskAdjust = &RiskAdjustConfig{RaiseAboveAPY: 12, LowerBelowAPY: 5, MinHistory: 24 * time.Hour}

			snap := f.engine.RunCycle(context.Background())
			assert.Equal(t, tt.from, snap.RiskTier)
			assert.Equal(t, tt.want, f.engine.Policy().RiskTier)
			assert.Equal(t, []string{"NEAR"}, f.engine.Policy().PreferredAssets)
		})
	}
}
