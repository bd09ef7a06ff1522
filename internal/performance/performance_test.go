package performance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTracker(t *testing.T, bench Benchmark) (*Tracker, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	tr := NewTracker(TrackerConfig{Benchmark: bench, RiskFreeRate: 0.02})
	tr.now = clock.now
	return tr, clock
}

func action(s string) *string { return &s }

func points(values ...float64) []types.TimeSeriesPoint {
	out := make([]types.TimeSeriesPoint, len(values))
	for i, v := range values {
		out[i] = types.TimeSeriesPoint{Value: v}
	}
	return out
}

func TestAPYZeroOnSameDay(t *testing.T) {
	tr, clock := newTracker(t, nil)
	tr.Record(context.Background(), "s1", 100, 50, nil)
	clock.t = clock.t.Add(23 * time.Hour)
	perf := tr.Record(context.Background(), "s1", 150, 50, nil)

	assert.Equal(t, 0.0, perf.APY)
	assert.Equal(t, 100.0, perf.InitialValue)
	assert.Equal(t, 150.0, perf.CurrentValue)
}

func TestAPYAnnualizesOverWholeDays(t *testing.T) {
	tr, clock := newTracker(t, nil)
	tr.Record(context.Background(), "s1", 100, 50, nil)
	clock.t = clock.t.Add(365 * 24 * time.Hour)
	perf := tr.Record(context.Background(), "s1", 110, 50, nil)

	assert.InDelta(t, 10.0, perf.APY, 1e-6)
}

func TestAnnualizedAPYGuards(t *testing.T) {
	assert.Equal(t, 0.0, AnnualizedAPY(0, 100, 48*time.Hour))
	assert.Equal(t, 0.0, AnnualizedAPY(-1, 100, 48*time.Hour))
	assert.Equal(t, 0.0, AnnualizedAPY(100, -50, 48*time.Hour))
}

func TestRecordCountsRebalances(t *testing.T) {
	tr, _ := newTracker(t, nil)
	ctx := context.Background()
	tr.Record(ctx, "s1", 100, 50, nil)
	tr.Record(ctx, "s1", 101, 55, action("risk_on"))
	perf := tr.Record(ctx, "s1", 102, 60, action("risk_off"))

	assert.Equal(t, 2, perf.RebalanceCount)
	assert.Len(t, perf.HistoricalValues, 3)

	// returned snapshots are independent of later writes
	tr.Record(ctx, "s1", 103, 60, nil)
	assert.Len(t, perf.HistoricalValues, 3)
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(points(100), 0.02))
	assert.Equal(t, 0.0, SharpeRatio(points(100, 100, 100), 0.02), "zero deviation")
	assert.InDelta(t, -0.2, SharpeRatio(points(100, 110, 99), 0.02), epsilon)
	// the pair starting at zero is skipped
	assert.Equal(t, 0.0, SharpeRatio(points(0, 100), 0.02))
}

func TestWinRateAndAvgGain(t *testing.T) {
	series := []types.TimeSeriesPoint{
		{Value: 100},
		{Value: 110, Action: action("risk_on")},
		{Value: 105},
		{Value: 100, Action: action("risk_off")},
	}
	assert.InDelta(t, 50.0, WinRate(series), epsilon)
	assert.InDelta(t, (0.1-5.0/105.0)/2*100, AvgRebalanceGain(series), epsilon)

	assert.Equal(t, 0.0, WinRate(points(100, 120)))
	assert.Equal(t, 0.0, AvgRebalanceGain(points(100, 120)))
}

type failingBenchmark struct{}

func (failingBenchmark) MarketAPY(context.Context) (float64, error) {
	return 0, errors.New("benchmark down")
}

func TestReport(t *testing.T) {
	tr, clock := newTracker(t, StaticBenchmark(4))
	ctx := context.Background()
	tr.Record(ctx, "s1", 100, 50, nil)
	clock.t = clock.t.Add(365 * 24 * time.Hour)
	tr.Record(ctx, "s1", 110, 80, action("risk_on"))

	r, err := tr.Report(ctx, "s1")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, r.APY, 1e-6)
	assert.InDelta(t, 6.0, r.Alpha, 1e-6)
	assert.Equal(t, 4.0, r.MarketAPY)
	assert.InDelta(t, 10.0, r.TotalReturn, epsilon)
	assert.Equal(t, 100.0, r.WinRate)
	assert.InDelta(t, 0.001, r.GasSaved, epsilon)
	assert.Equal(t, 2, r.Points)

	_, err = tr.Report(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestReportFallsBackToDefaultBenchmark(t *testing.T) {
	tr, _ := newTracker(t, failingBenchmark{})
	tr.Record(context.Background(), "s1", 100, 50, nil)

	r, err := tr.Report(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, r.MarketAPY)
	assert.Equal(t, -5.0, r.Alpha)
}

type recordingSaver struct{ ids []string }

func (s *recordingSaver) SavePerformancePoint(_ context.Context, id string, _ types.TimeSeriesPoint) error {
	s.ids = append(s.ids, id)
	return nil
}

func TestRecordPersistsPoints(t *testing.T) {
	saver := &recordingSaver{}
	tr := NewTracker(TrackerConfig{Saver: saver})
	tr.Record(context.Background(), "b", 1, 50, nil)
	tr.Record(context.Background(), "a", 1, 50, nil)

	assert.Equal(t, []string{"b", "a"}, saver.ids)
	assert.Equal(t, []string{"a", "b"}, tr.IDs())
}

func TestSeedRestoresHistory(t *testing.T) {
	tr, clock := newTracker(t, nil)
	start := clock.t.Add(-730 * 24 * time.Hour)
	tr.Seed("s1", []types.TimeSeriesPoint{
		{Timestamp: start, Value: 100},
		{Timestamp: clock.t, Value: 121, Action: action("risk_on")},
	})

	perf, ok := tr.Get("s1")
	require.True(t, ok)
	assert.Equal(t, 1, perf.RebalanceCount)
	assert.InDelta(t, 10.0, perf.APY, 1e-6)

	perf = tr.Record(context.Background(), "s1", 121, 50, nil)
	assert.Equal(t, 100.0, perf.InitialValue)
	assert.Len(t, perf.HistoricalValues, 3)
}
