package strategy

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defensive = types.Mix{{Bucket: types.BucketStablePools, Percent: 100}}

func newSelector(t *testing.T) *Selector {
	t.Helper()
	s, err := NewSelector(DefaultSelectorConfig(defensive, config.DefaultEmergencyThreshold))
	require.NoError(t, err)
	return s
}

func TestSelectBullish(t *testing.T) {
	d := newSelector(t).Select(90)
	assert.Equal(t, types.BandBullish, d.Band)
	assert.Equal(t, config.BullishMix, d.Mix)
	assert.False(t, d.Emergency)
	assert.False(t, d.ProvisionSafetyProxy)
	assert.Equal(t, 90, d.Score)
}

func TestSelectEmergencyOverridesBand(t *testing.T) {
	d := newSelector(t).Select(10)
	assert.Equal(t, types.BandDefensive, d.Band)
	assert.Equal(t, defensive, d.Mix)
	assert.True(t, d.Emergency)
	assert.True(t, d.ProvisionSafetyProxy)
}

func TestSelectBandEdges(t *testing.T) {
	s := newSelector(t)
	cases := []struct {
		score float64
		band  types.Band
	}{
		{15, types.BandDefensive},
		{16, types.BandBearish},
		{25, types.BandBearish},
		{25.9, types.BandBearish},
		{26, types.BandNeutral},
		{74, types.BandNeutral},
		{74.99, types.BandNeutral},
		{75, types.BandBullish},
		{100, types.BandBullish},
		{250, types.BandBullish},
		{-5, types.BandDefensive},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.band, s.Select(tc.score).Band, "score %v", tc.score)
	}
}

func TestSelectZeroThresholdDisablesEmergencyAboveZero(t *testing.T) {
	s, err := NewSelector(DefaultSelectorConfig(defensive, 0))
	require.NoError(t, err)
	assert.Equal(t, types.BandBearish, s.Select(1).Band)
	assert.True(t, s.Select(0).Emergency)
}

func TestNormalizeScore(t *testing.T) {
	assert.Equal(t, 0, NormalizeScore(math.NaN()))
	assert.Equal(t, 0, NormalizeScore(-1))
	assert.Equal(t, 100, NormalizeScore(math.Inf(1)))
	assert.Equal(t, 42, NormalizeScore(42.99))
}

func TestNewSelectorRejectsEmptyMix(t *testing.T) {
	cfg := DefaultSelectorConfig(nil, 15)
	_, err := NewSelector(cfg)
	assert.Error(t, err)
}

type memoryPersister struct {
	saved []types.Strategy
	err   error
}

func (m *memoryPersister) SaveStrategy(_ context.Context, s types.Strategy) error {
	m.saved = append(m.saved, s)
	return m.err
}

func (m *memoryPersister) LoadStrategies(context.Context) ([]types.Strategy, error) {
	return m.saved, m.err
}

func validStrategy() types.Strategy {
	return types.Strategy{
		HighSentimentThreshold: 70,
		LowSentimentThreshold:  30,
		HighRiskPool:           "near-aurora",
		LowRiskPool:            "usdc-usdt",
		IsActive:               true,
	}
}

func TestRegistryCreateAssignsID(t *testing.T) {
	p := &memoryPersister{}
	r := NewRegistry(p)

	s, err := r.Create(context.Background(), validStrategy())
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.False(t, s.CreatedAt.IsZero())
	assert.Len(t, p.saved, 1)

	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry(nil)
	s := validStrategy()
	s.ID = "fixed"

	_, err := r.Create(context.Background(), s)
	require.NoError(t, err)
	_, err = r.Create(context.Background(), s)
	assert.ErrorIs(t, err, ErrDuplicateStrategy)
	assert.Len(t, r.List(), 1)
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry(nil)

	inverted := validStrategy()
	inverted.LowSentimentThreshold, inverted.HighSentimentThreshold = 70, 30
	noPool := validStrategy()
	noPool.LowRiskPool = ""
	outOfRange := validStrategy()
	outOfRange.HighSentimentThreshold = 101

	for _, s := range []types.Strategy{inverted, noPool, outOfRange} {
		_, err := r.Create(context.Background(), s)
		assert.ErrorIs(t, err, ErrInvalidStrategy)
	}
	assert.Empty(t, r.List())
}

func TestRegistryEvaluate(t *testing.T) {
	r := NewRegistry(nil)
	active, err := r.Create(context.Background(), validStrategy())
	require.NoError(t, err)
	inactive := validStrategy()
	inactive.IsActive = false
	_, err = r.Create(context.Background(), inactive)
	require.NoError(t, err)

	on := r.Evaluate(70)
	require.Len(t, on, 1)
	assert.Equal(t, active.ID, on[0].StrategyID)
	assert.Equal(t, "near-aurora", on[0].TargetPool)
	assert.Equal(t, types.DirectionRiskOn, on[0].Direction)

	off := r.Evaluate(30)
	require.Len(t, off, 1)
	assert.Equal(t, "usdc-usdt", off[0].TargetPool)
	assert.Equal(t, types.DirectionRiskOff, off[0].Direction)

	assert.Empty(t, r.Evaluate(50))
}

func TestRegistryRestore(t *testing.T) {
	s := validStrategy()
	s.ID = "persisted"
	p := &memoryPersister{saved: []types.Strategy{s, s}}

	r := NewRegistry(p)
	require.NoError(t, r.Restore(context.Background()))
	assert.Len(t, r.List(), 1)

	failing := NewRegistry(&memoryPersister{err: errors.New("db down")})
	assert.Error(t, failing.Restore(context.Background()))
}
