package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMix(t *testing.T) {
	mix, err := ParseMix("staking:50, stable_pools:50")
	require.NoError(t, err)
	assert.Equal(t, Mix{{Bucket: "staking", Percent: 50}, {Bucket: "stable_pools", Percent: 50}}, mix)
	assert.Equal(t, 100.0, mix.Total())

	for _, bad := range []string{"", "staking", "staking:x", "staking:-1", "staking:NaN", "stable_pools:+Inf"} {
		_, err := ParseMix(bad)
		assert.ErrorIs(t, err, ErrInvalidMix, bad)
	}
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, TrendBearish, TrendOf(39.9))
	assert.Equal(t, TrendNeutral, TrendOf(40))
	assert.Equal(t, TrendNeutral, TrendOf(60))
	assert.Equal(t, TrendBullish, TrendOf(60.1))
}

func TestParseRiskTier(t *testing.T) {
	tier, err := ParseRiskTier(" Moderate ")
	require.NoError(t, err)
	assert.Equal(t, RiskTierModerate, tier)

	_, err = ParseRiskTier("extreme")
	assert.ErrorIs(t, err, ErrUnknownRiskTier)
}
