/*

This file contains the default decision parameters: sentiment weights, band mixes,
monitoring thresholds and performance benchmarks.

*/

package config

import (
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// Sentiment source weights for the composite blend. They sum to 1.0.
const (
	SocialWeight  = 0.4
	NewsWeight    = 0.3
	OnchainWeight = 0.3
)

const (
	DefaultMonitorInterval = 300 * time.Second
	// Composite scores below this raise ThresholdBreached.
	DefaultSentimentThreshold = 30.0
	// Relative move, in percent, that raises SignificantChange.
	DefaultSignificantChangePct = 10.0
	// Scores at or below this force the defensive mix.
	DefaultEmergencyThreshold = 15
	DefaultMinSocialSamples   = 100
	// Pre-aggregated readings below this confidence are rejected.
	DefaultMinConfidence = 0.6

	DefaultMarketBenchmarkAPY = 5.0
	DefaultRiskFreeRate       = 0.02
	// Estimated gas saved per batched rebalance, in native units.
	GasSavedPerRebalance = 0.001

	// The loop runs at DefaultVolatileInterval while the reference asset moved
	// at least this fraction over 24h.
	DefaultPriceVolatilityThreshold = 0.05
	DefaultVolatileInterval         = 300 * time.Second

	// Realized portfolio APY, in percent, that steps the risk tier up or down.
	DefaultRiskRaiseAPY = 12.0
	DefaultRiskLowerAPY = 5.0
)

// Score bands, inclusive on both ends.
const (
	BearishBandMax = 25
	BullishBandMin = 75
)

var DefaultPreferredAssets = []string{"NEAR", "ETH", "USDC"}

// DefaultDefensiveMix is the emergency reallocation: half staking, half stable pools.
const DefaultDefensiveMix = "staking:50,stable_pools:50"

var (
	BearishMix = types.Mix{
		{Bucket: types.BucketStaking, Percent: 50},
		{Bucket: types.BucketStablePools, Percent: 50},
	}
	NeutralMix = types.Mix{
		{Bucket: types.BucketStaking, Percent: 30},
		{Bucket: types.BucketStablePools, Percent: 40},
		{Bucket: types.BucketNearPools, Percent: 30},
	}
	BullishMix = types.Mix{
		{Bucket: types.BucketStaking, Percent: 20},
		{Bucket: types.BucketNearPools, Percent: 50},
		{Bucket: types.BucketAuroraPools, Percent: 30},
	}
)
