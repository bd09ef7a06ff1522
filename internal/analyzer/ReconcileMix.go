/*

This file maps a risk-band mix onto concrete pools. Each bucket of the mix is optimized
independently over the pools of that category and scaled by the bucket's percent;
buckets with no admitted pool give up their share through the final normalization.

*/

package analyzer

import (
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ReconcileMix returns a normalized allocation honoring the mix's bucket weights.
// When no bucket matches an admitted pool it falls back to Optimize over all pools.
func ReconcileMix(pools []types.PoolMetrics, policy types.Policy, mix types.Mix) []types.PortfolioAllocation {
	combined := reconcileBuckets(pools, policy, mix)
	if len(combined) == 0 {
		log := logger.GetForComponent("allocation_engine")
		log.Info().
			Int("buckets", len(mix)).
			Msg("Mix matched no admitted pools; allocating across the whole catalog")
		return Optimize(pools, policy)
	}
	return normalize(combined)
}

// ReconcileDefensiveMix is ReconcileMix for the emergency override. When the mix
// matches nothing, only pools admitted by the safe policy are considered; an
// empty result means current positions are held.
func ReconcileDefensiveMix(pools []types.PoolMetrics, policy, safe types.Policy, mix types.Mix) []types.PortfolioAllocation {
	combined := reconcileBuckets(pools, policy, mix)
	if len(combined) == 0 {
		log := logger.GetForComponent("allocation_engine")
		log.Warn().
			Int("buckets", len(mix)).
			Str("safeTier", safe.RiskTier.String()).
			Msg("Defensive mix matched no admitted pools; restricting to the safe tier")
		return Optimize(pools, safe)
	}
	return normalize(combined)
}

// reconcileBuckets optimizes each bucket over its category and scales it by the
// bucket percent. The result is not normalized.
func reconcileBuckets(pools []types.PoolMetrics, policy types.Policy, mix types.Mix) []types.PortfolioAllocation {
	if len(mix) == 0 || mix.Total() <= 0 {
		return nil
	}
	log := logger.GetForComponent("allocation_engine")

	byCategory := make(map[string][]types.PoolMetrics)
	for _, p := range pools {
		byCategory[p.Category] = append(byCategory[p.Category], p)
	}

	var combined []types.PortfolioAllocation
	position := make(map[string]int)
	for _, entry := range mix {
		if entry.Percent <= 0 {
			continue
		}
		bucketAllocs := Optimize(byCategory[entry.Bucket], policy)
		if len(bucketAllocs) == 0 {
			log.Debug().Str("bucket", entry.Bucket).Msg("No admitted pools for bucket")
			continue
		}

		share := decimal.NewFromFloat(entry.Percent).Div(hundred)
		for _, a := range bucketAllocs {
			scaled := share.Mul(decimal.NewFromFloat(a.AllocationPercentage)).InexactFloat64()
			if i, seen := position[a.PoolID]; seen {
				combined[i].AllocationPercentage += scaled
				continue
			}
			a.AllocationPercentage = scaled
			position[a.PoolID] = len(combined)
			combined = append(combined, a)
		}
	}
	return combined
}
