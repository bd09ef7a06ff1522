/*

This file contains the allocation algorithm: admitted pools are ranked by
apy * risk_score * chain_factor, assigned a greedy share starting from the tier base,
and then normalized so that a non-empty result sums to exactly 1.0.

The greedy pass and the normalization pass are kept separate.

*/

package analyzer

import (
	"sort"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"
)

// allocationEpsilon absorbs float error when testing for a full or empty share.
const allocationEpsilon = 1e-9

type rankedPool struct {
	pool  types.PoolMetrics
	score float64
}

// Optimize returns the normalized target allocation for the admitted subset of pools.
// An empty result means no pool was admitted and is not an error.
func Optimize(pools []types.PoolMetrics, policy types.Policy) []types.PortfolioAllocation {
	log := logger.GetForComponent("allocation_engine")

	ranked := rankAdmitted(pools, policy)
	if len(ranked) == 0 {
		log.Info().Int("candidates", len(pools)).Str("tier", policy.RiskTier.String()).Msg("No pools admitted; empty allocation")
		return []types.PortfolioAllocation{}
	}

	raw := greedyAllocate(ranked, policy)
	out := normalize(raw)

	log.Debug().
		Int("candidates", len(pools)).
		Int("admitted", len(ranked)).
		Int("allocated", len(out)).
		Msg("Allocation computed")
	return out
}

// rankAdmitted filters by policy and sorts by score descending. Ties keep input order.
func rankAdmitted(pools []types.PoolMetrics, policy types.Policy) []rankedPool {
	log := logger.GetForComponent("allocation_engine")

	ranked := make([]rankedPool, 0, len(pools))
	for _, p := range pools {
		if err := ValidatePoolData(p); err != nil {
			log.Warn().Err(err).Str("poolID", p.PoolID).Msg("Dropping malformed pool")
			continue
		}
		if !policy.Admit(p) {
			continue
		}
		ranked = append(ranked, rankedPool{pool: p, score: p.Score()})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked
}

// greedyAllocate is the raw pass: each pool gets min(base, remaining, max) until 1.0 is reached.
func greedyAllocate(ranked []rankedPool, policy types.Policy) []types.PortfolioAllocation {
	raw := make([]types.PortfolioAllocation, 0, len(ranked))
	cumulative := 0.0

	for _, rp := range ranked {
		remaining := 1.0 - cumulative
		if remaining <= allocationEpsilon {
			break
		}
		share := min(policy.BaseAllocation, remaining, policy.MaxAllocationPerPool)
		if share <= allocationEpsilon {
			continue
		}
		cumulative += share
		raw = append(raw, types.PortfolioAllocation{
			PoolID:               rp.pool.PoolID,
			Protocol:             rp.pool.Protocol,
			AllocationPercentage: share,
			ExpectedAPY:          rp.pool.APY,
			RiskScore:            rp.pool.RiskScore,
		})
	}
	return raw
}

// normalize divides every share by the raw total so the set sums to 1.0.
func normalize(raw []types.PortfolioAllocation) []types.PortfolioAllocation {
	var total float64
	for _, a := range raw {
		total += a.AllocationPercentage
	}
	if len(raw) == 0 || total <= allocationEpsilon {
		return []types.PortfolioAllocation{}
	}

	out := make([]types.PortfolioAllocation, len(raw))
	for i, a := range raw {
		a.AllocationPercentage /= total
		out[i] = a
	}
	return out
}
