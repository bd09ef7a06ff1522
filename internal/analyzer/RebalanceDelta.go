package analyzer

import (
	"fmt"
	"math"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/types"
)

// RebalanceDelta reports target minus current for every target pool whose drift
// exceeds the policy threshold. A single RebalanceNeeded alert summarizes a non-empty result.
func RebalanceDelta(current, target []types.PortfolioAllocation, policy types.Policy, publisher alerts.Publisher) []types.RebalanceDelta {
	held := allocationIndex(current)
	threshold := policy.RebalanceFraction()

	deltas := make([]types.RebalanceDelta, 0)
	for _, t := range target {
		d := t.AllocationPercentage - held[t.PoolID]
		if math.Abs(d) > threshold {
			deltas = append(deltas, types.RebalanceDelta{PoolID: t.PoolID, Delta: d})
		}
	}

	if len(deltas) > 0 && publisher != nil {
		publisher.Publish(types.RebalanceNeeded{
			Reason: fmt.Sprintf("Portfolio drift detected: %d trades required", len(deltas)),
			Trades: len(deltas),
		})
	}
	return deltas
}

// ExitDeltas lists pools held in current but absent from target, as full exits,
// when the holding exceeds the policy threshold.
func ExitDeltas(current, target []types.PortfolioAllocation, policy types.Policy) []types.RebalanceDelta {
	wanted := allocationIndex(target)
	threshold := policy.RebalanceFraction()

	exits := make([]types.RebalanceDelta, 0)
	for _, c := range current {
		if _, ok := wanted[c.PoolID]; ok {
			continue
		}
		if c.AllocationPercentage > threshold {
			exits = append(exits, types.RebalanceDelta{PoolID: c.PoolID, Delta: -c.AllocationPercentage})
		}
	}
	return exits
}

func allocationIndex(allocs []types.PortfolioAllocation) map[string]float64 {
	idx := make(map[string]float64, len(allocs))
	for _, a := range allocs {
		idx[a.PoolID] += a.AllocationPercentage
	}
	return idx
}
