/*

This file contains the risk tier table. A Policy is derived from its tier and never mutated;
only the preferred asset list may be overridden, which produces a new Policy.

*/

package config

import (
	"github.com/elys-network/yieldbalancer/internal/types"
)

// RebalanceThreshold is the percent drift that triggers action, for every tier.
const RebalanceThreshold = 2.0

type tierParameters struct {
	minAPY         float64
	minTVL         int64
	maxAllocation  float64
	riskScoreFloor float64
	baseAllocation float64
}

var tierTable = map[types.RiskTier]tierParameters{
	types.RiskTierLow: {
		minAPY:         5.0,
		minTVL:         1_000_000,
		maxAllocation:  0.3,
		riskScoreFloor: 0.8,
		baseAllocation: 0.2,
	},
	types.RiskTierModerate: {
		minAPY:         8.0,
		minTVL:         500_000,
		maxAllocation:  0.4,
		riskScoreFloor: 0.6,
		baseAllocation: 0.3,
	},
	types.RiskTierHigh: {
		minAPY:         12.0,
		minTVL:         250_000,
		maxAllocation:  0.5,
		riskScoreFloor: 0.4,
		baseAllocation: 0.4,
	},
}

// NewPolicy builds the policy for a tier. Unknown tiers fall back to Moderate.
func NewPolicy(tier types.RiskTier) types.Policy {
	params, ok := tierTable[tier]
	if !ok {
		tier = types.RiskTierModerate
		params = tierTable[tier]
	}
	return types.Policy{
		RiskTier:             tier,
		MinAPY:               params.minAPY,
		MinTVL:               params.minTVL,
		PreferredAssets:      append([]string(nil), DefaultPreferredAssets...),
		RebalanceThreshold:   RebalanceThreshold,
		MaxAllocationPerPool: params.maxAllocation,
		RiskScoreFloor:       params.riskScoreFloor,
		BaseAllocation:       params.baseAllocation,
	}
}
