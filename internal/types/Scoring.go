/*

This file contains the types produced by the allocation engine.

*/

package types

// PortfolioAllocation is one entry of a target allocation set. Never mutated after creation.
type PortfolioAllocation struct {
	PoolID               string  `json:"pool_id"`
	Protocol             string  `json:"protocol"`
	AllocationPercentage float64 `json:"allocation_percentage"` // fraction; a set sums to 1.0
	ExpectedAPY          float64 `json:"expected_apy"`
	RiskScore            float64 `json:"risk_score"`
}

// PortfolioStats are weighted sums over an allocation set.
type PortfolioStats struct {
	ExpectedAPY float64 `json:"expected_apy"`
	RiskScore   float64 `json:"risk_score"`
	NumPools    int     `json:"num_pools"`
}

// RebalanceDelta is the signed drift for one pool (target minus current, as a fraction).
type RebalanceDelta struct {
	PoolID string  `json:"pool_id"`
	Delta  float64 `json:"delta"`
}
