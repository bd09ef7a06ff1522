package analyzer

import "github.com/elys-network/yieldbalancer/internal/types"

// PortfolioStats returns allocation-weighted sums of APY and risk score.
func PortfolioStats(allocations []types.PortfolioAllocation) types.PortfolioStats {
	stats := types.PortfolioStats{NumPools: len(allocations)}
	for _, a := range allocations {
		stats.ExpectedAPY += a.AllocationPercentage * a.ExpectedAPY
		stats.RiskScore += a.AllocationPercentage * a.RiskScore
	}
	return stats
}
