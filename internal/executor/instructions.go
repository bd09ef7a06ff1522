package executor

import (
	"fmt"
	"math"
	"sort"

	"github.com/elys-network/yieldbalancer/internal/types"
	"github.com/elys-network/yieldbalancer/internal/utils"

	"github.com/shopspring/decimal"
)

// BuildInstructions converts fractional deltas into sized instructions. Withdrawals
// come first so that freed capital is available for the deposits that follow.
func BuildInstructions(deltas []types.RebalanceDelta, portfolioValue float64, denom string, precision int, reason string) ([]types.Instruction, error) {
	if portfolioValue < 0 || math.IsNaN(portfolioValue) || math.IsInf(portfolioValue, 0) {
		return nil, fmt.Errorf("invalid portfolio value %f", portfolioValue)
	}
	if denom == "" {
		return nil, fmt.Errorf("denom cannot be empty")
	}

	value := decimal.NewFromFloat(portfolioValue)
	out := make([]types.Instruction, 0, len(deltas))
	for _, d := range deltas {
		if d.Delta == 0 || math.IsNaN(d.Delta) {
			continue
		}
		fraction := decimal.NewFromFloat(d.Delta).Abs()
		usd, _ := fraction.Mul(value).Float64()

		amount, err := utils.ToBaseUnits(usd, precision)
		if err != nil {
			return nil, fmt.Errorf("pool %s: %w", d.PoolID, err)
		}
		if amount.IsZero() {
			continue
		}

		kind := types.InstructionDeposit
		if d.Delta < 0 {
			kind = types.InstructionWithdraw
		}
		f, _ := fraction.Float64()
		out = append(out, types.Instruction{
			Type:     kind,
			PoolID:   d.PoolID,
			Fraction: f,
			Amount:   amount,
			Denom:    denom,
			Reason:   reason,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == types.InstructionWithdraw && out[j].Type != types.InstructionWithdraw
	})
	return out, nil
}

// CurrentAllocations expresses holdings as portfolio fractions of total.
func CurrentAllocations(holdings []types.Holding, total float64) []types.PortfolioAllocation {
	allocs := make([]types.PortfolioAllocation, 0, len(holdings))
	if total <= 0 {
		return allocs
	}
	for _, h := range holdings {
		if h.ValueUSD <= 0 {
			continue
		}
		allocs = append(allocs, types.PortfolioAllocation{
			PoolID:               h.PoolID,
			Protocol:             h.Protocol,
			AllocationPercentage: h.ValueUSD / total,
		})
	}
	return allocs
}
