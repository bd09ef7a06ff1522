package engine

import (
	"context"
	"math"
	"time"

	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// loopInterval picks the volatile interval while the reference price moves fast.
// A failed probe keeps the base interval.
func (e *Engine) loopInterval(ctx context.Context, base time.Duration) time.Duration {
	if e.volatility == nil {
		return base
	}
	change, err := e.volatility.PriceChange24h(ctx)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Price volatility check failed; using base interval")
		return base
	}
	if math.Abs(change) >= e.volatilityThreshold {
		return e.volatileInterval
	}
	return base
}

// adjustRiskTier moves the policy one tier toward the portfolio's realized APY.
// The new policy takes effect on the next cycle.
func (e *Engine) adjustRiskTier(log zerolog.Logger, perf types.StrategyPerformance) {
	if e.riskAdjust == nil || len(perf.HistoricalValues) == 0 {
		return
	}
	if perf.LastUpdate.Sub(perf.HistoricalValues[0].Timestamp) < e.riskAdjust.MinHistory {
		return
	}

	policy := e.Policy()
	next := policy.RiskTier
	switch {
	case perf.APY > e.riskAdjust.RaiseAboveAPY && next < types.RiskTierHigh:
		next++
	case perf.APY < e.riskAdjust.LowerBelowAPY && next > types.RiskTierLow:
		next--
	default:
		return
	}

	e.SetPolicy(config.NewPolicy(next).WithPreferredAssets(policy.PreferredAssets))
	metrics.RiskTierAdjustments.WithLabelValues(next.String()).Inc()
	log.Warn().
		Float64("apy", perf.APY).
		Str("from", policy.RiskTier.String()).
		Str("to", next.String()).
		Msg("Step 7: Risk tier adjusted from realized performance.")
}
