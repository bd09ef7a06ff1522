package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/elys-network/yieldbalancer/internal/analyzer"
	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/executor"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunCycle executes one decision tick and returns its snapshot. Failures in a
// step are recorded on the snapshot; the cycle continues with what it has.
func (e *Engine) RunCycle(ctx context.Context) types.CycleSnapshot {
	cycleStart := time.Now()
	cycleLogger := e.logger.With().Str("cycle_id", uuid.New().String()).Logger()
	cycleLogger.Info().Msg("--- Starting Cycle ---")

	policy := e.Policy()
	snap := types.CycleSnapshot{
		Timestamp: cycleStart.UTC(),
		RiskTier:  policy.RiskTier,
	}
	fail := func(step string, err error) {
		cycleLogger.Error().Err(err).Msg(step + " failed")
		snap.Errors = append(snap.Errors, fmt.Sprintf("%s: %v", step, err))
	}

	// --- Step 1: Sentiment ---
	cycleLogger.Info().Msg("Step 1: Refreshing sentiment...")
	snap.Sentiment = e.sentiment.Refresh(ctx)
	metrics.SentimentScore.Set(snap.Sentiment.CompositeScore)
	metrics.SentimentConfidence.Set(snap.Sentiment.Confidence)
	cycleLogger.Info().
		Float64("score", snap.Sentiment.CompositeScore).
		Float64("confidence", snap.Sentiment.Confidence).
		Strs("sources", snap.Sentiment.Sources).
		Msg("Step 1: Sentiment refreshed.")

	// --- Step 2: Band selection ---
	snap.Decision = e.selector.Select(snap.Sentiment.CompositeScore)
	cycleLogger.Info().
		Int("score", snap.Decision.Score).
		Str("band", string(snap.Decision.Band)).
		Bool("emergency", snap.Decision.Emergency).
		Msg("Step 2: Strategy band selected.")
	if snap.Decision.ProvisionSafetyProxy {
		created, err := e.manager.EnsureProvisioned(ctx)
		if err != nil {
			fail("safety proxy provisioning", err)
		} else if created {
			cycleLogger.Warn().Msg("Safety proxy provisioned for emergency exit")
		}
	}

	// --- Step 3: Allocation ---
	pools := e.catalog.Snapshot()
	if snap.Decision.Emergency {
		safe := config.NewPolicy(types.RiskTierLow).WithPreferredAssets(policy.PreferredAssets)
		snap.TargetAllocations = analyzer.ReconcileDefensiveMix(pools, policy, safe, snap.Decision.Mix)
	} else {
		snap.TargetAllocations = analyzer.ReconcileMix(pools, policy, snap.Decision.Mix)
	}
	snap.Stats = analyzer.PortfolioStats(snap.TargetAllocations)
	metrics.TargetPools.Set(float64(snap.Stats.NumPools))
	metrics.ExpectedAPY.Set(snap.Stats.ExpectedAPY)
	cycleLogger.Info().
		Int("catalog", len(pools)).
		Int("targetPools", snap.Stats.NumPools).
		Float64("expectedAPY", snap.Stats.ExpectedAPY).
		Float64("riskScore", snap.Stats.RiskScore).
		Msg("Step 3: Target allocation computed.")

	// --- Step 4: Current state ---
	holdings, holdingsErr := e.manager.Holdings(ctx)
	if holdingsErr != nil {
		fail("holdings", holdingsErr)
	}
	initialValue, err := e.manager.TotalValue(ctx)
	if err != nil {
		fail("total value", err)
	}
	snap.InitialValueUSD = initialValue
	current := executor.CurrentAllocations(holdings, snap.InitialValueUSD)
	cycleLogger.Info().
		Int("positions", len(holdings)).
		Float64("totalValue", snap.InitialValueUSD).
		Msg("Step 4: Portfolio state assessed.")

	// --- Step 5: Drift and execution ---
	tradedValue := 0.0
	switch {
	case holdingsErr != nil:
		cycleLogger.Warn().Msg("Step 5: Holdings unknown; skipping execution.")
	case len(snap.TargetAllocations) == 0:
		cycleLogger.Warn().Msg("Step 5: No admissible target allocation; holding current positions.")
	case snap.InitialValueUSD <= 0:
		cycleLogger.Warn().Msg("Step 5: Portfolio has no value; nothing to rebalance.")
	default:
		drift := analyzer.RebalanceDelta(current, snap.TargetAllocations, policy, e.alerts)
		snap.Deltas = append(analyzer.ExitDeltas(current, snap.TargetAllocations, policy), drift...)
		if len(snap.Deltas) == 0 {
			cycleLogger.Info().Msg("Step 5: Portfolio within drift threshold. No rebalancing needed.")
			break
		}
		tradedValue = e.execute(ctx, cycleLogger, &snap, snap.Deltas, string(snap.Decision.Band))
	}

	// --- Step 6: User strategies ---
	if e.strategies != nil {
		snap.StrategyActions = e.strategies.Evaluate(snap.Sentiment.CompositeScore)
		if len(snap.StrategyActions) > 0 {
			cycleLogger.Info().Int("actions", len(snap.StrategyActions)).Msg("Step 6: User strategies triggered.")
		}
	}

	// --- Step 7: Final state & performance ---
	snap.FinalValueUSD, err = e.manager.TotalValue(ctx)
	if err != nil {
		fail("final total value", err)
		snap.FinalValueUSD = snap.InitialValueUSD
	}
	var action *string
	if tradedValue > 0 {
		a := string(snap.Decision.Band)
		action = &a
	}
	if snap.FinalValueUSD > 0 {
		perf := e.tracker.Record(ctx, PortfolioStrategyID, snap.FinalValueUSD, snap.Sentiment.CompositeScore, action)
		e.adjustRiskTier(cycleLogger, perf)
		for _, sa := range snap.StrategyActions {
			a := string(sa.Direction)
			e.tracker.Record(ctx, sa.StrategyID, snap.FinalValueUSD, snap.Sentiment.CompositeScore, &a)
		}
	} else {
		cycleLogger.Warn().Msg("Step 7: Portfolio has no value; performance not recorded.")
	}

	// --- Step 8: Persist ---
	snap.CycleNumber = e.nextCycleNumber(ctx)
	if e.store != nil {
		id, err := e.store.SaveCycleSnapshot(ctx, snap)
		if err != nil {
			cycleLogger.Error().Err(err).Msg("Failed to save cycle snapshot")
		} else {
			snap.SnapshotID = id
		}
	}
	e.remember(snap)

	status := "ok"
	if len(snap.Errors) > 0 {
		status = "degraded"
	}
	metrics.CyclesTotal.WithLabelValues(status).Inc()
	metrics.CycleDuration.Observe(time.Since(cycleStart).Seconds())

	cycleLogger.Info().
		Int("cycle", snap.CycleNumber).
		Float64("initialValue", snap.InitialValueUSD).
		Float64("finalValue", snap.FinalValueUSD).
		Int("trades", len(snap.Receipts)).
		Int("errors", len(snap.Errors)).
		Str("cycleDuration", time.Since(cycleStart).String()).
		Msg("--- Cycle Completed ---")
	return snap
}

// execute converts deltas to instructions, submits them and records receipts on
// the snapshot. It returns the notional value of successful instructions.
func (e *Engine) execute(ctx context.Context, log zerolog.Logger, snap *types.CycleSnapshot, deltas []types.RebalanceDelta, reason string) float64 {
	instructions, err := executor.BuildInstructions(deltas, snap.InitialValueUSD, e.denom, e.precision, reason)
	if err != nil {
		snap.Errors = append(snap.Errors, fmt.Sprintf("build instructions: %v", err))
		log.Error().Err(err).Msg("Step 5: Failed to build instructions")
		return 0
	}
	if len(instructions) == 0 {
		log.Info().Msg("Step 5: Drift rounds to zero at executor precision.")
		return 0
	}

	log.Info().Int("instructions", len(instructions)).Msg("Step 5: Submitting instructions...")
	receipts, err := e.manager.Submit(ctx, instructions)
	if err != nil {
		snap.Errors = append(snap.Errors, fmt.Sprintf("submit: %v", err))
		log.Error().Err(err).Msg("Step 5: Executor rejected the batch")
		return 0
	}
	snap.Receipts = receipts

	traded := 0.0
	for _, r := range receipts {
		status := "failed"
		if r.Success {
			status = "success"
			traded += r.Instruction.Fraction * snap.InitialValueUSD
		} else {
			snap.Errors = append(snap.Errors, fmt.Sprintf("%s %s: %s", r.Instruction.Type, r.Instruction.PoolID, r.Message))
		}
		metrics.Instructions.WithLabelValues(string(r.Instruction.Type), status).Inc()
		log.Debug().
			Str("type", string(r.Instruction.Type)).
			Str("pool", r.Instruction.PoolID).
			Bool("success", r.Success).
			Str("tx", r.TxID).
			Msg("Instruction receipt")
	}
	log.Info().Int("receipts", len(receipts)).Float64("tradedValue", traded).Msg("Step 5: Execution complete.")
	return traded
}
