package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PortfolioSummary is the dashboard headline view.
type PortfolioSummary struct {
	TotalValue    float64   `json:"total_value"`
	LatestCycle   int       `json:"latest_cycle"`
	LatestBand    string    `json:"latest_band"`
	LatestScore   float64   `json:"latest_sentiment"`
	PositionCount int       `json:"position_count"`
	TotalCycles   int       `json:"total_cycles"`
	LastUpdated   time.Time `json:"last_updated"`
}

// CycleMetrics aggregates every stored cycle.
type CycleMetrics struct {
	TotalCycles        int     `json:"total_cycles"`
	EmergencyCycles    int     `json:"emergency_cycles"`
	CyclesWithErrors   int     `json:"cycles_with_errors"`
	AvgSentiment       float64 `json:"avg_sentiment"`
	AvgExpectedAPY     float64 `json:"avg_expected_apy"`
	NetValueChangeUSD  float64 `json:"net_value_change_usd"`
	TotalInstructions  int     `json:"total_instructions"`
	FailedInstructions int     `json:"failed_instructions"`
}

// GetPortfolioSummary reads the newest snapshot and the cycle count. With no
// snapshots it returns a zero summary.
func (s *Store) GetPortfolioSummary(ctx context.Context) (PortfolioSummary, error) {
	if s == nil || s.db == nil {
		return PortfolioSummary{}, ErrNotInitialized
	}

	var summary PortfolioSummary
	query := `
		SELECT
			final_value_usd,
			cycle_number,
			band,
			sentiment_score,
			COALESCE(jsonb_array_length(target_allocations), 0),
			snapshot_timestamp
		FROM cycle_snapshots
		ORDER BY snapshot_timestamp DESC
		LIMIT 1
	`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&summary.TotalValue,
		&summary.LatestCycle,
		&summary.LatestBand,
		&summary.LatestScore,
		&summary.PositionCount,
		&summary.LastUpdated,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return PortfolioSummary{}, fmt.Errorf("failed to get latest portfolio values: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cycle_snapshots`).Scan(&summary.TotalCycles); err != nil {
		s.logger.Error().Err(err).Msg("Failed to get total cycle count")
	}
	return summary, nil
}

// GetCycleMetrics aggregates all snapshots. Instruction counts come from the receipts JSONB.
func (s *Store) GetCycleMetrics(ctx context.Context) (CycleMetrics, error) {
	if s == nil || s.db == nil {
		return CycleMetrics{}, ErrNotInitialized
	}

	query := `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN emergency THEN 1 END),
			COUNT(CASE WHEN COALESCE(array_length(errors, 1), 0) > 0 THEN 1 END),
			COALESCE(AVG(sentiment_score), 0),
			COALESCE(AVG(expected_apy), 0),
			COALESCE(SUM(final_value_usd - initial_value_usd), 0),
			COALESCE(SUM(jsonb_array_length(COALESCE(receipts, '[]'::jsonb))), 0),
			COALESCE(SUM((
				SELECT COUNT(*) FROM jsonb_array_elements(COALESCE(receipts, '[]'::jsonb)) r
				WHERE (r->>'success')::boolean IS NOT TRUE
			)), 0)
		FROM cycle_snapshots
	`

	var m CycleMetrics
	err := s.db.QueryRowContext(ctx, query).Scan(
		&m.TotalCycles,
		&m.EmergencyCycles,
		&m.CyclesWithErrors,
		&m.AvgSentiment,
		&m.AvgExpectedAPY,
		&m.NetValueChangeUSD,
		&m.TotalInstructions,
		&m.FailedInstructions,
	)
	if err != nil {
		return CycleMetrics{}, fmt.Errorf("failed to get cycle metrics: %w", err)
	}

	s.logger.Debug().
		Int("total_cycles", m.TotalCycles).
		Int("emergency_cycles", m.EmergencyCycles).
		Msg("Retrieved cycle metrics")
	return m, nil
}
