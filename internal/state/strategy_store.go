package state

import (
	"context"
	"fmt"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// SaveStrategy upserts a user strategy.
func (s *Store) SaveStrategy(ctx context.Context, st types.Strategy) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	query := `
		INSERT INTO strategies (
			strategy_id, high_sentiment_threshold, low_sentiment_threshold,
			high_risk_pool, low_risk_pool, is_active, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (strategy_id) DO UPDATE SET
			high_sentiment_threshold = EXCLUDED.high_sentiment_threshold,
			low_sentiment_threshold = EXCLUDED.low_sentiment_threshold,
			high_risk_pool = EXCLUDED.high_risk_pool,
			low_risk_pool = EXCLUDED.low_risk_pool,
			is_active = EXCLUDED.is_active;
	`
	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.HighSentimentThreshold, st.LowSentimentThreshold,
		st.HighRiskPool, st.LowRiskPool, st.IsActive, st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save strategy %s: %w", st.ID, err)
	}
	s.logger.Info().Str("strategy_id", st.ID).Msg("Strategy saved")
	return nil
}

// LoadStrategies returns all strategies in creation order.
func (s *Store) LoadStrategies(ctx context.Context) ([]types.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT strategy_id, high_sentiment_threshold, low_sentiment_threshold,
			high_risk_pool, low_risk_pool, is_active, created_at
		FROM strategies
		ORDER BY created_at ASC, strategy_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	var out []types.Strategy
	for rows.Next() {
		var st types.Strategy
		if err := rows.Scan(
			&st.ID, &st.HighSentimentThreshold, &st.LowSentimentThreshold,
			&st.HighRiskPool, &st.LowRiskPool, &st.IsActive, &st.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
