package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// SavePerformancePoint appends one tracker point.
func (s *Store) SavePerformancePoint(ctx context.Context, strategyID string, p types.TimeSeriesPoint) error {
	if s == nil || s.db == nil {
		return ErrNotInitialized
	}

	var action sql.NullString
	if p.Action != nil {
		action = sql.NullString{String: *p.Action, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance_points (strategy_id, point_timestamp, value_usd, sentiment_score, action)
		VALUES ($1, $2, $3, $4, $5)`,
		strategyID, p.Timestamp, p.Value, p.SentimentScore, action,
	)
	if err != nil {
		return fmt.Errorf("failed to save performance point for %s: %w", strategyID, err)
	}
	return nil
}

// LoadPerformancePoints returns a strategy's points oldest first.
func (s *Store) LoadPerformancePoints(ctx context.Context, strategyID string) ([]types.TimeSeriesPoint, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT point_timestamp, value_usd, sentiment_score, action
		FROM performance_points
		WHERE strategy_id = $1
		ORDER BY point_timestamp ASC, point_id ASC`, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query performance points: %w", err)
	}
	defer rows.Close()

	var out []types.TimeSeriesPoint
	for rows.Next() {
		var (
			p      types.TimeSeriesPoint
			action sql.NullString
		)
		if err := rows.Scan(&p.Timestamp, &p.Value, &p.SentimentScore, &action); err != nil {
			return nil, fmt.Errorf("failed to scan performance point: %w", err)
		}
		if action.Valid {
			a := action.String
			p.Action = &a
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
