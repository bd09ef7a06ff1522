package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/lib/pq"
)

var ErrNoCycles = errors.New("no cycle snapshots recorded")

const (
	defaultCycleLimit = 10
	maxCycleLimit     = 100
)

// SaveCycleSnapshot stores one decision tick and returns its row id.
func (s *Store) SaveCycleSnapshot(ctx context.Context, snapshot types.CycleSnapshot) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotInitialized
	}

	decisionJSON, err := json.Marshal(snapshot.Decision)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal decision: %w", err)
	}
	targetJSON, err := json.Marshal(snapshot.TargetAllocations)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal target_allocations: %w", err)
	}
	deltasJSON, err := json.Marshal(snapshot.Deltas)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal deltas: %w", err)
	}
	receiptsJSON, err := json.Marshal(snapshot.Receipts)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal receipts: %w", err)
	}
	actionsJSON, err := json.Marshal(snapshot.StrategyActions)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal strategy_actions: %w", err)
	}

	query := `
		INSERT INTO cycle_snapshots (
			cycle_number, snapshot_timestamp, risk_tier,
			sentiment_score, sentiment_confidence, sentiment_sources, band, emergency, decision,
			target_allocations, expected_apy, portfolio_risk, deltas,
			initial_value_usd, final_value_usd, receipts, tx_ids, strategy_actions, errors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = s.db.QueryRowContext(ctx, query,
		snapshot.CycleNumber, snapshot.Timestamp, snapshot.RiskTier.String(),
		snapshot.Sentiment.CompositeScore, snapshot.Sentiment.Confidence, pq.Array(snapshot.Sentiment.Sources),
		string(snapshot.Decision.Band), snapshot.Decision.Emergency, decisionJSON,
		targetJSON, snapshot.Stats.ExpectedAPY, snapshot.Stats.RiskScore, deltasJSON,
		snapshot.InitialValueUSD, snapshot.FinalValueUSD, receiptsJSON, pq.Array(txIDs(snapshot.Receipts)),
		actionsJSON, pq.Array(snapshot.Errors),
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save cycle snapshot: %w", err)
	}

	s.logger.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Float64("final_value", snapshot.FinalValueUSD).
		Msg("Cycle snapshot saved to database")
	return snapshotID, nil
}

func txIDs(receipts []types.Receipt) []string {
	ids := make([]string, 0, len(receipts))
	for _, r := range receipts {
		if r.TxID != "" {
			ids = append(ids, r.TxID)
		}
	}
	return ids
}

const selectSnapshotSQL = `
	SELECT
		snapshot_id, cycle_number, snapshot_timestamp, risk_tier,
		sentiment_score, sentiment_confidence, sentiment_sources, decision,
		target_allocations, expected_apy, portfolio_risk, deltas,
		initial_value_usd, final_value_usd, receipts, strategy_actions, errors
	FROM cycle_snapshots
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (types.CycleSnapshot, error) {
	var (
		snap                       types.CycleSnapshot
		tier                       string
		expectedAPY, portfolioRisk sql.NullFloat64
		decisionJSON, targetJSON   []byte
		deltasJSON, receiptsJSON   []byte
		actionsJSON                []byte
	)
	err := row.Scan(
		&snap.SnapshotID, &snap.CycleNumber, &snap.Timestamp, &tier,
		&snap.Sentiment.CompositeScore, &snap.Sentiment.Confidence, pq.Array(&snap.Sentiment.Sources), &decisionJSON,
		&targetJSON, &expectedAPY, &portfolioRisk, &deltasJSON,
		&snap.InitialValueUSD, &snap.FinalValueUSD, &receiptsJSON, &actionsJSON, pq.Array(&snap.Errors),
	)
	if err != nil {
		return types.CycleSnapshot{}, err
	}

	if parsed, err := types.ParseRiskTier(tier); err == nil {
		snap.RiskTier = parsed
	}
	snap.Sentiment.Timestamp = snap.Timestamp
	snap.Stats.ExpectedAPY = expectedAPY.Float64
	snap.Stats.RiskScore = portfolioRisk.Float64

	for _, field := range []struct {
		name string
		raw  []byte
		dest any
	}{
		{"decision", decisionJSON, &snap.Decision},
		{"target_allocations", targetJSON, &snap.TargetAllocations},
		{"deltas", deltasJSON, &snap.Deltas},
		{"receipts", receiptsJSON, &snap.Receipts},
		{"strategy_actions", actionsJSON, &snap.StrategyActions},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return types.CycleSnapshot{}, fmt.Errorf("failed to unmarshal %s: %w", field.name, err)
		}
	}
	snap.Stats.NumPools = len(snap.TargetAllocations)
	return snap, nil
}

// GetRecentCycles returns the newest snapshots first. limit is clamped to 1..100,
// defaulting to 10.
func (s *Store) GetRecentCycles(ctx context.Context, limit int) ([]types.CycleSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 || limit > maxCycleLimit {
		limit = defaultCycleLimit
	}

	rows, err := s.db.QueryContext(ctx, selectSnapshotSQL+` ORDER BY snapshot_timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]types.CycleSnapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to read cycle row; skipping")
			continue
		}
		cycles = append(cycles, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return cycles, nil
}

// GetLatestCycle returns the most recent snapshot or ErrNoCycles.
func (s *Store) GetLatestCycle(ctx context.Context) (types.CycleSnapshot, error) {
	if s == nil || s.db == nil {
		return types.CycleSnapshot{}, ErrNotInitialized
	}
	row := s.db.QueryRowContext(ctx, selectSnapshotSQL+` ORDER BY snapshot_timestamp DESC LIMIT 1`)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CycleSnapshot{}, ErrNoCycles
	}
	if err != nil {
		return types.CycleSnapshot{}, fmt.Errorf("failed to load latest cycle: %w", err)
	}
	return snap, nil
}
