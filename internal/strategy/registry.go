package strategy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidStrategy   = errors.New("invalid strategy")
	ErrDuplicateStrategy = errors.New("strategy already exists")
	ErrStrategyNotFound  = errors.New("strategy not found")
)

// Persister stores strategies durably. The PostgreSQL store implements it.
type Persister interface {
	SaveStrategy(ctx context.Context, s types.Strategy) error
	LoadStrategies(ctx context.Context) ([]types.Strategy, error)
}

// Registry holds user strategies in creation order.
type Registry struct {
	mu         sync.RWMutex
	strategies []types.Strategy
	index      map[string]int

	persister Persister
	now       func() time.Time
	logger    zerolog.Logger
}

// NewRegistry creates an empty registry. persister may be nil.
func NewRegistry(persister Persister) *Registry {
	return &Registry{
		index:     make(map[string]int),
		persister: persister,
		now:       time.Now,
		logger:    logger.GetForComponent("strategy_registry"),
	}
}

// Restore loads persisted strategies into an empty registry.
func (r *Registry) Restore(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	loaded, err := r.persister.LoadStrategies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load strategies: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range loaded {
		if _, dup := r.index[s.ID]; dup {
			continue
		}
		r.index[s.ID] = len(r.strategies)
		r.strategies = append(r.strategies, s)
	}
	r.logger.Info().Int("count", len(r.strategies)).Msg("Restored strategies")
	return nil
}

// Validate checks thresholds and pools.
func Validate(s types.Strategy) error {
	if s.LowSentimentThreshold < 0 || s.HighSentimentThreshold > 100 {
		return fmt.Errorf("%w: thresholds must be within 0-100", ErrInvalidStrategy)
	}
	if s.LowSentimentThreshold >= s.HighSentimentThreshold {
		return fmt.Errorf("%w: low threshold %.2f must be below high threshold %.2f",
			ErrInvalidStrategy, s.LowSentimentThreshold, s.HighSentimentThreshold)
	}
	if s.HighRiskPool == "" || s.LowRiskPool == "" {
		return fmt.Errorf("%w: both high and low risk pools are required", ErrInvalidStrategy)
	}
	return nil
}

// Create validates and registers a strategy, assigning an id and creation time when unset.
func (r *Registry) Create(ctx context.Context, s types.Strategy) (types.Strategy, error) {
	if err := Validate(s); err != nil {
		return types.Strategy{}, err
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now().UTC()
	}

	r.mu.Lock()
	if _, dup := r.index[s.ID]; dup {
		r.mu.Unlock()
		return types.Strategy{}, fmt.Errorf("%w: %s", ErrDuplicateStrategy, s.ID)
	}
	r.index[s.ID] = len(r.strategies)
	r.strategies = append(r.strategies, s)
	r.mu.Unlock()

	if r.persister != nil {
		if err := r.persister.SaveStrategy(ctx, s); err != nil {
			r.logger.Error().Err(err).Str("strategy_id", s.ID).Msg("Failed to persist strategy")
		}
	}

	r.logger.Info().
		Str("strategy_id", s.ID).
		Float64("high", s.HighSentimentThreshold).
		Float64("low", s.LowSentimentThreshold).
		Msg("Strategy created")
	return s, nil
}

func (r *Registry) Get(id string) (types.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return types.Strategy{}, fmt.Errorf("%w: %s", ErrStrategyNotFound, id)
	}
	return r.strategies[i], nil
}

// List returns a copy of all strategies in creation order.
func (r *Registry) List() []types.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Strategy, len(r.strategies))
	copy(out, r.strategies)
	return out
}

// Evaluate returns the moves requested by active strategies for this score.
// score >= high moves to the high-risk pool; score <= low moves to the low-risk pool.
func (r *Registry) Evaluate(score float64) []types.StrategyAction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var actions []types.StrategyAction
	for _, s := range r.strategies {
		if !s.IsActive {
			continue
		}
		switch {
		case score >= s.HighSentimentThreshold:
			actions = append(actions, types.StrategyAction{
				StrategyID: s.ID,
				TargetPool: s.HighRiskPool,
				Direction:  types.DirectionRiskOn,
				Score:      score,
			})
		case score <= s.LowSentimentThreshold:
			actions = append(actions, types.StrategyAction{
				StrategyID: s.ID,
				TargetPool: s.LowRiskPool,
				Direction:  types.DirectionRiskOff,
				Score:      score,
			})
		}
	}
	return actions
}
