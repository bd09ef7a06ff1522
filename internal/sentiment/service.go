package sentiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// Service owns the latest sentiment reading. The weighted blend is the default
// path; when the pipeline probe fails the fallback chain is used instead.
type Service struct {
	mu     sync.RWMutex
	latest types.SentimentReading
	ready  bool

	aggregator    *Aggregator
	fallback      *FallbackChain
	probe         Probe
	history       HistoryStore
	minConfidence float64
	now           func() time.Time
	logger        zerolog.Logger
}

type ServiceConfig struct {
	Aggregator    *Aggregator
	Fallback      *FallbackChain
	Probe         Probe // nil means the blend is always available
	History       HistoryStore
	MinConfidence float64
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("sentiment service: aggregator cannot be nil")
	}
	if cfg.Fallback == nil {
		return nil, fmt.Errorf("sentiment service: fallback chain cannot be nil")
	}
	if cfg.History == nil {
		return nil, fmt.Errorf("sentiment service: history store cannot be nil")
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("sentiment service: min confidence must be between 0 and 1")
	}
	return &Service{
		aggregator:    cfg.Aggregator,
		fallback:      cfg.Fallback,
		probe:         cfg.Probe,
		history:       cfg.History,
		minConfidence: cfg.MinConfidence,
		now:           time.Now,
		logger:        logger.GetForComponent("sentiment_service"),
	}, nil
}

// Refresh computes a new reading, stores it as the latest and appends it to history.
// It never fails: unavailable sources degrade the reading instead.
func (s *Service) Refresh(ctx context.Context) types.SentimentReading {
	var reading types.SentimentReading
	if s.probe != nil {
		if err := s.probe.Ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Blend pipeline unavailable; using fallback chain")
			reading = s.fallback.Resolve(ctx)
		} else {
			reading = s.aggregator.Blend(ctx)
		}
	} else {
		reading = s.aggregator.Blend(ctx)
	}

	s.store(ctx, reading)
	return reading
}

// Ingest accepts a pre-aggregated reading from an external producer.
func (s *Service) Ingest(ctx context.Context, reading types.SentimentReading) error {
	if reading.Confidence < s.minConfidence {
		s.logger.Warn().
			Float64("confidence", reading.Confidence).
			Float64("minimum", s.minConfidence).
			Msg("Rejecting low-confidence sentiment reading")
		return fmt.Errorf("%w: %.2f < %.2f", ErrInsufficientConfidence, reading.Confidence, s.minConfidence)
	}
	if reading.CompositeScore < 0 || reading.CompositeScore > 100 || !finiteScore(reading.CompositeScore) {
		return fmt.Errorf("sentiment score %f out of range", reading.CompositeScore)
	}
	if reading.Timestamp.IsZero() {
		reading.Timestamp = s.now().UTC()
	}
	s.store(ctx, reading)
	return nil
}

func (s *Service) store(ctx context.Context, reading types.SentimentReading) {
	s.mu.Lock()
	s.latest = reading
	s.ready = true
	s.mu.Unlock()

	metrics.SentimentScore.Set(reading.CompositeScore)
	metrics.SentimentConfidence.Set(reading.Confidence)

	if observed(reading) {
		if err := s.history.Append(ctx, reading); err != nil {
			s.logger.Error().Err(err).Msg("Failed to append sentiment history")
		}
	}
	s.logger.Info().
		Float64("score", reading.CompositeScore).
		Float64("confidence", reading.Confidence).
		Strs("sources", reading.Sources).
		Msg("Sentiment updated")
}

// observed reports whether a reading came from live data. Neutral placeholders
// and historical averages stay out of history so the average cannot feed on itself.
func observed(reading types.SentimentReading) bool {
	if reading.Confidence <= 0 {
		return false
	}
	return !(len(reading.Sources) == 1 && reading.Sources[0] == SourceHistorical)
}

// Latest returns the last stored reading, if any.
func (s *Service) Latest() (types.SentimentReading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ready
}

// Current returns the API view. Before the first refresh it reports neutral.
func (s *Service) Current() types.SentimentState {
	reading, ok := s.Latest()
	if !ok {
		return types.SentimentState{Score: types.NeutralSentiment, Trend: types.TrendNeutral}
	}
	return types.SentimentState{
		Score:      reading.CompositeScore,
		Trend:      types.TrendOf(reading.CompositeScore),
		Confidence: reading.Confidence,
		Sources:    reading.Sources,
		LastUpdate: reading.Timestamp,
	}
}
