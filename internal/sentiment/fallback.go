package sentiment

import (
	"context"
	"fmt"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// FallbackChain is the degraded path. It selects exactly one source, in strict
// priority order: social (enough samples), news (any items), historical average.
type FallbackChain struct {
	social           WeightedSource
	news             WeightedSource
	history          HistoryStore
	minSocialSamples int
	window           time.Duration
	now              func() time.Time
	logger           zerolog.Logger
}

type FallbackConfig struct {
	Social           WeightedSource
	News             WeightedSource
	History          HistoryStore
	MinSocialSamples int
	Window           time.Duration
}

func NewFallbackChain(cfg FallbackConfig) (*FallbackChain, error) {
	if cfg.History == nil {
		return nil, fmt.Errorf("fallback chain: history store cannot be nil")
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("fallback chain: window must be positive")
	}
	if cfg.MinSocialSamples < 1 {
		cfg.MinSocialSamples = 1
	}
	return &FallbackChain{
		social:           cfg.Social,
		news:             cfg.News,
		history:          cfg.History,
		minSocialSamples: cfg.MinSocialSamples,
		window:           cfg.Window,
		now:              time.Now,
		logger:           logger.GetForComponent("sentiment_fallback"),
	}, nil
}

// Resolve returns the first sufficient reading. It never blends sources.
func (f *FallbackChain) Resolve(ctx context.Context) types.SentimentReading {
	now := f.now().UTC()

	if f.social.Source != nil {
		sample, err := f.social.Source.Fetch(ctx)
		switch {
		case err != nil:
			f.logger.Warn().Err(err).Msg("Social source failed during fallback")
		case sample.Count >= f.minSocialSamples && finiteScore(sample.Score):
			return f.selected(SourceSocial, clampScore(sample.Score), f.social.Weight, now)
		default:
			f.logger.Debug().Int("samples", sample.Count).Int("required", f.minSocialSamples).Msg("Too few social samples")
		}
	}

	if f.news.Source != nil {
		sample, err := f.news.Source.Fetch(ctx)
		switch {
		case err != nil:
			f.logger.Warn().Err(err).Msg("News source failed during fallback")
		case sample.Count > 0 && finiteScore(sample.Score):
			return f.selected(SourceNews, clampScore(sample.Score), f.news.Weight, now)
		}
	}

	return f.historical(ctx, now)
}

func (f *FallbackChain) selected(source string, score, confidence float64, now time.Time) types.SentimentReading {
	metrics.FallbackSelections.WithLabelValues(source).Inc()
	f.logger.Info().Str("source", source).Float64("score", score).Msg("Fallback selected source")
	return types.SentimentReading{
		CompositeScore: score,
		Confidence:     confidence,
		Sources:        []string{source},
		Timestamp:      now,
	}
}

// historical averages the stored readings inside the window. Its confidence is
// the mean confidence of those readings; an empty window yields a neutral reading.
func (f *FallbackChain) historical(ctx context.Context, now time.Time) types.SentimentReading {
	readings, err := f.history.Since(ctx, now.Add(-f.window))
	if err != nil {
		f.logger.Error().Err(err).Msg("Failed to read sentiment history")
	}
	if len(readings) == 0 {
		metrics.FallbackSelections.WithLabelValues("neutral").Inc()
		f.logger.Warn().Dur("window", f.window).Msg("No history in window; using neutral sentiment")
		return types.SentimentReading{CompositeScore: types.NeutralSentiment, Confidence: 0, Timestamp: now}
	}

	var scoreSum, confSum float64
	for _, r := range readings {
		scoreSum += r.CompositeScore
		confSum += r.Confidence
	}
	n := float64(len(readings))
	return f.selected(SourceHistorical, scoreSum/n, confSum/n, now)
}
