package sentiment

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// Aggregator computes the weighted composite across all configured sources.
type Aggregator struct {
	sources []WeightedSource
	now     func() time.Time
	logger  zerolog.Logger
}

func NewAggregator(sources ...WeightedSource) (*Aggregator, error) {
	for _, ws := range sources {
		if ws.Source == nil {
			return nil, fmt.Errorf("aggregator: nil source")
		}
		if ws.Weight <= 0 || math.IsNaN(ws.Weight) {
			return nil, fmt.Errorf("aggregator: source %s has non-positive weight %f", ws.Source.Name(), ws.Weight)
		}
	}
	return &Aggregator{
		sources: sources,
		now:     time.Now,
		logger:  logger.GetForComponent("sentiment_aggregator"),
	}, nil
}

type fetchResult struct {
	sample Sample
	err    error
}

// Blend queries every source concurrently. Failed sources drop out of both the
// weighted sum and the weight total; if all fail the reading is neutral with confidence 0.
func (a *Aggregator) Blend(ctx context.Context) types.SentimentReading {
	results := make([]fetchResult, len(a.sources))

	var wg sync.WaitGroup
	for i, ws := range a.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			sample, err := src.Fetch(ctx)
			if err == nil && !finiteScore(sample.Score) {
				err = fmt.Errorf("%w: non-finite score", ErrSourceUnavailable)
			}
			results[i] = fetchResult{sample: sample, err: err}
		}(i, ws.Source)
	}
	wg.Wait()

	var weighted, totalWeight float64
	used := make([]string, 0, len(a.sources))
	for i, ws := range a.sources {
		name := ws.Source.Name()
		if results[i].err != nil {
			metrics.SentimentSourceFailures.WithLabelValues(name).Inc()
			a.logger.Warn().Err(results[i].err).Str("source", name).Msg("Sentiment source failed; excluding from blend")
			continue
		}
		weighted += ws.Weight * clampScore(results[i].sample.Score)
		totalWeight += ws.Weight
		used = append(used, name)
	}

	reading := types.SentimentReading{
		CompositeScore: types.NeutralSentiment,
		Confidence:     0,
		Sources:        used,
		Timestamp:      a.now().UTC(),
	}
	if totalWeight > 0 {
		reading.CompositeScore = weighted / totalWeight
		reading.Confidence = totalWeight
	}
	return reading
}

func finiteScore(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
