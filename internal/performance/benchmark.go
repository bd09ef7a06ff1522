/*
This file fetches the market benchmark APY used for alpha. The upstream is any
endpoint returning {"apy": <percent>}; a fetched value is reused for CacheTTL.
*/

package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"

	"github.com/rs/zerolog"
)

var ErrInvalidBenchmark = errors.New("invalid benchmark data received")

const (
	benchmarkMaxRetries = 3
	benchmarkTimeout    = 30 * time.Second
	defaultCacheTTL     = time.Hour
)

type benchmarkResponse struct {
	APY float64 `json:"apy"`
}

// HTTPBenchmark reads the market APY from an HTTP endpoint with bounded retries.
type HTTPBenchmark struct {
	url      string
	client   *http.Client
	cacheTTL time.Duration
	backoff  time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	mu        sync.Mutex
	cached    float64
	fetchedAt time.Time
}

func NewHTTPBenchmark(url string, cacheTTL time.Duration) *HTTPBenchmark {
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &HTTPBenchmark{
		url:      url,
		client:   &http.Client{Timeout: benchmarkTimeout},
		cacheTTL: cacheTTL,
		backoff:  time.Second,
		now:      time.Now,
		logger:   logger.GetForComponent("benchmark_retriever"),
	}
}

func (b *HTTPBenchmark) MarketAPY(ctx context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.fetchedAt.IsZero() && b.now().Sub(b.fetchedAt) < b.cacheTTL {
		return b.cached, nil
	}

	var lastErr error
	for attempt := 1; attempt <= benchmarkMaxRetries; attempt++ {
		apy, err := b.fetch(ctx)
		if err == nil {
			b.cached, b.fetchedAt = apy, b.now()
			b.logger.Debug().Float64("apy", apy).Int("attempt", attempt).Msg("Benchmark APY refreshed")
			return apy, nil
		}
		lastErr = err
		b.logger.Warn().Err(err).Int("attempt", attempt).Int("maxRetries", benchmarkMaxRetries).Msg("Benchmark request failed")

		if attempt < benchmarkMaxRetries {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(attempt) * b.backoff):
			}
		}
	}
	return 0, fmt.Errorf("failed to fetch benchmark after %d attempts: %w", benchmarkMaxRetries, lastErr)
}

func (b *HTTPBenchmark) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return 0, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("benchmark endpoint returned status %d", resp.StatusCode)
	}

	var parsed benchmarkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidBenchmark, err)
	}
	if math.IsNaN(parsed.APY) || math.IsInf(parsed.APY, 0) || parsed.APY < -100 {
		return 0, fmt.Errorf("%w: apy %f", ErrInvalidBenchmark, parsed.APY)
	}
	return parsed.APY, nil
}
