package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/elys-network/yieldbalancer/internal/analyzer"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// hoursPerYear annualizes volatility computed from hourly prices.
const hoursPerYear = 8760

// PriceSource returns recent prices of the reference asset.
type PriceSource interface {
	FetchPrices(ctx context.Context) ([]types.PriceData, error)
}

// HTTPPriceSource reads a market chart shaped like {"prices": [[unix_ms, price], ...]}.
type HTTPPriceSource struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPPriceSource(url string, rps float64) *HTTPPriceSource {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPPriceSource{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type marketChartResponse struct {
	Prices [][2]float64 `json:"prices"`
}

func (s *HTTPPriceSource) FetchPrices(ctx context.Context) ([]types.PriceData, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price endpoint returned %d", resp.StatusCode)
	}

	var chart marketChartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	prices := make([]types.PriceData, 0, len(chart.Prices))
	for _, p := range chart.Prices {
		prices = append(prices, types.PriceData{
			Timestamp: time.UnixMilli(int64(p[0])).UTC(),
			Price:     p[1],
		})
	}
	return prices, nil
}

// PriceWatcher reports the reference asset's move over a trailing window.
type PriceWatcher struct {
	source PriceSource
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

func NewPriceWatcher(source PriceSource, window time.Duration) (*PriceWatcher, error) {
	if source == nil {
		return nil, errors.New("price watcher: source is required")
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &PriceWatcher{
		source: source,
		window: window,
		now:    time.Now,
		logger: logger.GetForComponent("price_watcher"),
	}, nil
}

// PriceChange24h returns the fractional price move inside the window.
func (w *PriceWatcher) PriceChange24h(ctx context.Context) (float64, error) {
	prices, err := w.source.FetchPrices(ctx)
	if err != nil {
		metrics.FeedFailures.WithLabelValues("prices").Inc()
		return 0, err
	}

	cutoff := w.now().Add(-w.window)
	recent := prices[:0]
	for _, p := range prices {
		if !p.Timestamp.Before(cutoff) {
			recent = append(recent, p)
		}
	}

	change, err := analyzer.PriceChange(recent)
	if err != nil {
		return 0, err
	}
	metrics.PriceChange.Set(change)

	event := w.logger.Info().Float64("changePct", change*100).Int("points", len(recent))
	if vol, err := analyzer.RealizedVolatility(recent, hoursPerYear); err == nil {
		metrics.PriceVolatility.Set(vol)
		event = event.Float64("annualizedVolatility", vol)
	}
	event.Msg("Reference price movement")
	return change, nil
}
