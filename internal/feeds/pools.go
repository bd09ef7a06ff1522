package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/elys-network/yieldbalancer/internal/analyzer"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// PoolSource returns the current metrics for every candidate pool.
type PoolSource interface {
	FetchPools(ctx context.Context) ([]types.PoolMetrics, error)
}

// PoolSink accepts a refreshed pool set. *catalog.Catalog implements it.
type PoolSink interface {
	Refresh(pools []types.PoolMetrics) []types.Alert
}

// HTTPPoolSource reads a yields listing shaped like
// {"status": "success", "data": [{"pool": ..., "project": ..., "apy": ...}]}.
type HTTPPoolSource struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewHTTPPoolSource(url string, rps float64) *HTTPPoolSource {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPPoolSource{
		url:        url,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type poolsResponse struct {
	Status string       `json:"status"`
	Data   []remotePool `json:"data"`
}

type remotePool struct {
	Pool        string  `json:"pool"`
	Project     string  `json:"project"`
	Symbol      string  `json:"symbol"`
	TVLUsd      float64 `json:"tvlUsd"`
	APY         float64 `json:"apy"`
	RiskScore   float64 `json:"riskScore"`
	Audited     bool    `json:"audited"`
	ChainFactor float64 `json:"chainFactor"`
	Category    string  `json:"category"`
}

func (r remotePool) toMetrics() types.PoolMetrics {
	tvl := int64(0)
	if r.TVLUsd > 0 && r.TVLUsd < math.MaxInt64 {
		tvl = int64(r.TVLUsd)
	}
	return types.PoolMetrics{
		Protocol:    r.Project,
		PoolID:      r.Pool,
		APY:         r.APY,
		TVL:         tvl,
		RiskScore:   r.RiskScore,
		AuditStatus: r.Audited,
		TokenPair:   r.Symbol,
		ChainFactor: r.ChainFactor,
		Category:    r.Category,
	}
}

func (s *HTTPPoolSource) FetchPools(ctx context.Context) ([]types.PoolMetrics, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pools: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pools endpoint returned %d", resp.StatusCode)
	}

	var result poolsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	pools := make([]types.PoolMetrics, 0, len(result.Data))
	for _, p := range result.Data {
		pools = append(pools, p.toMetrics())
	}
	return pools, nil
}

// PoolFeed keeps the catalog current from a PoolSource.
type PoolFeed struct {
	source PoolSource
	sink   PoolSink
	cfg    RetryConfig
	logger zerolog.Logger
}

func NewPoolFeed(source PoolSource, sink PoolSink, cfg RetryConfig) (*PoolFeed, error) {
	if source == nil || sink == nil {
		return nil, errors.New("pool feed: source and sink are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pool feed: %w", err)
	}
	return &PoolFeed{source: source, sink: sink, cfg: cfg, logger: logger.GetForComponent("pool_feed")}, nil
}

// Poll fetches once, drops malformed pools and refreshes the sink.
func (f *PoolFeed) Poll(ctx context.Context) error {
	pools, err := f.source.FetchPools(ctx)
	if err != nil {
		return err
	}

	valid := make([]types.PoolMetrics, 0, len(pools))
	for _, p := range pools {
		if err := analyzer.ValidatePoolData(p); err != nil {
			f.logger.Debug().Err(err).Str("pool_id", p.PoolID).Msg("Skipping malformed pool")
			continue
		}
		valid = append(valid, p)
	}

	raised := f.sink.Refresh(valid)
	f.logger.Info().
		Int("received", len(pools)).
		Int("accepted", len(valid)).
		Int("alerts", len(raised)).
		Msg("Pool catalog refreshed")
	return nil
}

func (f *PoolFeed) Run(ctx context.Context) error {
	return RunWithRetry(ctx, "pools", f.cfg, f.Poll)
}
