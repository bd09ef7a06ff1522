package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPSource reads {"score": float, "count": int} from an endpoint.
type HTTPSource struct {
	name       string
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPSource builds a rate limited source. rps <= 0 disables limiting.
func NewHTTPSource(name, url string, rps float64) *HTTPSource {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPSource{
		name:       name,
		url:        url,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) Fetch(ctx context.Context) (Sample, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Sample{}, fmt.Errorf("%s: rate limiter: %w", s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Sample{}, fmt.Errorf("%s: create request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Sample{}, fmt.Errorf("%w: %s returned %d: %s", ErrSourceUnavailable, s.name, resp.StatusCode, string(body))
	}

	var sample Sample
	if err := json.NewDecoder(resp.Body).Decode(&sample); err != nil {
		return Sample{}, fmt.Errorf("%s: decode response: %w", s.name, err)
	}
	return sample, nil
}

// HTTPProbe treats any 2xx from the health endpoint as ready.
type HTTPProbe struct {
	url        string
	httpClient *http.Client
}

func NewHTTPProbe(url string) *HTTPProbe {
	return &HTTPProbe{url: url, httpClient: &http.Client{Timeout: 5 * time.Second}}
}

func (p *HTTPProbe) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineDown, err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPipelineDown, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrPipelineDown, resp.StatusCode)
	}
	return nil
}
