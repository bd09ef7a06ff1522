package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/catalog"
	"github.com/elys-network/yieldbalancer/internal/performance"
	"github.com/elys-network/yieldbalancer/internal/sentiment"
	"github.com/elys-network/yieldbalancer/internal/state"
	"github.com/elys-network/yieldbalancer/internal/strategy"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSentiment struct {
	mu    sync.Mutex
	state types.SentimentState
}

func (f *fakeSentiment) Current() types.SentimentState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSentiment) Ingest(_ context.Context, r types.SentimentReading) error {
	if r.Confidence < 0.6 {
		return fmt.Errorf("%w: %.2f", sentiment.ErrInsufficientConfidence, r.Confidence)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = types.SentimentState{Score: r.CompositeScore, Trend: types.TrendOf(r.CompositeScore), Confidence: r.Confidence}
	return nil
}

type fakeCycles []types.CycleSnapshot

func (f fakeCycles) Recent(limit int) []types.CycleSnapshot {
	if limit > len(f) {
		limit = len(f)
	}
	return f[:limit]
}

type fakeStore struct {
	pingErr error
	cycles  []types.CycleSnapshot
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) GetRecentCycles(_ context.Context, limit int) ([]types.CycleSnapshot, error) {
	if limit > len(f.cycles) {
		limit = len(f.cycles)
	}
	return f.cycles[:limit], nil
}

func (f *fakeStore) GetLatestCycle(context.Context) (types.CycleSnapshot, error) {
	if len(f.cycles) == 0 {
		return types.CycleSnapshot{}, state.ErrNoCycles
	}
	return f.cycles[0], nil
}

func (f *fakeStore) GetPortfolioSummary(context.Context) (state.PortfolioSummary, error) {
	return state.PortfolioSummary{TotalCycles: len(f.cycles)}, nil
}

func (f *fakeStore) GetCycleMetrics(context.Context) (state.CycleMetrics, error) {
	return state.CycleMetrics{TotalCycles: len(f.cycles)}, nil
}

type harness struct {
	server  *Server
	bus     *alerts.Bus
	tracker *performance.Tracker
}

func newHarness(t *testing.T, store CycleStore, cycles fakeCycles) *harness {
	t.Helper()
	bus := alerts.NewBus(10)
	cat := catalog.New(bus)
	cat.Refresh([]types.PoolMetrics{{
		Protocol:    "ref-finance",
		PoolID:      "near-usdc",
		APY:         10,
		TVL:         1_000_000,
		RiskScore:   0.9,
		AuditStatus: true,
		TokenPair:   "NEAR-USDC",
		ChainFactor: 0.95,
	}})
	tracker := performance.NewTracker(performance.TrackerConfig{})

	cfg := Config{
		Catalog:     cat,
		Sentiment:   &fakeSentiment{state: types.SentimentState{Score: 50, Trend: types.TrendNeutral}},
		Strategies:  strategy.NewRegistry(nil),
		Performance: tracker,
		Alerts:      bus,
		Cycles:      cycles,
		Store:       store,
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return &harness{server: s, bus: bus, tracker: tracker}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestOptimizeSinglePoolModerate(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do("POST", "/api/optimize", `{"risk_tier":"moderate","preferred_assets":["NEAR"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp optimizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Allocations, 1)
	assert.InDelta(t, 1.0, resp.Allocations[0].AllocationPercentage, 1e-9)
	assert.InDelta(t, 10.0, resp.ExpectedAPY, 1e-9)
	assert.Equal(t, []string{"NEAR"}, resp.PreferredAssets)
	assert.Equal(t, types.RiskTierModerate, resp.RiskTier)
}

func TestOptimizeRejectsBadInput(t *testing.T) {
	h := newHarness(t, nil, nil)

	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/optimize", `{"risk_tier":"yolo"}`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/optimize", `not json`).Code)
}

func TestSentimentIngestAndRead(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do("POST", "/api/sentiment", `{"composite_score":80,"confidence":0.5}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do("POST", "/api/sentiment", `{"composite_score":80,"confidence":0.8}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do("GET", "/api/sentiment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 80.0, body["score"])
	assert.Equal(t, string(types.TrendBullish), body["trend"])
}

func TestStrategyLifecycle(t *testing.T) {
	h := newHarness(t, nil, nil)

	payload := `{"id":"s1","high_sentiment_threshold":70,"low_sentiment_threshold":30,"high_risk_pool":"aurora-eth","low_risk_pool":"usdc-usdt"}`
	rec := h.do("POST", "/api/strategy", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "s1", body["id"])
	assert.Equal(t, "created", body["status"])

	assert.Equal(t, http.StatusConflict, h.do("POST", "/api/strategy", payload).Code)
	assert.Equal(t, http.StatusBadRequest, h.do("POST", "/api/strategy",
		`{"high_sentiment_threshold":30,"low_sentiment_threshold":70,"high_risk_pool":"a","low_risk_pool":"b"}`).Code)

	rec = h.do("GET", "/api/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1.0, decode(t, rec)["count"])
}

func TestPerformanceReport(t *testing.T) {
	h := newHarness(t, nil, nil)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/performance/portfolio", "").Code)

	h.tracker.Record(context.Background(), "portfolio", 100, 50, nil)
	rec := h.do("GET", "/api/performance/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "portfolio", decode(t, rec)["strategy_id"])
}

func TestCyclesFromMemory(t *testing.T) {
	h := newHarness(t, nil, nil)
	assert.Equal(t, http.StatusNotFound, h.do("GET", "/api/cycles/latest", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do("GET", "/api/analytics", "").Code)

	h = newHarness(t, nil, fakeCycles{{CycleNumber: 2}, {CycleNumber: 1}})
	rec := h.do("GET", "/api/cycles?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, 1.0, body["count"])

	rec = h.do("GET", "/api/cycles/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2.0, decode(t, rec)["cycle_number"])
}

func TestCyclesFromStore(t *testing.T) {
	store := &fakeStore{cycles: []types.CycleSnapshot{{CycleNumber: 7}}}
	h := newHarness(t, store, nil)

	rec := h.do("GET", "/api/cycles/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7.0, decode(t, rec)["cycle_number"])

	rec = h.do("GET", "/api/analytics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "summary")
}

func TestHealthReportsDatabase(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := h.do("GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decode(t, rec)["status"])

	h = newHarness(t, &fakeStore{pingErr: errors.New("refused")}, nil)
	rec = h.do("GET", "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DEGRADED", decode(t, rec)["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.do("GET", "/health", "")
	rec := h.do("GET", "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yieldbalancer_http_latency_seconds")
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t, nil, nil)
	rec := h.do("OPTIONS", "/api/optimize", "")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAlertStreamDeliversNDJSON(t *testing.T) {
	h := newHarness(t, nil, nil)
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/alerts", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return h.bus.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	h.bus.Publish(types.ApyDrop{PoolID: "near-usdc", OldAPY: 10, NewAPY: 7})
	h.bus.Publish(types.RebalanceNeeded{Reason: "drift", Trades: 2})

	reader := bufio.NewReader(resp.Body)
	for _, want := range []types.AlertKind{types.AlertApyDrop, types.AlertRebalanceNeeded} {
		line, err := reader.ReadBytes('\n')
		require.NoError(t, err)
		var event map[string]any
		require.NoError(t, json.Unmarshal(bytes.TrimSpace(line), &event))
		assert.Equal(t, string(want), event["kind"])
	}

	cancel()
	require.Eventually(t, func() bool { return h.bus.SubscriberCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestAlertWebSocket(t *testing.T) {
	h := newHarness(t, nil, nil)
	ts := httptest.NewServer(h.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/alerts/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return h.bus.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)
	h.bus.Publish(types.ThresholdBreached{Current: 20, Threshold: 30, Reason: "low"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event map[string]any
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, string(types.AlertThresholdBreached), event["kind"])
	payload, ok := event["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 20.0, payload["current"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return h.bus.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
