package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = RetryConfig{Interval: time.Millisecond, RetryDelay: time.Millisecond, MaxRetries: 5}

func TestRunWithRetryExhausts(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("connection refused")

	err := RunWithRetry(context.Background(), "test", fast, func(context.Context) error {
		calls.Add(1)
		return boom
	})
	assert.ErrorIs(t, err, ErrFeedExhausted)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(5), calls.Load())
}

func TestRunWithRetryResetsAfterSuccess(t *testing.T) {
	var calls atomic.Int32
	// fails 4, succeeds once, then fails 5 more
	err := RunWithRetry(context.Background(), "test", fast, func(context.Context) error {
		if calls.Add(1) == 5 {
			return nil
		}
		return errors.New("flaky")
	})
	assert.ErrorIs(t, err, ErrFeedExhausted)
	assert.Equal(t, int32(10), calls.Load())
}

func TestRunWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- RunWithRetry(ctx, "test", fast, func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return calls.Load() > 2 }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("feed did not stop")
	}
}

func TestRunWithRetryRejectsBadConfig(t *testing.T) {
	err := RunWithRetry(context.Background(), "test", RetryConfig{}, func(context.Context) error { return nil })
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrFeedExhausted)
}

type sinkRecorder struct{ pools []types.PoolMetrics }

func (s *sinkRecorder) Refresh(pools []types.PoolMetrics) []types.Alert {
	s.pools = pools
	return nil
}

func TestPoolFeedPollsHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"success","data":[
			{"pool":"near-usdc","project":"ref","symbol":"NEAR-USDC","tvlUsd":2500000.7,"apy":11.5,"riskScore":0.8,"audited":true,"chainFactor":0.95,"category":"near_pools"},
			{"pool":"","project":"broken","apy":5}
		]}`))
	}))
	defer srv.Close()

	sink := &sinkRecorder{}
	feed, err := NewPoolFeed(NewHTTPPoolSource(srv.URL, 0), sink, fast)
	require.NoError(t, err)
	require.NoError(t, feed.Poll(context.Background()))

	require.Len(t, sink.pools, 1)
	p := sink.pools[0]
	assert.Equal(t, "near-usdc", p.PoolID)
	assert.Equal(t, "ref", p.Protocol)
	assert.Equal(t, int64(2500000), p.TVL)
	assert.True(t, p.AuditStatus)
	assert.Equal(t, types.BucketNearPools, p.Category)
}

func TestHTTPPoolSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewHTTPPoolSource(srv.URL, 0).FetchPools(context.Background())
	assert.Error(t, err)
}

func TestPriceWatcherReportsTrailingChange(t *testing.T) {
	now := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stale := now.Add(-30 * time.Hour).UnixMilli()
		start := now.Add(-23 * time.Hour).UnixMilli()
		end := now.Add(-time.Hour).UnixMilli()
		fmt.Fprintf(w, `{"prices": [[%d, 2.0], [%d, 4.0], [%d, 4.4]]}`, stale, start, end)
	}))
	defer srv.Close()

	watcher, err := NewPriceWatcher(NewHTTPPriceSource(srv.URL, 0), 24*time.Hour)
	require.NoError(t, err)
	watcher.now = func() time.Time { return now }

	change, err := watcher.PriceChange24h(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.1, change, 1e-9)
}

func TestPriceWatcherPropagatesSourceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	watcher, err := NewPriceWatcher(NewHTTPPriceSource(srv.URL, 0), 0)
	require.NoError(t, err)

	_, err = watcher.PriceChange24h(context.Background())
	assert.ErrorContains(t, err, "502")
}
