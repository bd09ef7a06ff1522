package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_alerts_published_total",
		Help: "Alerts published on the bus by kind",
	}, []string{"kind"})

	AlertsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yieldbalancer_alerts_dropped_total",
		Help: "Alerts discarded because a subscriber backlog was full",
	})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_cycles_total",
		Help: "Decision cycles by outcome",
	}, []string{"status"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "yieldbalancer_cycle_duration_seconds",
		Help:    "Wall time of one decision cycle",
		Buckets: prometheus.DefBuckets,
	})

	SentimentScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_sentiment_score",
		Help: "Latest composite sentiment score (0-100)",
	})

	SentimentConfidence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_sentiment_confidence",
		Help: "Realized source weight of the latest reading",
	})

	SentimentSourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_sentiment_source_failures_total",
		Help: "Failed sentiment source fetches",
	}, []string{"source"})

	FallbackSelections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_sentiment_fallback_total",
		Help: "Degraded-path readings by selected source",
	}, []string{"source"})

	TargetPools = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_target_pools",
		Help: "Pools in the latest target allocation",
	})

	ExpectedAPY = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_expected_apy",
		Help: "Weighted expected APY of the latest target allocation",
	})

	FeedFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_feed_failures_total",
		Help: "Failed feed polls",
	}, []string{"feed"})

	PriceChange = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_reference_price_change",
		Help: "Fractional move of the reference asset over the trailing window",
	})

	PriceVolatility = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "yieldbalancer_reference_price_volatility",
		Help: "Annualized realized volatility of the reference asset",
	})

	RiskTierAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_risk_tier_adjustments_total",
		Help: "Automatic risk tier changes by resulting tier",
	}, []string{"tier"})

	Instructions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yieldbalancer_instructions_total",
		Help: "Executor instructions by type and outcome",
	}, []string{"type", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yieldbalancer_http_latency_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)
