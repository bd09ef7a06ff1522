package sentiment

import (
	"context"
	"math"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/rs/zerolog"
)

// Refresher produces a fresh reading on demand. *Service implements it.
type Refresher interface {
	Refresh(ctx context.Context) types.SentimentReading
}

type MonitorConfig struct {
	Interval  time.Duration
	Threshold float64 // scores strictly below raise ThresholdBreached
	ChangePct float64 // relative move in percent that raises SignificantChange
}

// ThresholdMonitor polls sentiment on a fixed interval. Check is not safe for
// concurrent use; Run is the only caller in production.
type ThresholdMonitor struct {
	cfg      MonitorConfig
	source   Refresher
	alerts   alerts.Publisher
	previous float64
	logger   zerolog.Logger
}

func NewThresholdMonitor(cfg MonitorConfig, source Refresher, publisher alerts.Publisher) *ThresholdMonitor {
	return &ThresholdMonitor{
		cfg:      cfg,
		source:   source,
		alerts:   publisher,
		previous: types.NeutralSentiment,
		logger:   logger.GetForComponent("sentiment_monitor"),
	}
}

// Run polls until ctx is cancelled, then returns ctx.Err().
func (m *ThresholdMonitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.cfg.Interval).Float64("threshold", m.cfg.Threshold).Msg("Starting sentiment monitor")

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Sentiment monitor stopped due to context cancellation")
			return ctx.Err()
		case <-ticker.C:
			reading := m.source.Refresh(ctx)
			m.Check(reading.CompositeScore)
		}
	}
}

// Check evaluates one score against the threshold and the previous score, publishes
// any alerts and remembers the score for the next call.
func (m *ThresholdMonitor) Check(score float64) []types.Alert {
	var raised []types.Alert

	if score < m.cfg.Threshold {
		raised = append(raised, types.ThresholdBreached{
			Current:   score,
			Threshold: m.cfg.Threshold,
			Reason:    "Sentiment below threshold",
		})
	}
	if m.previous != 0 {
		changePct := math.Abs(score-m.previous) / m.previous * 100
		if changePct > m.cfg.ChangePct {
			raised = append(raised, types.SignificantChange{Old: m.previous, New: score, ChangePct: changePct})
		}
	}
	m.previous = score

	for _, a := range raised {
		m.logger.Warn().Str("kind", string(a.Kind())).Float64("score", score).Msg("Sentiment alert")
		if m.alerts != nil {
			m.alerts.Publish(a)
		}
	}
	return raised
}
