/*

This file contains the sentiment types shared by the aggregator, the selector and the API.

*/

package types

import "time"

// NeutralSentiment is the midpoint score used when no source can be read.
const NeutralSentiment = 50.0

type SentimentReading struct {
	CompositeScore float64   `json:"composite_score"` // 0 to 100
	Confidence     float64   `json:"confidence"`      // sum of realized source weights, 0 to 1
	Sources        []string  `json:"sources"`         // contributing sources in priority order
	Timestamp      time.Time `json:"timestamp"`
}

type Trend string

const (
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
	TrendBullish Trend = "bullish"
)

// TrendOf classifies a 0-100 score.
func TrendOf(score float64) Trend {
	switch {
	case score < 40:
		return TrendBearish
	case score > 60:
		return TrendBullish
	default:
		return TrendNeutral
	}
}

// SentimentState is the shape returned to API callers.
type SentimentState struct {
	Score      float64   `json:"score"`
	Trend      Trend     `json:"trend"`
	Confidence float64   `json:"confidence"`
	Sources    []string  `json:"sources"`
	LastUpdate time.Time `json:"last_update"`
}
