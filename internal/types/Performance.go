/*

This file contains the performance tracking types.

*/

package types

import "time"

type TimeSeriesPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	Value          float64   `json:"value"`
	SentimentScore float64   `json:"sentiment_score"`
	Action         *string   `json:"action,omitempty"`
}

type StrategyPerformance struct {
	StrategyID       string            `json:"strategy_id"`
	InitialValue     float64           `json:"initial_value"`
	CurrentValue     float64           `json:"current_value"`
	APY              float64           `json:"apy"` // percent
	RebalanceCount   int               `json:"rebalance_count"`
	LastUpdate       time.Time         `json:"last_update"`
	HistoricalValues []TimeSeriesPoint `json:"historical_values"`
}

// PerformanceReport is the derived statistics for one strategy.
type PerformanceReport struct {
	StrategyID       string    `json:"strategy_id"`
	APY              float64   `json:"apy"`
	TotalReturn      float64   `json:"total_return"` // percent
	SharpeRatio      float64   `json:"sharpe_ratio"`
	WinRate          float64   `json:"win_rate"` // percent
	AvgRebalanceGain float64   `json:"avg_rebalance_gain"`
	GasSaved         float64   `json:"gas_saved"`
	Alpha            float64   `json:"alpha"`
	MarketAPY        float64   `json:"market_apy"`
	RebalanceCount   int       `json:"rebalance_count"`
	Points           int       `json:"points"`
	LastUpdate       time.Time `json:"last_update"`
}
