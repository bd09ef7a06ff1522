/*

This file contains the cycle snapshot persisted after every decision tick.

*/

package types

import "time"

type CycleSnapshot struct {
	SnapshotID        int64                 `json:"snapshot_id,omitempty"`
	CycleNumber       int                   `json:"cycle_number"`
	Timestamp         time.Time             `json:"timestamp"`
	RiskTier          RiskTier              `json:"risk_tier"`
	Sentiment         SentimentReading      `json:"sentiment"`
	Decision          StrategyDecision      `json:"decision"`
	TargetAllocations []PortfolioAllocation `json:"target_allocations"`
	Stats             PortfolioStats        `json:"stats"`
	Deltas            []RebalanceDelta      `json:"deltas"`
	Receipts          []Receipt             `json:"receipts"`
	StrategyActions   []StrategyAction      `json:"strategy_actions"`
	InitialValueUSD   float64               `json:"initial_value_usd"`
	FinalValueUSD     float64               `json:"final_value_usd"`
	Errors            []string              `json:"errors,omitempty"`
}
