/*

This file contains the risk-band mixes and user strategies.

*/

package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidMix = errors.New("invalid mix")

type Band string

const (
	BandBearish   Band = "bearish"
	BandNeutral   Band = "neutral"
	BandBullish   Band = "bullish"
	BandDefensive Band = "defensive"
)

// Pool buckets used by the default mixes.
const (
	BucketStaking     = "staking"
	BucketStablePools = "stable_pools"
	BucketNearPools   = "near_pools"
	BucketAuroraPools = "aurora_pools"
)

type MixEntry struct {
	Bucket  string  `json:"bucket"`
	Percent float64 `json:"percent"` // 0 to 100
}

// Mix is an ordered risk-band allocation template.
type Mix []MixEntry

// Total returns the sum of entry percents.
func (m Mix) Total() float64 {
	var total float64
	for _, e := range m {
		total += e.Percent
	}
	return total
}

// ParseMix reads "bucket:percent,bucket:percent".
func ParseMix(s string) (Mix, error) {
	var mix Mix
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bucket, pct, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("%w: entry %q has no percent", ErrInvalidMix, part)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: entry %q has bad percent", ErrInvalidMix, part)
		}
		mix = append(mix, MixEntry{Bucket: strings.TrimSpace(bucket), Percent: v})
	}
	if len(mix) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidMix)
	}
	return mix, nil
}

// StrategyDecision is the selector output for one score.
type StrategyDecision struct {
	Score                int  `json:"score"`
	Band                 Band `json:"band"`
	Mix                  Mix  `json:"mix"`
	Emergency            bool `json:"emergency"`
	ProvisionSafetyProxy bool `json:"provision_safety_proxy"`
}

// Strategy is a user-defined sentiment trigger between two pools.
type Strategy struct {
	ID                     string    `json:"id"`
	HighSentimentThreshold float64   `json:"high_sentiment_threshold"`
	LowSentimentThreshold  float64   `json:"low_sentiment_threshold"`
	HighRiskPool           string    `json:"high_risk_pool"`
	LowRiskPool            string    `json:"low_risk_pool"`
	IsActive               bool      `json:"is_active"`
	CreatedAt              time.Time `json:"created_at"`
}

type StrategyDirection string

const (
	DirectionRiskOn  StrategyDirection = "risk_on"
	DirectionRiskOff StrategyDirection = "risk_off"
)

// StrategyAction is a move requested by a user strategy on this tick.
type StrategyAction struct {
	StrategyID string            `json:"strategy_id"`
	TargetPool string            `json:"target_pool"`
	Direction  StrategyDirection `json:"direction"`
	Score      float64           `json:"score"`
}
