/*

This file contains the risk policy types used to admit pools into allocation scoring.

*/

package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRiskTier is returned when a tier name cannot be parsed.
var ErrUnknownRiskTier = errors.New("unknown risk tier")

// MinChainFactor is the chain reliability floor applied to every tier.
const MinChainFactor = 0.9

type RiskTier int

const (
	RiskTierLow RiskTier = iota
	RiskTierModerate
	RiskTierHigh
)

func (t RiskTier) String() string {
	switch t {
	case RiskTierLow:
		return "low"
	case RiskTierModerate:
		return "moderate"
	case RiskTierHigh:
		return "high"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseRiskTier accepts low, moderate or high in any case.
func ParseRiskTier(s string) (RiskTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskTierLow, nil
	case "moderate", "medium":
		return RiskTierModerate, nil
	case "high":
		return RiskTierHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRiskTier, s)
}

func (t RiskTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *RiskTier) UnmarshalText(b []byte) error {
	parsed, err := ParseRiskTier(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Policy is the admission and sizing policy derived from a RiskTier.
// A Policy is treated as immutable; callers replace it as a whole.
type Policy struct {
	RiskTier             RiskTier `json:"risk_tier"`
	MinAPY               float64  `json:"min_apy"`                 // percent
	MinTVL               int64    `json:"min_tvl"`                 // integer units
	PreferredAssets      []string `json:"preferred_assets"`        // ordered symbols
	RebalanceThreshold   float64  `json:"rebalance_threshold"`     // percent drift
	MaxAllocationPerPool float64  `json:"max_allocation_per_pool"` // fraction in [0,1]
	RiskScoreFloor       float64  `json:"risk_score_floor"`
	BaseAllocation       float64  `json:"base_allocation"` // greedy starting share per pool
}

// Admit reports whether a pool passes every admission condition.
func (p Policy) Admit(pool PoolMetrics) bool {
	return pool.TVL >= p.MinTVL &&
		pool.APY >= p.MinAPY &&
		pool.RiskScore >= p.RiskScoreFloor &&
		pool.ChainFactor >= MinChainFactor &&
		pool.AuditStatus
}

// WithPreferredAssets returns a copy of the policy with a different asset list.
func (p Policy) WithPreferredAssets(assets []string) Policy {
	cp := p
	cp.PreferredAssets = append([]string(nil), assets...)
	return cp
}

// RebalanceFraction is the rebalance threshold expressed as a fraction.
func (p Policy) RebalanceFraction() float64 {
	return p.RebalanceThreshold / 100
}
