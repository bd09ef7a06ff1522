// Package strategy maps a sentiment score to a risk-band mix and evaluates
// user-defined sentiment strategies.
package strategy

import (
	"fmt"
	"math"

	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/types"
)

type SelectorConfig struct {
	Bearish            types.Mix
	Neutral            types.Mix
	Bullish            types.Mix
	Defensive          types.Mix
	EmergencyThreshold int
}

// DefaultSelectorConfig returns the built-in band mixes with the given defensive mix.
func DefaultSelectorConfig(defensive types.Mix, emergencyThreshold int) SelectorConfig {
	return SelectorConfig{
		Bearish:            config.BearishMix,
		Neutral:            config.NeutralMix,
		Bullish:            config.BullishMix,
		Defensive:          defensive,
		EmergencyThreshold: emergencyThreshold,
	}
}

// Selector is stateless after construction and safe for concurrent use.
type Selector struct {
	cfg SelectorConfig
}

func NewSelector(cfg SelectorConfig) (*Selector, error) {
	for name, mix := range map[string]types.Mix{
		"bearish":   cfg.Bearish,
		"neutral":   cfg.Neutral,
		"bullish":   cfg.Bullish,
		"defensive": cfg.Defensive,
	} {
		if len(mix) == 0 {
			return nil, fmt.Errorf("selector: %s mix cannot be empty", name)
		}
		if mix.Total() <= 0 {
			return nil, fmt.Errorf("selector: %s mix has no weight", name)
		}
	}
	if cfg.EmergencyThreshold < 0 || cfg.EmergencyThreshold > 100 {
		return nil, fmt.Errorf("selector: emergency threshold %d out of range", cfg.EmergencyThreshold)
	}
	return &Selector{cfg: cfg}, nil
}

// Select clamps the score to [0,100], truncates it and picks the band mix.
// Scores at or below the emergency threshold override the band with the defensive mix.
func (s *Selector) Select(score float64) types.StrategyDecision {
	n := NormalizeScore(score)

	if n <= s.cfg.EmergencyThreshold {
		return types.StrategyDecision{
			Score:                n,
			Band:                 types.BandDefensive,
			Mix:                  s.cfg.Defensive,
			Emergency:            true,
			ProvisionSafetyProxy: true,
		}
	}

	decision := types.StrategyDecision{Score: n}
	switch {
	case n <= config.BearishBandMax:
		decision.Band, decision.Mix = types.BandBearish, s.cfg.Bearish
	case n >= config.BullishBandMin:
		decision.Band, decision.Mix = types.BandBullish, s.cfg.Bullish
	default:
		decision.Band, decision.Mix = types.BandNeutral, s.cfg.Neutral
	}
	return decision
}

// NormalizeScore clamps to [0,100] and truncates toward zero. NaN maps to 0.
func NormalizeScore(score float64) int {
	if math.IsNaN(score) {
		return 0
	}
	return int(math.Max(0, math.Min(100, score)))
}
