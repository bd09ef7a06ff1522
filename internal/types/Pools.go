/*

This is a custom type for pools which contains all the state needed for admitting and scoring pools

*/

package types

type PoolMetrics struct {
	Protocol    string  `json:"protocol"`     // e.g., "ref-finance"
	PoolID      string  `json:"pool_id"`      // unique key in the catalog
	APY         float64 `json:"apy"`          // percent
	TVL         int64   `json:"tvl"`          // integer units
	RiskScore   float64 `json:"risk_score"`   // 0 to 1, higher is safer
	AuditStatus bool    `json:"audit_status"` // audited contracts only
	TokenPair   string  `json:"token_pair"`   // e.g., "NEAR-USDC"
	ChainFactor float64 `json:"chain_factor"` // 0 to 1, chain reliability

	// Category is the risk-band bucket the pool belongs to, e.g. "staking".
	Category string `json:"category,omitempty"`
}

// Score is the ranking key used by the allocation engine.
func (p PoolMetrics) Score() float64 {
	return p.APY * p.RiskScore * p.ChainFactor
}
