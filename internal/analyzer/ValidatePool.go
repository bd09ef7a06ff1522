/*

This file contains the structural validation applied to pool metrics before they are scored.
Validation failures are not admission decisions: a malformed record is dropped and logged.

*/

package analyzer

import (
	"errors"
	"math"

	"github.com/elys-network/yieldbalancer/internal/types"
)

var ErrInvalidPoolData = errors.New("invalid pool data")

// ValidatePoolData checks identifiers, finiteness and ranges of a pool record.
func ValidatePoolData(pool types.PoolMetrics) error {
	if pool.PoolID == "" {
		return errors.Join(ErrInvalidPoolData, errors.New("pool id cannot be empty"))
	}
	if math.IsNaN(pool.APY) || math.IsInf(pool.APY, 0) {
		return errors.Join(ErrInvalidPoolData, errors.New("apy must be finite"))
	}
	if pool.TVL < 0 {
		return errors.Join(ErrInvalidPoolData, errors.New("tvl cannot be negative"))
	}
	if math.IsNaN(pool.RiskScore) || pool.RiskScore < 0 || pool.RiskScore > 1 {
		return errors.Join(ErrInvalidPoolData, errors.New("risk score must be between 0 and 1"))
	}
	if math.IsNaN(pool.ChainFactor) || pool.ChainFactor < 0 || pool.ChainFactor > 1 {
		return errors.Join(ErrInvalidPoolData, errors.New("chain factor must be between 0 and 1"))
	}
	return nil
}
