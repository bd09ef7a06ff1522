/*

This file contains the types exchanged with the on-chain executor: the instructions
the engine requests and the receipts the executor returns.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
)

// InstructionType defines the low-level operations an executor performs.
type InstructionType string

const (
	InstructionDeposit  InstructionType = "DEPOSIT"
	InstructionWithdraw InstructionType = "WITHDRAW"
)

// Instruction asks the executor to move funds into or out of one pool.
type Instruction struct {
	Type     InstructionType `json:"type"`
	PoolID   string          `json:"pool_id"`
	Protocol string          `json:"protocol,omitempty"`
	Fraction float64         `json:"fraction"` // share of portfolio value being moved
	Amount   sdkmath.Int     `json:"amount"`   // base units of Denom
	Denom    string          `json:"denom"`
	Reason   string          `json:"reason,omitempty"`
}

// Receipt is the executor's per-instruction outcome.
type Receipt struct {
	Instruction Instruction `json:"instruction"`
	Success     bool        `json:"success"`
	TxID        string      `json:"tx_id,omitempty"`
	Message     string      `json:"message,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Holding is one live position as reported by the portfolio reader.
type Holding struct {
	PoolID   string  `json:"pool_id"`
	Protocol string  `json:"protocol,omitempty"`
	ValueUSD float64 `json:"value_usd"`
}
