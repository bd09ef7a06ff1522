// Package executor turns allocation deltas into instructions and hands them to
// the component that moves funds on chain.
package executor

import (
	"context"
	"errors"

	"github.com/elys-network/yieldbalancer/internal/types"
)

var (
	ErrNoInstructions   = errors.New("no instructions to submit")
	ErrConnectionFailed = errors.New("executor connection failed")
	ErrInsufficientCash = errors.New("insufficient unallocated funds")
)

// Executor submits instructions. Receipts are returned per instruction even when
// some fail; the error reports transport-level failure only.
type Executor interface {
	Submit(ctx context.Context, instructions []types.Instruction) ([]types.Receipt, error)
	Close() error
}

// PortfolioReader reports live positions.
type PortfolioReader interface {
	Holdings(ctx context.Context) ([]types.Holding, error)
	TotalValue(ctx context.Context) (float64, error)
}

// SafetyProxy deploys the emergency proxy if it is missing. It reports whether
// a deployment happened on this call.
type SafetyProxy interface {
	EnsureProvisioned(ctx context.Context) (bool, error)
}

// Manager is everything the decision engine needs from the execution side.
type Manager interface {
	Executor
	PortfolioReader
	SafetyProxy
}
