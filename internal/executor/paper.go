package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/types"
	"github.com/elys-network/yieldbalancer/internal/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaperExecutor simulates execution against an in-memory portfolio. Funds not
// placed in a pool are held as unallocated cash.
type PaperExecutor struct {
	mu          sync.Mutex
	cash        float64
	positions   map[string]float64
	precision   int
	provisioned bool
	now         func() time.Time
	logger      zerolog.Logger
}

func NewPaperExecutor(startingValue float64, precision int) (*PaperExecutor, error) {
	if startingValue < 0 {
		return nil, fmt.Errorf("starting value cannot be negative")
	}
	if precision < 0 || precision > utils.MaxPrecision {
		return nil, fmt.Errorf("%w: %d", utils.ErrInvalidPrecision, precision)
	}
	return &PaperExecutor{
		cash:      startingValue,
		positions: make(map[string]float64),
		precision: precision,
		now:       time.Now,
		logger:    logger.GetForComponent("paper_executor"),
	}, nil
}

func (p *PaperExecutor) Submit(ctx context.Context, instructions []types.Instruction) ([]types.Receipt, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	receipts := make([]types.Receipt, 0, len(instructions))
	for _, ins := range instructions {
		receipt := types.Receipt{Instruction: ins, Timestamp: p.now().UTC()}
		if err := p.apply(ins); err != nil {
			receipt.Message = err.Error()
			p.logger.Warn().Err(err).Str("pool_id", ins.PoolID).Str("type", string(ins.Type)).Msg("Paper instruction failed")
		} else {
			receipt.Success = true
			receipt.TxID = "paper-" + uuid.New().String()
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

func (p *PaperExecutor) apply(ins types.Instruction) error {
	amount, err := utils.FromBaseUnits(ins.Amount, p.precision)
	if err != nil {
		return err
	}
	switch ins.Type {
	case types.InstructionWithdraw:
		held := p.positions[ins.PoolID]
		if amount > held {
			amount = held
		}
		p.positions[ins.PoolID] = held - amount
		if p.positions[ins.PoolID] <= 0 {
			delete(p.positions, ins.PoolID)
		}
		p.cash += amount
	case types.InstructionDeposit:
		// a cent of slack absorbs float rounding from the sizing step
		if amount > p.cash+0.01 {
			return fmt.Errorf("%w: need %.2f, have %.2f", ErrInsufficientCash, amount, p.cash)
		}
		if amount > p.cash {
			amount = p.cash
		}
		p.cash -= amount
		p.positions[ins.PoolID] += amount
	default:
		return fmt.Errorf("unknown instruction type %q", ins.Type)
	}
	return nil
}

func (p *PaperExecutor) Holdings(ctx context.Context) ([]types.Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Holding, 0, len(p.positions))
	for id, v := range p.positions {
		out = append(out, types.Holding{PoolID: id, ValueUSD: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PoolID < out[j].PoolID })
	return out, nil
}

func (p *PaperExecutor) TotalValue(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := p.cash
	for _, v := range p.positions {
		total += v
	}
	return total, nil
}

// Cash returns the unallocated balance.
func (p *PaperExecutor) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

func (p *PaperExecutor) EnsureProvisioned(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.provisioned {
		return false, nil
	}
	p.provisioned = true
	p.logger.Warn().Msg("Paper safety proxy deployed")
	return true, nil
}

func (p *PaperExecutor) Close() error { return nil }
