package sentiment

import (
	"context"
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/types"
)

// HistoryStore keeps past readings for the historical fallback.
type HistoryStore interface {
	Append(ctx context.Context, reading types.SentimentReading) error
	Since(ctx context.Context, cutoff time.Time) ([]types.SentimentReading, error)
}

const defaultMemoryHistory = 4096

// MemoryHistory is a bounded in-process history. Oldest readings are evicted first.
type MemoryHistory struct {
	mu       sync.RWMutex
	readings []types.SentimentReading
	capacity int
}

func NewMemoryHistory(capacity int) *MemoryHistory {
	if capacity <= 0 {
		capacity = defaultMemoryHistory
	}
	return &MemoryHistory{capacity: capacity}
}

func (h *MemoryHistory) Append(_ context.Context, reading types.SentimentReading) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, reading)
	if over := len(h.readings) - h.capacity; over > 0 {
		h.readings = append([]types.SentimentReading(nil), h.readings[over:]...)
	}
	return nil
}

func (h *MemoryHistory) Since(_ context.Context, cutoff time.Time) ([]types.SentimentReading, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []types.SentimentReading
	for _, r := range h.readings {
		if !r.Timestamp.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}
