package catalog

import (
	"sync"
	"testing"

	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	alerts []types.Alert
}

func (r *recorder) Publish(a types.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

func pool(id string, apy, risk float64) types.PoolMetrics {
	return types.PoolMetrics{PoolID: id, Protocol: "ref", APY: apy, RiskScore: risk, TVL: 1_000_000, ChainFactor: 1, AuditStatus: true}
}

func TestFirstRefreshRaisesNothing(t *testing.T) {
	rec := &recorder{}
	c := New(rec)

	raised := c.Refresh([]types.PoolMetrics{pool("a", 10, 0.9), pool("b", 12, 0.8)})
	assert.Empty(t, raised)
	assert.Empty(t, rec.alerts)
	assert.Equal(t, 2, c.Len())
}

func TestApyDropIsAbsoluteAndStrict(t *testing.T) {
	rec := &recorder{}
	c := New(rec)
	c.Refresh([]types.PoolMetrics{pool("a", 10, 0.9), pool("b", 10, 0.9)})

	c.Refresh([]types.PoolMetrics{pool("a", 8, 0.9), pool("b", 7.9, 0.9)})

	require.Len(t, rec.alerts, 1)
	drop, ok := rec.alerts[0].(types.ApyDrop)
	require.True(t, ok)
	assert.Equal(t, "b", drop.PoolID)
	assert.Equal(t, 10.0, drop.OldAPY)
	assert.Equal(t, 7.9, drop.NewAPY)
}

func TestRiskIncrease(t *testing.T) {
	rec := &recorder{}
	c := New(rec)
	c.Refresh([]types.PoolMetrics{pool("a", 10, 0.9)})

	c.Refresh([]types.PoolMetrics{pool("a", 10, 0.71)})

	require.Len(t, rec.alerts, 1)
	assert.Equal(t, types.RiskIncrease{PoolID: "a", RiskFactor: 0.71}, rec.alerts[0])
}

func TestBothAlertsCanFireAndRecordIsReplaced(t *testing.T) {
	c := New(nil)
	c.Refresh([]types.PoolMetrics{pool("a", 20, 1.0)})

	raised := c.Refresh([]types.PoolMetrics{pool("a", 5, 0.5)})
	require.Len(t, raised, 2)
	assert.Equal(t, types.AlertApyDrop, raised[0].Kind())
	assert.Equal(t, types.AlertRiskIncrease, raised[1].Kind())

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 5.0, got.APY)

	// comparison is against the overwritten record, not the original
	assert.Empty(t, c.Refresh([]types.PoolMetrics{pool("a", 4, 0.45)}))
}

func TestSnapshotKeepsFirstSeenOrder(t *testing.T) {
	c := New(nil)
	c.Refresh([]types.PoolMetrics{pool("b", 1, 1), pool("a", 1, 1)})
	c.Refresh([]types.PoolMetrics{pool("c", 1, 1), pool("b", 2, 1)})

	var ids []string
	for _, p := range c.Snapshot() {
		ids = append(ids, p.PoolID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestPoolWithoutIDIsSkipped(t *testing.T) {
	c := New(nil)
	c.Refresh([]types.PoolMetrics{pool("", 10, 1)})
	assert.Equal(t, 0, c.Len())
}
