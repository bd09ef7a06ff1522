package alerts

import (
	"sync"
	"time"

	"github.com/elys-network/yieldbalancer/internal/metrics"
	"github.com/elys-network/yieldbalancer/internal/types"

	"github.com/google/uuid"
)

// DefaultBacklog is the per-subscriber buffer when none is configured.
const DefaultBacklog = 100

// Publisher is the producer side of the bus.
type Publisher interface {
	Publish(alert types.Alert)
}

// Bus is a multi-producer, multi-consumer broadcast channel. Every subscriber
// receives every event published after it subscribed. Publish never blocks:
// when a subscriber's backlog is full the oldest queued event is discarded.
type Bus struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	backlog int
	closed  bool
	now     func() time.Time
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	id  uint64
	ch  chan types.AlertEvent
	bus *Bus
}

func NewBus(backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{
		subs:    make(map[uint64]*Subscription),
		backlog: backlog,
		now:     time.Now,
	}
}

// Subscribe registers a consumer. On a closed bus the returned channel is already closed.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{ch: make(chan types.AlertEvent, b.backlog), bus: b}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish wraps the alert in an envelope and offers it to every subscriber.
// Publishing with no subscribers, or on a closed bus, is a no-op.
func (b *Bus) Publish(alert types.Alert) {
	if alert == nil {
		return
	}
	event := types.AlertEvent{
		ID:        uuid.NewString(),
		Timestamp: b.now().UTC(),
		Alert:     alert,
	}
	metrics.AlertsPublished.WithLabelValues(string(alert.Kind())).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		sub.offer(event)
	}
}

// offer enqueues without blocking, evicting the oldest event if the buffer is full.
func (s *Subscription) offer(event types.AlertEvent) {
	select {
	case s.ch <- event:
		return
	default:
	}
	select {
	case <-s.ch:
		metrics.AlertsDropped.Inc()
	default:
	}
	select {
	case s.ch <- event:
	default:
		// another producer refilled the slot first
		metrics.AlertsDropped.Inc()
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscription channel. Later publishes are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.ch)
		delete(b.subs, id)
	}
}

// C returns the event channel. It is closed on Unsubscribe or bus Close.
func (s *Subscription) C() <-chan types.AlertEvent {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel. Safe to call twice.
func (s *Subscription) Unsubscribe() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s.id]; !ok {
		return
	}
	delete(b.subs, s.id)
	close(s.ch)
}
