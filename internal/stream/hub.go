// Package stream implements the real-time fan-out: newly ingested events are
// broadcast to live subscribers of the same tenant, best-effort, with no
// replay. The durable path stays the pull-based inbox.
package stream

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/YibinLong/ZapStream/internal/domain/event"
)

var (
	subscriberCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_subscribers",
		Help: "Currently connected stream subscribers",
	})
	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_dropped_total",
		Help: "Frames dropped because a subscriber buffer was full",
	})
)

// Publisher is the sink side of the fan-out. The ingestion pipeline calls it
// after a successful store write; implementations must never block it.
type Publisher interface {
	Publish(ctx context.Context, ev *event.Event)
}

// subscriberBuffer absorbs short bursts per subscriber. A consumer that
// falls further behind loses frames rather than back-pressuring ingestion.
const subscriberBuffer = 16

// Subscription is one live stream. C is never closed; a concurrent Publish
// may still hold a reference to the channel after Cancel, so readers stop on
// their own context instead of waiting for close.
type Subscription struct {
	C      <-chan *event.Event
	cancel func()
}

// Cancel deregisters the subscription. Safe to call twice.
func (s *Subscription) Cancel() { s.cancel() }

// Hub is the in-process broadcast registry, one subscriber set per tenant.
type Hub struct {
	mu      sync.Mutex
	tenants map[string]map[chan *event.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{tenants: make(map[string]map[chan *event.Event]struct{})}
}

func (h *Hub) Subscribe(tenantID string) *Subscription {
	ch := make(chan *event.Event, subscriberBuffer)

	h.mu.Lock()
	subs, ok := h.tenants[tenantID]
	if !ok {
		subs = make(map[chan *event.Event]struct{})
		h.tenants[tenantID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	subscriberCount.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if subs, ok := h.tenants[tenantID]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(h.tenants, tenantID)
				}
			}
			h.mu.Unlock()
			subscriberCount.Dec()
		})
	}

	return &Subscription{C: ch, cancel: cancel}
}

// Publish delivers ev to every live subscriber of ev.TenantID. Sends are
// non-blocking: a full subscriber buffer drops the frame for that subscriber
// only.
func (h *Hub) Publish(ctx context.Context, ev *event.Event) {
	h.mu.Lock()
	subs := h.tenants[ev.TenantID]
	targets := make([]chan *event.Event, 0, len(subs))
	for ch := range subs {
		targets = append(targets, ch)
	}
	h.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- ev:
		default:
			framesDropped.Inc()
		}
	}
}

// Fanout publishes to several sinks in order, typically the hub plus the
// optional Kafka mirror or Redis backplane.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev *event.Event) {
	for _, p := range f {
		p.Publish(ctx, ev)
	}
}
