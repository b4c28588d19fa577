// Package realtime fans record changes out to subscribed clients.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/events"
	"github.com/nexuscrm/salescrm/internal/domain/ports"
)

const subscriberBuffer = 32

// Subscription receives the changes of one owner, optionally limited to a
// set of tables.
type Subscription struct {
	id     uint64
	userID string
	tables map[string]bool
	ch     chan events.Change
	drops  atomic.Int64
}

// C is closed when the subscription is cancelled.
func (s *Subscription) C() <-chan events.Change { return s.ch }

// Dropped counts changes discarded because the subscriber was slow.
func (s *Subscription) Dropped() int64 { return s.drops.Load() }

func (s *Subscription) wants(c events.Change) bool {
	if c.UserID != s.userID {
		return false
	}
	return len(s.tables) == 0 || s.tables[c.Table]
}

// Hub delivers changes to in-process subscribers. With a relay, published
// changes take a round trip through it so every instance sees them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	relay  ports.ChangeRelay
	// relaying is set while Run receives from the relay.
	relaying atomic.Bool
}

// NewHub returns a hub. relay may be nil for single-instance deployments.
func NewHub(relay ports.ChangeRelay) *Hub {
	return &Hub{subs: make(map[uint64]*Subscription), relay: relay}
}

// Subscribe registers a subscriber. The returned func cancels it and closes C.
func (h *Hub) Subscribe(userID string, tables []string) (*Subscription, func()) {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan events.Change, subscriberBuffer),
	}
	if len(tables) > 0 {
		sub.tables = make(map[string]bool, len(tables))
		for _, t := range tables {
			sub.tables[t] = true
		}
	}

	h.mu.Lock()
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub.id)
			close(sub.ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Deliver hands c to every matching local subscriber without blocking.
func (h *Hub) Deliver(c events.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.wants(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
			sub.drops.Add(1)
		}
	}
}

// Relaying reports whether relayed changes are currently pumped into the hub.
func (h *Hub) Relaying() bool {
	return h.relaying.Load()
}

// Publish is an event handler: it relays c, and delivers it locally when no
// relay is configured, the relay fails, or Run is not pumping changes back.
func (h *Hub) Publish(ctx context.Context, c events.Change) error {
	if h.relay == nil {
		h.Deliver(c)
		return nil
	}
	if err := h.relay.Publish(ctx, c); err != nil {
		zap.L().Warn("relay publish failed, delivering locally", zap.String("table", c.Table), zap.Error(err))
		h.Deliver(c)
		return nil
	}
	if !h.relaying.Load() {
		h.Deliver(c)
	}
	return nil
}

// Run pumps relayed changes into the hub until ctx is done. Without a relay
// it just waits. When the relay stops early the error is logged and returned,
// and Publish falls back to local delivery.
func (h *Hub) Run(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return nil
	}
	defer h.relaying.Store(false)
	err := h.relay.Run(ctx, func() { h.relaying.Store(true) }, h.Deliver)
	if err != nil && ctx.Err() == nil {
		zap.L().Error("realtime relay stopped, delivering changes locally", zap.Error(err))
		return err
	}
	return nil
}
