package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sheerbytes/peerlink/internal/logging"
)

const subscriberBuffer = 1024

type subscriber struct {
	name string
	ch   chan Event
	done chan struct{}
}

// Hub fans events out to subscribers. Each subscriber has its own buffered
// channel drained by a writer goroutine, so a slow subscriber never blocks an
// engine; when its buffer is full the event is dropped for that subscriber.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
	logger *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		subs:   make(map[int]*subscriber),
		logger: logger,
	}
}

// Subscribe registers fn to be called, in emit order, for every event.
// If fn returns an error the subscription ends. The returned function
// unsubscribes and waits briefly for pending deliveries.
func (h *Hub) Subscribe(name string, fn func(Event) error) (cancel func()) {
	sub := &subscriber{
		name: name,
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	go func() {
		defer close(sub.done)
		for ev := range sub.ch {
			if err := fn(ev); err != nil {
				h.logger.Debug("subscriber stopped", "subscriber", name, "error", err)
				go h.remove(id)
				return
			}
		}
	}()

	return func() { h.remove(id) }
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-sub.done:
	case <-time.After(1 * time.Second):
	}
}

// Emit delivers ev to every subscriber without blocking.
func (h *Hub) Emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("subscriber buffer full, dropping event", "subscriber", sub.name, "kind", ev.Kind, "conn_id", ev.ConnID)
		}
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	ids := make([]int, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	h.mu.RUnlock()
	for _, id := range ids {
		h.remove(id)
	}
}
