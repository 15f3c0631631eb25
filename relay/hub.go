package relay

import (
	"log/slog"
	"sync"

	"github.com/chainballot/voter-oracle/interfaces"
	"github.com/chainballot/voter-oracle/metrics"
)

// hub is the fan-out point between the single consuming goroutine and the
// concurrently attaching and detaching subscribers.
type hub struct {
	metrics *metrics.Metrics
	log     *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
}

func newHub(m *metrics.Metrics, log *slog.Logger) *hub {
	return &hub{
		metrics: m,
		log:     log,
		subs:    make(map[uint64]*Subscriber),
	}
}

// Subscriber is one attached live event consumer.
type Subscriber struct {
	id  uint64
	ch  chan interfaces.LedgerEvent
	hub *hub
}

// Events returns the subscriber's delivery channel. The channel is closed
// when the subscriber detaches or is dropped for falling behind.
func (s *Subscriber) Events() <-chan interfaces.LedgerEvent {
	return s.ch
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscriber) Close() {
	s.hub.remove(s.id)
}

func (h *hub) subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{
		id:  h.nextID,
		ch:  make(chan interfaces.LedgerEvent, subscriberBuffer),
		hub: h,
	}
	h.subs[sub.id] = sub
	h.metrics.SetRelaySubscribers(len(h.subs))
	return sub
}

func (h *hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
		h.metrics.SetRelaySubscribers(len(h.subs))
	}
}

// broadcast delivers the record to every attached subscriber. A subscriber
// whose buffer is full is dropped so one slow consumer cannot stall the
// stream for the rest.
func (h *hub) broadcast(record interfaces.LedgerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		select {
		case sub.ch <- record:
		default:
			delete(h.subs, id)
			close(sub.ch)
			h.metrics.IncRelayDropped()
			h.log.Warn("Dropped slow event subscriber", slog.Uint64("subscriber", id))
		}
	}
	h.metrics.SetRelaySubscribers(len(h.subs))
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
