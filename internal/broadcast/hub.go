package broadcast

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// DefaultBuffer is the per-observer queue size.
const DefaultBuffer = 16

// SnapshotFunc returns the full snapshot handed to a new observer.
// It is called with the hub lock held and must not call back into the hub.
type SnapshotFunc func() any

// Publisher is the sending side of the hub.
type Publisher interface {
	Publish(msg Message)
}

// HubConfig holds configuration for the hub.
type HubConfig struct {
	// Buffer is the per-observer queue size (default: DefaultBuffer).
	Buffer int

	// Snapshot produces the initial message payload for new observers.
	Snapshot SnapshotFunc

	// Clock stamps messages without a timestamp (default: real clock).
	Clock clockwork.Clock

	// Metrics is optional.
	Metrics *Metrics

	Logger zerolog.Logger
}

// Observer is one subscriber. Messages are delivered on C until the observer is dropped or unsubscribed.
type Observer struct {
	ID    string
	queue chan Message
}

// C returns the observer's delivery channel. It is closed when the observer leaves the hub.
func (o *Observer) C() <-chan Message {
	return o.queue
}

// Hub delivers messages to every registered observer without blocking on any of them.
type Hub struct {
	mu        sync.Mutex
	observers map[string]*Observer
	closed    bool

	buffer   int
	snapshot SnapshotFunc
	clock    clockwork.Clock
	metrics  *Metrics
	logger   zerolog.Logger

	dropped   atomic.Int64
	delivered atomic.Int64
}

// NewHub creates a hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Hub{
		observers: make(map[string]*Observer),
		buffer:    cfg.Buffer,
		snapshot:  cfg.Snapshot,
		clock:     cfg.Clock,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Subscribe registers a new observer. The current snapshot is queued before
// any message published after registration.
func (h *Hub) Subscribe() *Observer {
	o := &Observer{
		ID:    uuid.NewString(),
		queue: make(chan Message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(o.queue)
		return o
	}

	if h.snapshot != nil {
		o.queue <- Message{Type: TypeSnapshot, Payload: h.snapshot(), Timestamp: h.clock.Now()}
	}
	h.observers[o.ID] = o
	h.metrics.observerJoined()

	h.logger.Debug().Str("observer_id", o.ID).Int("observers", len(h.observers)).Msg("observer subscribed")
	return o
}

// Unsubscribe removes an observer. It is safe to call more than once.
func (h *Hub) Unsubscribe(o *Observer) {
	if o == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(o.ID)
}

// Publish queues msg for every observer. Observers whose queue is full are dropped.
func (h *Hub) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = h.clock.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, o := range h.observers {
		select {
		case o.queue <- msg:
			h.delivered.Add(1)
		default:
			h.removeLocked(id)
			h.dropped.Add(1)
			h.metrics.observerDropped()
			h.logger.Warn().Str("observer_id", id).Str("type", string(msg.Type)).Msg("dropping slow observer")
		}
	}
}

// Count returns the number of registered observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// Stats returns delivery counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Observers: h.Count(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// Close drops every observer and rejects further subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id := range h.observers {
		h.removeLocked(id)
	}
	h.closed = true
}

func (h *Hub) removeLocked(id string) {
	o, ok := h.observers[id]
	if !ok {
		return
	}
	delete(h.observers, id)
	close(o.queue)
	h.metrics.observerLeft()
}

// Stats are hub delivery counters.
type Stats struct {
	Observers int   `json:"observers"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

// Now returns the hub clock's time.
func (h *Hub) Now() time.Time {
	return h.clock.Now()
}
