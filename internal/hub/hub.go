package hub

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/protocol"
)

const defaultQueueSize = 256

// DisconnectHook runs after an observer has been removed.
type DisconnectHook func(connID string)

// Observer is one connected dashboard client. Messages queued for it are
// read from Messages by the transport's write pump.
type Observer struct {
	ID          string
	ConnectedAt time.Time

	send chan []byte
}

// Messages returns the observer's outbound queue. It is closed on
// disconnect.
func (o *Observer) Messages() <-chan []byte { return o.send }

// Stats is a snapshot of the hub's delivery counters.
type Stats struct {
	Observers      int    `json:"observers"`
	Published      uint64 `json:"published"`
	Delivered      uint64 `json:"delivered"`
	Dropped        uint64 `json:"dropped"`
	EncodeFailures uint64 `json:"encodeFailures"`
}

// Hub fans events out to every connected observer. Delivery is
// best-effort: a slow observer loses messages, nobody else notices.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]*Observer
	hooks     []DisconnectHook
	queueSize int
	logger    *slog.Logger

	published      atomic.Uint64
	delivered      atomic.Uint64
	dropped        atomic.Uint64
	encodeFailures atomic.Uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithQueueSize sets the per-observer outbound buffer.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithLogger sets the logger that receives the log-line audit trail.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		observers: make(map[string]*Observer),
		queueSize: defaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnDisconnect registers a hook called with the connection id of every
// observer that disconnects.
func (h *Hub) OnDisconnect(hook DisconnectHook) {
	h.mu.Lock()
	h.hooks = append(h.hooks, hook)
	h.mu.Unlock()
}

// Connect registers a new observer and announces it.
func (h *Hub) Connect() *Observer {
	o := &Observer{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now(),
		send:        make(chan []byte, h.queueSize),
	}

	h.mu.Lock()
	h.observers[o.ID] = o
	h.mu.Unlock()

	h.logger.Debug("observer connected", "conn", o.ID)
	h.Publish(events.Status("✅", fmt.Sprintf("Connected to log server at %s", o.ConnectedAt.Format("15:04:05"))))
	return o
}

// Disconnect removes an observer, closes its queue and runs the disconnect
// hooks. Unknown ids are ignored.
func (h *Hub) Disconnect(id string) {
	h.mu.Lock()
	o, ok := h.observers[id]
	if ok {
		delete(h.observers, id)
		close(o.send)
	}
	hooks := make([]DisconnectHook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	if !ok {
		return
	}

	for _, hook := range hooks {
		hook(id)
	}

	h.logger.Debug("observer disconnected", "conn", id)
	h.Publish(events.Status("❌", fmt.Sprintf("Disconnected from log server at %s", time.Now().Format("15:04:05"))))
}

// Publish delivers e to every connected observer without blocking.
func (h *Hub) Publish(e events.Event) {
	h.published.Add(1)

	if l, ok := e.(events.LogLine); ok {
		h.logger.Info(l.Text(), "type", string(l.Type))
	}

	data, err := protocol.Encode(e)
	if err != nil {
		h.encodeFailures.Add(1)
		h.logger.Error("encode event", "type", e.WireType(), "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, o := range h.observers {
		h.deliver(o, data)
	}
}

// SendTo queues raw wire bytes for a single observer. Returns false if the
// observer is gone or its queue is full.
func (h *Hub) SendTo(id string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	o, ok := h.observers[id]
	if !ok {
		return false
	}
	return h.deliver(o, data)
}

// deliver must be called with h.mu held for reading.
func (h *Hub) deliver(o *Observer, data []byte) bool {
	select {
	case o.send <- data:
		h.delivered.Add(1)
		return true
	default:
		// Observer buffer full, skip.
		h.dropped.Add(1)
		return false
	}
}

// Len returns the number of connected observers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Stats returns the current delivery counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Observers:      h.Len(),
		Published:      h.published.Load(),
		Delivered:      h.delivered.Load(),
		Dropped:        h.dropped.Load(),
		EncodeFailures: h.encodeFailures.Load(),
	}
}

// Shutdown disconnects every observer.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.Disconnect(id)
	}
}
