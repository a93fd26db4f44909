package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/flowedit/internal/pubsub"

	"go.uber.org/zap"
)

// EventsTopic is the bus topic carrying broadcast events.
const EventsTopic = "events"

const fanoutTimeout = 5 * time.Second

// Hub tracks live connections and fans broadcast events out to them.
// Events go through the bus first so every instance sharing it delivers
// them to its own clients.
type Hub struct {
	bus    pubsub.Bus
	logger *zap.Logger

	mu     sync.RWMutex
	conns  map[string]*Conn
	cancel func()
}

// NewHub creates a hub publishing on bus.
func NewHub(bus pubsub.Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bus:    bus,
		conns:  make(map[string]*Conn),
		logger: logger.With(zap.String("component", "ws_hub")),
	}
}

// Start subscribes to the events topic. It is a no-op when already
// started.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}
	cancel, err := h.bus.Subscribe(ctx, EventsTopic, h.fanout)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", EventsTopic, err)
	}
	h.cancel = cancel
	return nil
}

// Stop drops the bus subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	h.cancel = nil
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Add registers c for broadcasts.
func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("connection added", zap.String("conn_id", c.ID()), zap.Int("connections", n))
}

// Remove unregisters c.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID())
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Debug("connection removed", zap.String("conn_id", c.ID()), zap.Int("connections", n))
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Broadcast publishes an event to every connection on every instance.
func (h *Hub) Broadcast(ctx context.Context, typ string, payload any) error {
	data, err := json.Marshal(Event{Type: typ, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return h.bus.Publish(ctx, EventsTopic, data)
}

func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), fanoutTimeout)
		if err := c.write(ctx, data); err != nil {
			h.logger.Warn("event delivery failed", zap.String("conn_id", c.ID()), zap.Error(err))
		}
		cancel()
	}
}

// CloseAll closes every registered connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}
