package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vidgen/internal/infra"
)

// EventJobUpdate is the single channel-scoped message type pushed to clients.
const EventJobUpdate = "job:update"

// Channel is one live WebSocket connection owned by a user.
type Channel struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	send   chan []byte
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub owns all live channels and the user registry, and dispatches typed
// events to the single channel bound to a user.
type Hub struct {
	mu       sync.Mutex
	registry *Registry
	channels map[string]*Channel
	logger   infra.Logger
}

// NewHub creates a hub around the given registry.
func NewHub(registry *Registry, logger infra.Logger) *Hub {
	return &Hub{
		registry: registry,
		channels: make(map[string]*Channel),
		logger:   logger,
	}
}

// Bind wraps the connection in a Channel, registers it as the user's active
// channel and starts its write pump.
func (h *Hub) Bind(userID string, conn *websocket.Conn) *Channel {
	ch := &Channel{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		send:   make(chan []byte, 16),
	}
	h.mu.Lock()
	h.channels[ch.ID] = ch
	h.mu.Unlock()
	h.registry.Register(userID, ch.ID)

	go ch.writePump()

	h.logger.Debug().Str("user_id", userID).Str("channel_id", ch.ID).Msg("realtime: channel bound")
	return ch
}

// Unbind removes the channel and, only if it is still the user's current
// binding, its registry entry.
func (h *Hub) Unbind(ch *Channel) {
	h.mu.Lock()
	_, open := h.channels[ch.ID]
	if open {
		delete(h.channels, ch.ID)
		close(ch.send)
	}
	h.mu.Unlock()
	if !open {
		return
	}
	h.registry.Remove(ch.ID)
	h.logger.Debug().Str("user_id", ch.UserID).Str("channel_id", ch.ID).Msg("realtime: channel unbound")
}

// Emit delivers an event to the user's active channel. Users without a live
// channel are silently skipped; delivery is best-effort with no retry, and a
// full send buffer drops the event rather than blocking the caller.
func (h *Hub) Emit(userID, event string, payload any) {
	channelID, ok := h.registry.Resolve(userID)
	if !ok {
		return
	}
	raw, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("realtime: encode event failed")
		return
	}
	// The send stays under the lock so a concurrent Unbind cannot close the
	// buffer mid-send; the select keeps it non-blocking either way.
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[channelID]
	if !ok {
		return
	}
	select {
	case ch.send <- raw:
	default:
		h.logger.Warn().Str("user_id", userID).Str("event", event).Msg("realtime: send buffer full, dropping event")
	}
}

func (c *Channel) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for raw := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
}
