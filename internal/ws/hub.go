package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ghar-chat-service/internal/models"
	"ghar-chat-service/internal/observability"
)

// client wraps a registered connection. Writes are serialized per connection
// because deliveries can originate from several reader goroutines at once.
type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) writeJSON(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains the registry of live connections keyed by user id. A user may
// hold several connections (two devices, a re-opened tab); an event addressed
// to a user fans out to all of them.
type Hub struct {
	users map[string]map[*websocket.Conn]*client
	mu    sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{users: make(map[string]map[*websocket.Conn]*client)}
}

// Register announces a user's connection to the hub.
func (h *Hub) Register(userID string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.users[userID]; !ok {
		h.users[userID] = make(map[*websocket.Conn]*client)
	}
	h.users[userID][conn] = &client{conn: conn, info: info}
}

// Unregister removes a connection and reports how many connections the user
// still holds, so callers know when the user went fully offline.
func (h *Hub) Unregister(userID string, conn *websocket.Conn) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.users, userID)
			return 0
		}
		return len(conns)
	}
	return 0
}

// Connections reports how many live connections a user holds.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Deliver pushes an event to every connection the receiver holds and returns
// the number of connections reached. Zero means the receiver is offline; the
// durable write remains the source of truth, so nothing is buffered.
func (h *Hub) Deliver(receiverID string, event models.ServerEvent) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.users[receiverID]))
	for _, cl := range h.users[receiverID] {
		clients = append(clients, cl)
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	delivered := 0
	for _, cl := range clients {
		if err := cl.writeJSON(payload); err != nil {
			log.Printf("websocket write error: %v", err)
			cl.conn.Close()
			h.Unregister(receiverID, cl.conn)
			h.publishWSError(receiverID, cl, err)
			observability.IncMessageDelivered("write_error")
			continue
		}
		delivered++
		observability.IncMessageDelivered("ok")
	}
	return delivered
}

func (h *Hub) publishWSError(userID string, cl *client, err error) {
	info := cl.info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   userID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	_ = observability.PublishEvent(context.Background(), "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	})
	observability.IncWSEvent("ws_error")
}
