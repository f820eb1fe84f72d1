package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"ghar-chat-service/internal/auth"
	"ghar-chat-service/internal/models"
	"ghar-chat-service/internal/observability"
	"ghar-chat-service/internal/presence"
)

// ChatWebSocketHandler owns the live channel endpoint.
type ChatWebSocketHandler struct {
	hub       *Hub
	presence  presence.Registry
	jwtSecret string
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, registry presence.Registry, jwtSecret string) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, presence: registry, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and runs its read loop. The first frame must
// be an identity registration; message frames are then routed to the
// receiver's live connections. Delivery is fire-and-forget: the durable REST
// write is the source of truth and nothing is retried here.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("ghar-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	meta := observability.MetaFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    meta.DeviceID,
		IP:          meta.IP,
		RequestID:   meta.RequestID,
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}

	go h.readLoop(ctx, conn, userID, info)
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, userID string, info ConnInfo) {
	registered := false
	var closeReason string

	defer func() {
		if registered {
			remaining := h.hub.Unregister(userID, conn)
			if remaining == 0 {
				if err := h.presence.SetOffline(ctx, userID); err != nil {
					log.Printf("presence set offline failed: %v", err)
				}
			}
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.publishLifecycle(ctx, "ws_disconnect", info, closeReason)
		}
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
			}
			return
		}

		var frame models.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("websocket bad frame from %s: %v", userID, err)
			continue
		}

		switch frame.Type {
		case models.EventRegister:
			// Re-registration on an already-registered connection is a no-op.
			if registered {
				continue
			}
			if frame.UserID != "" && frame.UserID != userID {
				closeReason = "register user mismatch"
				return
			}
			h.hub.Register(userID, conn, info)
			registered = true
			if err := h.presence.SetOnline(ctx, userID); err != nil {
				log.Printf("presence set online failed: %v", err)
			}
			observability.IncWSActive()
			observability.IncWSEvent("ws_connect")
			h.publishLifecycle(ctx, "ws_connect", info, "")

		case models.EventMessage:
			if !registered || frame.ReceiverID == "" || strings.TrimSpace(frame.Text) == "" {
				continue
			}
			// Keep the presence entry alive while the user is actively sending.
			if err := h.presence.SetOnline(ctx, userID); err != nil {
				log.Printf("presence refresh failed: %v", err)
			}
			h.hub.Deliver(frame.ReceiverID, models.ServerEvent{
				Type:          models.EventMessage,
				SenderID:      userID,
				Text:          frame.Text,
				CorrelationID: frame.CorrelationID,
			})

		default:
			log.Printf("websocket unknown frame type %q from %s", frame.Type, userID)
		}
	}
}

func (h *ChatWebSocketHandler) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, "ws_events.chat", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	})
}

func (h *ChatWebSocketHandler) validateToken(header string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return auth.ValidateToken(h.jwtSecret, parts[1])
	}
	return "", auth.ErrInvalidToken
}
