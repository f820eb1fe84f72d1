// Package client implements the mobile app's conversation messaging flow: the
// live-channel connection manager, the cached conversation/history loaders,
// the per-conversation composer/merger session, and the local identity store.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"ghar-chat-service/internal/models"
)

var ErrNotConnected = errors.New("live channel not connected")

// Handler receives one inbound live-channel event.
type Handler func(models.ServerEvent)

// OutgoingMessage is a fire-and-forget live-channel send.
type OutgoingMessage struct {
	SenderID      string
	ReceiverID    string
	Text          string
	CorrelationID string
}

// Transport owns the single live bidirectional connection for the signed-in
// user. It is a pure transport: routing state (which peer a screen talks to)
// lives in the conversation session, not here, so two open screens can never
// redirect each other's sends.
//
// Connection failures are not retried; the caller detects a dropped channel
// and reconnects. The durable REST write remains the source of truth either way.
type Transport struct {
	url   string
	token string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	handlers  map[int]Handler
	nextID    int
}

// NewTransport prepares a transport for the websocket endpoint. No I/O happens
// until Connect.
func NewTransport(wsURL, token string) *Transport {
	return &Transport{
		url:      wsURL,
		token:    token,
		handlers: make(map[int]Handler),
	}
}

// Connect dials the live channel and announces the user's identity. Calling it
// again while the channel is live is a no-op, so a session screen cannot
// double-register the user.
func (t *Transport) Connect(ctx context.Context, userID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}

	header := http.Header{}
	if t.token != "" {
		header.Set("Authorization", "Bearer "+t.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if err != nil {
		return err
	}

	register := models.ClientFrame{Type: models.EventRegister, UserID: userID}
	if err := conn.WriteJSON(register); err != nil {
		conn.Close()
		return err
	}

	t.conn = conn
	t.connected = true
	go t.readLoop(conn)
	return nil
}

// Connected reports whether the live channel is currently up.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// Send emits a message over the live channel. No acknowledgment is awaited;
// delivery confirmation comes from the durable write, not from here.
func (t *Transport) Send(out OutgoingMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return ErrNotConnected
	}
	frame := models.ClientFrame{
		Type:          models.EventMessage,
		SenderID:      out.SenderID,
		ReceiverID:    out.ReceiverID,
		Text:          out.Text,
		CorrelationID: out.CorrelationID,
	}
	return t.conn.WriteJSON(frame)
}

// Subscribe registers a handler for inbound events. Registrations are
// additive; the returned cancel func removes this handler so a closed screen
// stops receiving events.
func (t *Transport) Subscribe(h Handler) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.handlers[id] = h
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.handlers, id)
	}
}

// Disconnect tears down the channel. Registered handlers survive so a
// subsequent Connect resumes delivery to them.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	conn := t.conn
	t.conn = nil
	return conn.Close()
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.connected = false
				t.conn = nil
			}
			t.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("live channel read error: %v", err)
			}
			return
		}

		var event models.ServerEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("live channel bad event: %v", err)
			continue
		}
		if event.Type != models.EventMessage {
			continue
		}

		t.mu.Lock()
		handlers := make([]Handler, 0, len(t.handlers))
		for _, h := range t.handlers {
			handlers = append(handlers, h)
		}
		t.mu.Unlock()

		for _, h := range handlers {
			h(event)
		}
	}
}
