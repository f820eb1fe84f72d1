package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghar-chat-service/internal/models"
)

// echoWSServer upgrades, expects a register frame first, then echoes every
// message frame back as a server event.
func echoWSServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var register models.ClientFrame
		if err := conn.ReadJSON(&register); err != nil || register.Type != models.EventRegister {
			return
		}

		for {
			var frame models.ClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			event := models.ServerEvent{
				Type:          models.EventMessage,
				SenderID:      frame.SenderID,
				Text:          frame.Text,
				CorrelationID: frame.CorrelationID,
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestTransportSendAndReceive(t *testing.T) {
	srv, wsURL := echoWSServer(t)
	defer srv.Close()

	transport := NewTransport(wsURL, "tok")
	require.NoError(t, transport.Connect(context.Background(), "u1"))
	defer transport.Disconnect()
	require.True(t, transport.Connected())

	events := make(chan models.ServerEvent, 1)
	cancel := transport.Subscribe(func(event models.ServerEvent) {
		events <- event
	})
	defer cancel()

	require.NoError(t, transport.Send(OutgoingMessage{
		SenderID:      "u1",
		ReceiverID:    "u2",
		Text:          "hello",
		CorrelationID: "corr-1",
	}))

	select {
	case event := <-events:
		assert.Equal(t, "hello", event.Text)
		assert.Equal(t, "u1", event.SenderID)
		assert.Equal(t, "corr-1", event.CorrelationID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestTransportConnectIsIdempotent(t *testing.T) {
	srv, wsURL := echoWSServer(t)
	defer srv.Close()

	transport := NewTransport(wsURL, "")
	require.NoError(t, transport.Connect(context.Background(), "u1"))
	defer transport.Disconnect()

	// A second Connect while live must not re-dial or re-register.
	require.NoError(t, transport.Connect(context.Background(), "u1"))
	assert.True(t, transport.Connected())
}

func TestTransportSendWhenDisconnected(t *testing.T) {
	transport := NewTransport("ws://127.0.0.1:0/ws", "")
	err := transport.Send(OutgoingMessage{SenderID: "u1", ReceiverID: "u2", Text: "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestTransportSubscribeCancelStopsDelivery(t *testing.T) {
	srv, wsURL := echoWSServer(t)
	defer srv.Close()

	transport := NewTransport(wsURL, "")
	require.NoError(t, transport.Connect(context.Background(), "u1"))
	defer transport.Disconnect()

	var mu sync.Mutex
	var got []string
	cancel := transport.Subscribe(func(event models.ServerEvent) {
		mu.Lock()
		got = append(got, event.Text)
		mu.Unlock()
	})

	keep := make(chan models.ServerEvent, 2)
	keepCancel := transport.Subscribe(func(event models.ServerEvent) {
		keep <- event
	})
	defer keepCancel()

	require.NoError(t, transport.Send(OutgoingMessage{SenderID: "u1", ReceiverID: "u2", Text: "first"}))
	select {
	case <-keep:
	case <-time.After(2 * time.Second):
		t.Fatal("first event not delivered")
	}

	cancel()

	require.NoError(t, transport.Send(OutgoingMessage{SenderID: "u1", ReceiverID: "u2", Text: "second"}))
	select {
	case <-keep:
	case <-time.After(2 * time.Second):
		t.Fatal("second event not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first"}, got)
}

func TestTransportDisconnectThenSend(t *testing.T) {
	srv, wsURL := echoWSServer(t)
	defer srv.Close()

	transport := NewTransport(wsURL, "")
	require.NoError(t, transport.Connect(context.Background(), "u1"))
	require.NoError(t, transport.Disconnect())
	assert.False(t, transport.Connected())

	err := transport.Send(OutgoingMessage{SenderID: "u1", ReceiverID: "u2", Text: "x"})
	assert.ErrorIs(t, err, ErrNotConnected)
}
