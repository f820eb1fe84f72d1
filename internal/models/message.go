package models

import "time"

// Message is one chat message. The ID is server-assigned; a client may hold a
// provisional placeholder between submission and the durable-write response.
type Message struct {
	ID             string    `db:"id" json:"_id"`
	ConversationID string    `db:"conversation_id" json:"conversationId"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	Text           string    `db:"body" json:"text"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Live-channel frame types.
const (
	EventRegister = "register"
	EventMessage  = "message"
)

// ClientFrame is what a connected client sends over the live channel: first a
// register frame announcing its user id, then message frames.
type ClientFrame struct {
	Type       string `json:"type"`
	UserID     string `json:"user_id,omitempty"`
	SenderID   string `json:"sender_id,omitempty"`
	ReceiverID string `json:"receiver_id,omitempty"`
	Text       string `json:"text,omitempty"`
	// CorrelationID ties a live frame to the sender's provisional entry so
	// receivers of their own echo can reconcile instead of duplicating.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ServerEvent is pushed to receivers over the live channel.
type ServerEvent struct {
	Type          string   `json:"type"`
	SenderID      string   `json:"sender_id,omitempty"`
	Text          string   `json:"text,omitempty"`
	CorrelationID string   `json:"correlation_id,omitempty"`
	Message       *Message `json:"message,omitempty"`
}
