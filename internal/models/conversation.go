package models

import "time"

// Conversation pairs exactly two participants.
type Conversation struct {
	ID        string    `db:"id" json:"id"`
	User1ID   string    `db:"user1_id" json:"user1_id"`
	User2ID   string    `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Peer returns the other participant relative to userID.
func (c Conversation) Peer(userID string) string {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

// HasParticipant reports whether userID belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ConversationSummary is the inbox view of a conversation: the peer is already
// resolved relative to the requesting user and the display name denormalized.
type ConversationSummary struct {
	ID        string    `json:"_id"`
	PeerID    string    `json:"peer_id"`
	PeerName  string    `json:"peer_name,omitempty"`
	Online    bool      `json:"online,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
