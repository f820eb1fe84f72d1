package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationPeer(t *testing.T) {
	conv := Conversation{ID: "c1", User1ID: "u1", User2ID: "u2"}

	assert.Equal(t, "u2", conv.Peer("u1"))
	assert.Equal(t, "u1", conv.Peer("u2"))
}

func TestConversationHasParticipant(t *testing.T) {
	conv := Conversation{ID: "c1", User1ID: "u1", User2ID: "u2"}

	assert.True(t, conv.HasParticipant("u1"))
	assert.True(t, conv.HasParticipant("u2"))
	assert.False(t, conv.HasParticipant("u3"))
}
