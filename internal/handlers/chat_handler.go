package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ghar-chat-service/internal/models"
	"ghar-chat-service/internal/presence"
	"ghar-chat-service/internal/repositories"
	"ghar-chat-service/internal/ws"
)

// ChatHandler serves the conversation and message endpoints the mobile app's
// inbox and chat screens consume.
type ChatHandler struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	presence         presence.Registry
	hub              *ws.Hub
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(conversationRepo repositories.ConversationRepository, messageRepo repositories.MessageRepository, registry presence.Registry, hub *ws.Hub) *ChatHandler {
	return &ChatHandler{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		presence:         registry,
		hub:              hub,
	}
}

// ListConversations returns the signed-in user's conversation summaries,
// newest first, with the peer resolved and online flags attached.
func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString("userID")

	conversations, err := h.conversationRepo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	peerIDs := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		peerIDs = append(peerIDs, conv.PeerID)
	}
	online, err := h.presence.Online(c.Request.Context(), peerIDs)
	if err != nil {
		log.Printf("presence lookup failed: %v", err)
		online = map[string]bool{}
	}
	for i := range conversations {
		conversations[i].Online = online[conversations[i].PeerID]
	}

	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// StartConversation creates or returns the conversation with a peer, used by
// the property screen's contact-owner action.
func (h *ChatHandler) StartConversation(c *gin.Context) {
	var req struct {
		PeerID string `json:"peer_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if userID == req.PeerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start conversation with yourself"})
		return
	}

	conv, err := h.conversationRepo.CreateOrGetConversation(c.Request.Context(), userID, req.PeerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start conversation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversation_id": conv.ID})
}

// GetMessages returns a conversation's history, chronological ascending, and
// marks the peer's messages read for the requester.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	conversationID := c.Param("conversation_id")
	userID := c.GetString("userID")

	member, err := h.conversationRepo.IsParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	msgs, err := h.messageRepo.ListMessages(c.Request.Context(), conversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	if err := h.messageRepo.MarkRead(c.Request.Context(), conversationID, userID); err != nil {
		log.Printf("mark read failed for conversation %s: %v", conversationID, err)
	}

	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// PostMessage durably stores a message and pushes it to the peer's live
// connections. The request shape mirrors the app's composer payload.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		ConversationID string `json:"conversationId" binding:"required"`
		SenderID       string `json:"senderId" binding:"required"`
		Text           string `json:"text" binding:"required"`
		CorrelationID  string `json:"correlationId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	if req.SenderID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "sender does not match session"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty message"})
		return
	}

	conv, err := h.conversationRepo.GetConversation(c.Request.Context(), req.ConversationID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrConversationNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "conversation not found"})
		return
	}
	if !conv.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a conversation member"})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), req.ConversationID, userID, req.Text)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	// Push the durable record to the peer so REST-only senders still reach
	// online receivers. The sender's own connections get no echo.
	h.hub.Deliver(conv.Peer(userID), models.ServerEvent{
		Type:          models.EventMessage,
		SenderID:      userID,
		Text:          msg.Text,
		CorrelationID: req.CorrelationID,
		Message:       &msg,
	})

	c.JSON(http.StatusCreated, msg)
}
