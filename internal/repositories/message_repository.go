package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"ghar-chat-service/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage durably stores a message and returns the server record.
func (r *MessageRepo) CreateMessage(ctx context.Context, conversationID, senderID, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, body) VALUES ($1, $2, $3)
         RETURNING id, conversation_id, sender_id, body, read, created_at, updated_at`,
		conversationID, senderID, text).
		Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.Read, &msg.CreatedAt, &msg.UpdatedAt)
	return msg, err
}

// ListMessages returns the conversation history, chronological ascending.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, body, read, created_at, updated_at
        FROM messages
        WHERE conversation_id=$1
        ORDER BY created_at ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, conversationID)
	return msgs, err
}

// MarkRead flags every message the peer sent in the conversation as read.
func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, readerID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE, updated_at = NOW()
         WHERE conversation_id=$1 AND sender_id<>$2 AND read = FALSE`,
		conversationID, readerID)
	return err
}
