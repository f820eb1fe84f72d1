package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"ghar-chat-service/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateOrGetConversation(ctx context.Context, userID, peerID string) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID string) (models.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
	ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// CreateOrGetConversation creates a conversation between two users if one does
// not already exist. Participants are stored in lexical order so the pair is
// unique regardless of who initiated.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, userID, peerID string) (models.Conversation, error) {
	if userID == peerID {
		return models.Conversation{}, errors.New("cannot start conversation with self")
	}
	user1, user2 := userID, peerID
	if strings.Compare(user1, user2) > 0 {
		user1, user2 = user2, user1
	}

	var conv models.Conversation
	query := `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE user1_id=$1 AND user2_id=$2`
	if err := r.db.GetContext(ctx, &conv, query, user1, user2); err != nil {
		if err != sql.ErrNoRows {
			return models.Conversation{}, err
		}
		if err := r.db.QueryRowxContext(ctx,
			`INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2) RETURNING id, user1_id, user2_id, created_at`,
			user1, user2).
			Scan(&conv.ID, &conv.User1ID, &conv.User2ID, &conv.CreatedAt); err != nil {
			return models.Conversation{}, err
		}
	}
	return conv, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT id, user1_id, user2_id, created_at FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// IsParticipant checks whether a user belongs to the conversation.
func (r *ConversationRepo) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM conversations WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`,
		conversationID, userID)
	return exists, err
}

// ListConversations returns the user's conversations with the peer resolved
// and the peer's display name denormalized, newest first.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.created_at,
            u1.name AS user1_name, u2.name AS user2_name
        FROM conversations c
        JOIN users u1 ON u1.id = c.user1_id
        JOIN users u2 ON u2.id = c.user2_id
        WHERE c.user1_id=$1 OR c.user2_id=$1
        ORDER BY c.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ConversationSummary
	for rows.Next() {
		var row struct {
			models.Conversation
			User1Name string `db:"user1_name"`
			User2Name string `db:"user2_name"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		peerID, peerName := row.User1ID, row.User1Name
		if peerID == userID {
			peerID, peerName = row.User2ID, row.User2Name
		}
		result = append(result, models.ConversationSummary{
			ID:        row.Conversation.ID,
			PeerID:    peerID,
			PeerName:  peerName,
			CreatedAt: row.Conversation.CreatedAt,
		})
	}
	return result, rows.Err()
}
