package services

import (
	"context"
	"time"

	"auction-backend/internal/db"
	"auction-backend/internal/models"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ChatService persists room chat messages.
type ChatService struct{}

func NewChatService() *ChatService {
	return &ChatService{}
}

// SaveMessage inserts the message and fills in its id and creation time from
// the persisted row, so broadcasts carry the canonical values.
func (s *ChatService) SaveMessage(ctx context.Context, msg *models.ChatMessage) error {
	msg.ID = uuid.New().String()
	query := `INSERT INTO chat_messages (id, room_id, user_id, user_name, user_role, text)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at`
	return db.Pool.QueryRow(ctx, query,
		msg.ID, msg.RoomID, msg.UserID, msg.UserName, msg.UserRole, msg.Text,
	).Scan(&msg.CreatedAt)
}

// GetMessagesByRoom returns the room's most recent messages in
// chronological order.
func (s *ChatService) GetMessagesByRoom(ctx context.Context, roomID, limit int) ([]models.ChatMessage, error) {
	query := `SELECT id, room_id, user_id, user_name, user_role, text, created_at FROM (
			SELECT id, room_id, user_id, user_name, user_role, text, created_at
			FROM chat_messages WHERE room_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`
	rows, err := db.Pool.Query(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.ChatMessage{}
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.UserName, &msg.UserRole, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// DeleteOldMessages purges messages older than the retention window.
func (s *ChatService) DeleteOldMessages(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	tag, err := db.Pool.Exec(ctx, `DELETE FROM chat_messages WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() > 0 {
		log.WithField("deleted", tag.RowsAffected()).Info("purged old chat messages")
	}
	return tag.RowsAffected(), nil
}
