package services

import (
	"context"
	"errors"
	"fmt"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/db"
	"auction-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MessageService persists direct (private) messages.
type MessageService struct{}

func NewMessageService() *MessageService {
	return &MessageService{}
}

const directMessageColumns = `m.id, m.auction_id, a.title, m.sender_id, su.name, su.role,
	m.recipient_id, ru.name, ru.role, m.text, m.read, m.created_at`

const directMessageJoins = `FROM direct_messages m
	JOIN users su ON su.id = m.sender_id
	JOIN users ru ON ru.id = m.recipient_id
	LEFT JOIN auctions a ON a.id = m.auction_id`

func scanDirectMessage(row pgx.Row, msg *models.DirectMessage) error {
	return row.Scan(&msg.ID, &msg.AuctionID, &msg.AuctionTitle,
		&msg.SenderID, &msg.SenderName, &msg.SenderRole,
		&msg.RecipientID, &msg.RecipientName, &msg.RecipientRole,
		&msg.Text, &msg.Read, &msg.CreatedAt)
}

// SaveDirectMessage inserts the message, then re-reads the persisted row so
// the broadcast payload carries resolved names and the canonical timestamp.
func (s *MessageService) SaveDirectMessage(ctx context.Context, msg *models.DirectMessage) error {
	msg.ID = uuid.New().String()
	_, err := db.Pool.Exec(ctx, `INSERT INTO direct_messages (id, auction_id, sender_id, recipient_id, text)
		VALUES ($1, $2, $3, $4, $5)`, msg.ID, msg.AuctionID, msg.SenderID, msg.RecipientID, msg.Text)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`SELECT %s %s WHERE m.id = $1`, directMessageColumns, directMessageJoins)
	return scanDirectMessage(db.Pool.QueryRow(ctx, query, msg.ID), msg)
}

func (s *MessageService) GetDirectMessage(ctx context.Context, id string) (*models.DirectMessage, error) {
	var msg models.DirectMessage
	query := fmt.Sprintf(`SELECT %s %s WHERE m.id = $1`, directMessageColumns, directMessageJoins)
	err := scanDirectMessage(db.Pool.QueryRow(ctx, query, id), &msg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("message %s: %w", id, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MarkRead flips the read flag. Authorization happens in the relay.
func (s *MessageService) MarkRead(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `UPDATE direct_messages SET read = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", id, apperrors.ErrNotFound)
	}
	return nil
}

// ListBetween returns the conversation between two users, oldest first,
// optionally filtered to one auction.
func (s *MessageService) ListBetween(ctx context.Context, userID, withUserID string, auctionID *string) ([]models.DirectMessage, error) {
	query := fmt.Sprintf(`SELECT %s %s
		WHERE ((m.sender_id = $1 AND m.recipient_id = $2) OR (m.sender_id = $2 AND m.recipient_id = $1))
			AND ($3::text IS NULL OR m.auction_id = $3)
		ORDER BY m.created_at ASC`, directMessageColumns, directMessageJoins)

	rows, err := db.Pool.Query(ctx, query, userID, withUserID, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.DirectMessage{}
	for rows.Next() {
		var msg models.DirectMessage
		if err := scanDirectMessage(rows, &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ConversationsForAuction lists the other participants the user has
// exchanged messages with about one auction.
func (s *MessageService) ConversationsForAuction(ctx context.Context, auctionID, userID string) ([]models.UserRef, error) {
	query := `SELECT DISTINCT u.id, u.name
		FROM direct_messages m
		JOIN users u ON u.id = CASE WHEN m.sender_id = $2 THEN m.recipient_id ELSE m.sender_id END
		WHERE m.auction_id = $1 AND (m.sender_id = $2 OR m.recipient_id = $2)`

	rows, err := db.Pool.Query(ctx, query, auctionID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []models.UserRef{}
	for rows.Next() {
		var u models.UserRef
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		participants = append(participants, u)
	}
	return participants, rows.Err()
}

// MyConversations summarizes every thread the user participates in: one
// entry per (auction, other user) pair with the latest message.
func (s *MessageService) MyConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := `SELECT DISTINCT ON (COALESCE(m.auction_id, 'general'), other.id)
			m.auction_id, a.title, other.id, other.name, m.text, m.created_at
		FROM direct_messages m
		JOIN users other ON other.id = CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END
		LEFT JOIN auctions a ON a.id = m.auction_id
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		ORDER BY COALESCE(m.auction_id, 'general'), other.id, m.created_at DESC`

	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []models.Conversation{}
	for rows.Next() {
		var c models.Conversation
		var auctionID, auctionTitle *string
		if err := rows.Scan(&auctionID, &auctionTitle, &c.Other.ID, &c.Other.Name, &c.LastMessage, &c.LastAt); err != nil {
			return nil, err
		}
		if auctionID != nil {
			ref := models.AuctionRef{ID: *auctionID}
			if auctionTitle != nil {
				ref.Title = *auctionTitle
			}
			c.Auction = &ref
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// UnreadCount returns the number of unread messages addressed to the user.
func (s *MessageService) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM direct_messages WHERE recipient_id = $1 AND NOT read`, userID).Scan(&count)
	return count, err
}
