package relay

import (
	"context"
	"fmt"
	"strings"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// ChatStore persists room messages. SaveMessage fills in the record's id and
// creation time.
type ChatStore interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
}

// DirectStore persists direct messages and their read flags.
type DirectStore interface {
	SaveDirectMessage(ctx context.Context, msg *models.DirectMessage) error
	GetDirectMessage(ctx context.Context, id string) (*models.DirectMessage, error)
	MarkRead(ctx context.Context, id string) error
}

// NameResolver looks up a user's display name from the identity provider.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Publisher is the slice of the broadcaster the relay needs.
type Publisher interface {
	Publish(scope broadcast.Scope, event string, data any)
}

// Relay turns an inbound send into a persisted record and one canonical
// broadcast. The broadcast payload is always built from the persisted
// record's id, name and timestamp, never the caller-supplied raw values, and
// is emitted at most once, strictly after persistence succeeds.
type Relay struct {
	chats   ChatStore
	directs DirectStore
	names   NameResolver
	pub     Publisher
}

func New(chats ChatStore, directs DirectStore, names NameResolver, pub Publisher) *Relay {
	return &Relay{chats: chats, directs: directs, names: names, pub: pub}
}

// Send persists a room message and fans the canonical payload out to the
// room. A missing display name is resolved via the identity provider;
// failure to resolve is tolerated and the field stays null.
func (r *Relay) Send(ctx context.Context, roomID int, userID, userName, role, text string) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message text is required", apperrors.ErrInvalidInput)
	}
	if userID == "" {
		return nil, apperrors.ErrUnresolvedUser
	}

	msg := &models.ChatMessage{
		RoomID:   roomID,
		UserID:   &userID,
		UserName: resolveName(ctx, r.names, userID, userName),
		UserRole: role,
		Text:     text,
	}

	if err := r.chats.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist chat message: %w", err)
	}

	log.WithFields(log.Fields{"room_id": roomID, "message_id": msg.ID}).
		Info("chat message saved")

	r.pub.Publish(broadcast.RoomScope(roomID), models.EvNewMessage, msg)
	return msg, nil
}

// SendPrivate persists a direct message and emits the canonical payload to
// the private channels of both the sender and the recipient, so both ends of
// the conversation observe one event without sharing a room.
func (r *Relay) SendPrivate(ctx context.Context, senderID, recipientID string, auctionID *string, text string) (*models.DirectMessage, error) {
	if recipientID == "" || strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: recipientId and text are required", apperrors.ErrInvalidInput)
	}

	msg := &models.DirectMessage{
		AuctionID:   auctionID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
	}

	if err := r.directs.SaveDirectMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persist direct message: %w", err)
	}

	ev := models.PrivateMessageEvent{Message: msg}
	r.pub.Publish(broadcast.PrivateScope(recipientID), models.EvPrivateMessage, ev)
	r.pub.Publish(broadcast.PrivateScope(senderID), models.EvPrivateMessage, ev)
	return msg, nil
}

// MarkRead flips a direct message's read flag. Only the recipient (or an
// admin) may do so; both private channels receive the read receipt.
func (r *Relay) MarkRead(ctx context.Context, messageID, readerID, readerRole string) error {
	msg, err := r.directs.GetDirectMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RecipientID != readerID && readerRole != models.RoleAdmin {
		return apperrors.ErrNotAllowed
	}

	if err := r.directs.MarkRead(ctx, messageID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	ev := models.MessageReadEvent{MessageID: messageID, Reader: readerID}
	r.pub.Publish(broadcast.PrivateScope(msg.SenderID), models.EvMessageRead, ev)
	r.pub.Publish(broadcast.PrivateScope(msg.RecipientID), models.EvMessageRead, ev)
	return nil
}

// resolveName returns the caller-supplied name unless it is absent or the
// literal "undefined" sentinel, in which case the identity provider is asked.
// Absence of a resolvable name is not fatal; the result may be nil.
func resolveName(ctx context.Context, names NameResolver, userID, userName string) *string {
	if userName != "" && userName != "undefined" {
		return &userName
	}
	resolved, err := names.DisplayName(ctx, userID)
	if err != nil || resolved == "" {
		if err != nil {
			log.WithField("user_id", userID).Warnf("display name lookup failed: %v", err)
		}
		return nil
	}
	return &resolved
}
