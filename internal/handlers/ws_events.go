package handlers

import (
	"context"
	"errors"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"
	"auction-backend/internal/registry"
	"auction-backend/internal/utils"

	log "github.com/sirupsen/logrus"
)

// HandleEvent dispatches one inbound realtime frame. Fields missing from the
// payload are recovered from the authenticated connection, mirroring the
// JWT-cookie fallback of the socket layer this replaces.
func (rt *Realtime) HandleEvent(conn broadcast.Conn, connID, authUserID, authUserName, authUserRole string, raw []byte) {
	var ev models.ClientEvent
	if err := utils.SafeJSONParse(raw, &ev); err != nil {
		utils.LogError(err, "ws event parse")
		return
	}

	if ev.UserID == "" {
		ev.UserID = authUserID
	}
	if ev.UserName == "" || ev.UserName == "undefined" {
		ev.UserName = authUserName
	}
	if ev.UserRole == "" {
		ev.UserRole = authUserRole
	}

	switch ev.Event {
	case models.EvGetRooms:
		rt.reply(conn, models.EvRoomsList, rt.Registry.ListRooms())

	case models.EvJoinRoom:
		rt.handleJoinRoom(conn, connID, &ev)

	case models.EvLeaveRoom:
		rt.handleLeaveRoom(connID, &ev)

	case models.EvSendMessage:
		rt.handleSendMessage(conn, &ev)

	case models.EvJoinAuction:
		if ev.AuctionID != "" {
			rt.Broadcaster.Subscribe(broadcast.AuctionScope(ev.AuctionID), connID, conn)
		}

	case models.EvLeaveAuction:
		if ev.AuctionID != "" {
			rt.Broadcaster.Unsubscribe(broadcast.AuctionScope(ev.AuctionID), connID)
		}

	case models.EvJoinPrivate:
		// A connection may only watch its own private channel; admins may
		// watch any (used by the moderation view).
		target := ev.UserID
		if target != authUserID && authUserRole != models.RoleAdmin {
			rt.reply(conn, models.EvMessageError, models.ErrorAck{Error: "not allowed"})
			return
		}
		rt.Broadcaster.Subscribe(broadcast.PrivateScope(target), connID, conn)

	case models.EvLeavePrivate:
		rt.Broadcaster.Unsubscribe(broadcast.PrivateScope(ev.UserID), connID)

	default:
		log.WithField("event", ev.Event).Warn("unknown realtime event")
	}
}

func (rt *Realtime) handleJoinRoom(conn broadcast.Conn, connID string, ev *models.ClientEvent) {
	if ev.RoomID == nil {
		return
	}
	if ev.UserID == "" {
		// Unresolvable identity: acknowledge the error and drop the event.
		log.WithField("room_id", *ev.RoomID).Warn("joinRoom rejected: missing userId after fallback")
		rt.reply(conn, models.EvMessageError, models.ErrorAck{Error: "Not authenticated or missing userId"})
		return
	}

	// Move the socket between scopes before mutating presence, so the
	// joiner receives the userJoined notification for the new room and not
	// the userLeft for the old one.
	if prev, ok := rt.Registry.CurrentRoom(ev.UserID); ok && prev != *ev.RoomID {
		rt.Broadcaster.Unsubscribe(broadcast.RoomScope(prev), connID)
	}
	rt.Broadcaster.Subscribe(broadcast.RoomScope(*ev.RoomID), connID, conn)

	member := registry.Member{ID: ev.UserID, Name: ev.UserName, Role: ev.UserRole}
	if err := rt.Registry.Join(member, *ev.RoomID); err != nil {
		rt.Broadcaster.Unsubscribe(broadcast.RoomScope(*ev.RoomID), connID)
		log.WithField("room_id", *ev.RoomID).Warnf("joinRoom failed: %v", err)
		rt.reply(conn, models.EvMessageError, models.ErrorAck{Error: "Not authenticated or missing userId"})
	}
}

func (rt *Realtime) handleLeaveRoom(connID string, ev *models.ClientEvent) {
	if ev.RoomID == nil {
		return
	}
	rt.Broadcaster.Unsubscribe(broadcast.RoomScope(*ev.RoomID), connID)
	rt.Registry.Leave(ev.UserID, ev.UserName, *ev.RoomID)
}

func (rt *Realtime) handleSendMessage(conn broadcast.Conn, ev *models.ClientEvent) {
	if ev.RoomID == nil {
		return
	}
	if !rt.Registry.Exists(*ev.RoomID) {
		log.WithField("room_id", *ev.RoomID).Warn("sendMessage dropped: unknown room")
		return
	}

	_, err := rt.Relay.Send(context.Background(), *ev.RoomID, ev.UserID, ev.UserName, ev.UserRole, ev.Text)
	if err != nil {
		utils.LogError(err, "relay send")
		reason := "Failed to save message"
		if errors.Is(err, apperrors.ErrInvalidInput) || errors.Is(err, apperrors.ErrUnresolvedUser) {
			reason = err.Error()
		}
		rt.reply(conn, models.EvMessageError, models.ErrorAck{Error: reason})
	}
}

func (rt *Realtime) reply(conn broadcast.Conn, event string, data any) {
	if err := conn.WriteJSON(models.ServerEvent{Event: event, Data: data}); err != nil {
		utils.LogError(err, "ws reply")
	}
}
