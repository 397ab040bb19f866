package models

// Event names understood on the client->server side of the realtime channel.
const (
	EvGetRooms     = "getRooms"
	EvJoinRoom     = "joinRoom"
	EvLeaveRoom    = "leaveRoom"
	EvSendMessage  = "sendMessage"
	EvJoinAuction  = "joinAuction"
	EvLeaveAuction = "leaveAuction"
	EvJoinPrivate  = "joinPrivate"
	EvLeavePrivate = "leavePrivate"
)

// Event names emitted server->client.
const (
	EvConnected      = "connected"
	EvRoomsList      = "roomsList"
	EvUserJoined     = "userJoined"
	EvUserLeft       = "userLeft"
	EvNewMessage     = "newMessage"
	EvMessageError   = "messageError"
	EvBidPlaced      = "bidPlaced"
	EvAuctionEnded   = "auctionEnded"
	EvAuctionUpdated = "auctionUpdated"
	EvPrivateMessage = "privateMessage"
	EvMessageRead    = "messageRead"
)

// ClientEvent is the inbound frame read off a websocket connection. RoomID is
// a pointer because room 0 (General) is a valid target.
type ClientEvent struct {
	Event     string `json:"event"`
	RoomID    *int   `json:"roomId,omitempty"`
	AuctionID string `json:"auctionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	UserRole  string `json:"userRole,omitempty"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ServerEvent is the outbound frame: an event name plus its payload.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// RoomInfo is one entry of a roomsList payload.
type RoomInfo struct {
	ID        int      `json:"id"`
	Name      string   `json:"name"`
	UserCount int      `json:"userCount"`
	Users     []string `json:"users"`
}

// PresenceEvent is the payload of userJoined and userLeft notifications,
// carrying the updated roster of the affected room.
type PresenceEvent struct {
	UserID    string   `json:"userId"`
	UserName  string   `json:"userName"`
	UserRole  string   `json:"userRole,omitempty"`
	UserCount int      `json:"userCount"`
	RoomID    int      `json:"roomId"`
	Users     []string `json:"users"`
}

type BidPlacedEvent struct {
	AuctionID    string  `json:"auctionId"`
	CurrentPrice float64 `json:"currentPrice"`
	BidsCount    int     `json:"bidsCount"`
	Bidder       UserRef `json:"bidder"`
}

type AuctionEndedEvent struct {
	AuctionID  string  `json:"auctionId"`
	Winner     UserRef `json:"winner"`
	FinalPrice float64 `json:"finalPrice"`
	BidsCount  int     `json:"bidsCount"`
}

type AuctionUpdatedEvent struct {
	AuctionID    string  `json:"auctionId"`
	CurrentPrice float64 `json:"currentPrice"`
}

type PrivateMessageEvent struct {
	Message *DirectMessage `json:"message"`
}

type MessageReadEvent struct {
	MessageID string `json:"messageId"`
	Reader    string `json:"reader"`
}

type ErrorAck struct {
	Error string `json:"error"`
}
