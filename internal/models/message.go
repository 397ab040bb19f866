package models

import "time"

// ChatMessage is a persisted room message. UserID and UserName are nullable:
// a message whose author could not be resolved is stored rather than dropped.
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    int       `json:"roomId"`
	UserID    *string   `json:"userId"`
	UserName  *string   `json:"userName"`
	UserRole  string    `json:"userRole,omitempty"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"timestamp"`
}

// DirectMessage is a private message between two users, optionally tied to an
// auction. Read flips false to true exactly once, by the recipient or an admin.
type DirectMessage struct {
	ID            string    `json:"id"`
	AuctionID     *string   `json:"auctionId,omitempty"`
	AuctionTitle  *string   `json:"auctionTitle,omitempty"`
	SenderID      string    `json:"senderId"`
	SenderName    string    `json:"senderName,omitempty"`
	SenderRole    string    `json:"senderRole,omitempty"`
	RecipientID   string    `json:"recipientId"`
	RecipientName string    `json:"recipientName,omitempty"`
	RecipientRole string    `json:"recipientRole,omitempty"`
	Text          string    `json:"text"`
	Read          bool      `json:"read"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Conversation summarizes a direct-message thread with one other user.
type Conversation struct {
	Auction     *AuctionRef `json:"auction"`
	Other       UserRef     `json:"other"`
	LastMessage string      `json:"lastMessage"`
	LastAt      time.Time   `json:"lastAt"`
}

// AuctionRef is a minimal auction reference embedded in conversation payloads.
type AuctionRef struct {
	ID    string `json:"id"`
	Title string `json:"itemName"`
}

type CreateDirectMessageRequest struct {
	AuctionID   string `json:"auction"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
}
