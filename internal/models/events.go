package models

import (
	"encoding/json"
	"time"
)

// Inbound event names sent by the messaging server.
const (
	EventConnect       = "connect"
	EventDisconnect    = "disconnect"
	EventConnectError  = "connect_error"
	EventMessage       = "message"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventGetUsers      = "get-users"
	EventOnlineStatus  = "online_status"
	EventTyping        = "typing"
)

// Outbound command names accepted by the messaging server.
const (
	CommandNewUserAdd    = "new-user-add"
	CommandSendMessage   = "sendMessage"
	CommandEditMessage   = "editMessage"
	CommandDeleteMessage = "deleteMessage"
	CommandTyping        = "typing"
)

// Envelope is the wire format for every frame on the realtime channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DisconnectEvent carries the server-side reason for a disconnect frame.
type DisconnectEvent struct {
	Reason string `json:"reason"`
}

// ConnectErrorEvent carries the failure detail for a rejected connection.
type ConnectErrorEvent struct {
	Message string `json:"message"`
}

// DeleteMessageEvent identifies a message removed on the server.
type DeleteMessageEvent struct {
	MessageID string `json:"messageId"`
}

// OnlineStatusEvent is an incremental presence change for one user.
type OnlineStatusEvent struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
}

// TypingEvent signals that a peer started or stopped composing.
type TypingEvent struct {
	PeerID   string `json:"peerId"`
	IsTyping bool   `json:"isTyping"`
}

// NewUserAddCommand registers this session as online after connect.
type NewUserAddCommand struct {
	UserID string `json:"userId"`
}

// SendMessageCommand is the outbound new-message payload.
type SendMessageCommand struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
	IsRead         bool      `json:"isRead"`
}

// EditMessageCommand is the outbound edit payload.
type EditMessageCommand struct {
	MessageID string    `json:"messageId"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeleteMessageCommand is the outbound delete payload.
type DeleteMessageCommand struct {
	MessageID string    `json:"messageId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// TypingCommand is the outbound typing signal.
type TypingCommand struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}
