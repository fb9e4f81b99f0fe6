package models

import "time"

// MessageTypeText is the default content kind for messages.
const MessageTypeText = "text"

// Message represents a single chat message as exchanged with the messaging
// server. MessageID is the stable identity; within one conversation messages
// are ordered by CreatedAt, ties broken by MessageID.
type Message struct {
	MessageID      string     `json:"messageId"`
	ConversationID string     `json:"conversationId"`
	SenderID       string     `json:"senderId"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
	IsRead         bool       `json:"isRead"`
}

// Before reports whether m sorts ahead of other in a timeline.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.MessageID < other.MessageID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
