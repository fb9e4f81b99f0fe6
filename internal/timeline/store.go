package timeline

import (
	"sort"
	"sync"
	"time"

	"chat-client/internal/models"
)

// Store maintains the ordered, deduplicated message set per conversation.
// MessageID is the identity; every mutation is an idempotent, order-tolerant
// map operation so duplicate or out-of-order events cannot corrupt it.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]map[string]models.Message
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{conversations: make(map[string]map[string]models.Message)}
}

// ReplaceHistory swaps the conversation's content for the fetched history.
func (s *Store) ReplaceHistory(conversationID string, msgs []models.Message) {
	bucket := make(map[string]models.Message, len(msgs))
	for _, m := range msgs {
		bucket[m.MessageID] = m
	}
	s.mu.Lock()
	s.conversations[conversationID] = bucket
	s.mu.Unlock()
}

// ApplyInsert upserts the message by id. Messages for conversations other
// than the active one are registered too, e.g. for unread counting.
func (s *Store) ApplyInsert(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.conversations[msg.ConversationID]
	if !ok {
		bucket = make(map[string]models.Message)
		s.conversations[msg.ConversationID] = bucket
	}
	bucket[msg.MessageID] = msg
}

// ApplyEdit replaces content and updatedAt for a known message id. Unknown
// ids are a benign no-op; a later history reload shows the edited content.
func (s *Store) ApplyEdit(messageID, content string, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range s.conversations {
		if msg, ok := bucket[messageID]; ok {
			msg.Content = content
			msg.UpdatedAt = updatedAt
			bucket[messageID] = msg
			return
		}
	}
}

// ApplyDelete removes the message from the active set. Unknown ids are a
// no-op; a later re-insert of the same id is accepted.
func (s *Store) ApplyDelete(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range s.conversations {
		if _, ok := bucket[messageID]; ok {
			delete(bucket, messageID)
			return
		}
	}
}

// MarkRead flags every message in the conversation not sent by selfID as read.
func (s *Store) MarkRead(conversationID, selfID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, msg := range s.conversations[conversationID] {
		if msg.SenderID != selfID && !msg.IsRead {
			msg.IsRead = true
			s.conversations[conversationID][id] = msg
		}
	}
}

// Messages returns the conversation ordered by createdAt ascending, ties
// broken by messageId.
func (s *Store) Messages(conversationID string) []models.Message {
	s.mu.RLock()
	bucket := s.conversations[conversationID]
	msgs := make([]models.Message, 0, len(bucket))
	for _, m := range bucket {
		msgs = append(msgs, m)
	}
	s.mu.RUnlock()

	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Before(msgs[j]) })
	return msgs
}

// UnreadCount reports how many messages from other senders are unread.
func (s *Store) UnreadCount(conversationID, selfID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, msg := range s.conversations[conversationID] {
		if msg.SenderID != selfID && !msg.IsRead {
			count++
		}
	}
	return count
}
