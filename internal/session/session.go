package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"chat-client/internal/history"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/presence"
	"chat-client/internal/realtime"
	"chat-client/internal/timeline"
	"chat-client/internal/typing"
)

const wsEventsRoutingKey = "ws_events.sessions"

// Status is a point-in-time view of the session's connection state.
type Status struct {
	State            realtime.ConnState `json:"status"`
	LastError        string             `json:"last_error,omitempty"`
	ReconnectAttempt int                `json:"reconnect_attempt"`
}

// Session owns everything one authenticated user holds against the messaging
// server: the realtime connection, presence and typing trackers, and the
// message timeline. Constructed at login, torn down at logout; exactly one
// live instance per user.
type Session struct {
	userID    string
	manager   *realtime.Manager
	presence  *presence.Tracker
	typing    *typing.Coordinator
	timeline  *timeline.Store
	history   history.Fetcher
	publisher observability.Publisher
	unsubs    []func()

	mu         sync.Mutex
	activeConv string
	historyGen int
	closed     bool
}

// New wires a session together. The dialer and fetcher are injectable for
// tests; pass realtime.WebsocketDialer{} and a history.Client in production.
func New(cfg realtime.Config, dialer realtime.Dialer, fetcher history.Fetcher, publisher observability.Publisher, typingExpiry time.Duration) *Session {
	demux := realtime.NewDemux()
	manager := realtime.NewManager(cfg, dialer, demux)

	s := &Session{
		userID:    cfg.UserID,
		manager:   manager,
		presence:  presence.NewTracker(),
		typing:    typing.NewCoordinator(manager, typingExpiry),
		timeline:  timeline.NewStore(),
		history:   fetcher,
		publisher: publisher,
	}

	s.unsubs = append(s.unsubs,
		demux.OnMessage(s.timeline.ApplyInsert),
		demux.OnEditMessage(func(msg models.Message) {
			s.timeline.ApplyEdit(msg.MessageID, msg.Content, msg.UpdatedAt)
		}),
		demux.OnDeleteMessage(func(ev models.DeleteMessageEvent) {
			s.timeline.ApplyDelete(ev.MessageID)
		}),
		demux.OnPresenceSnapshot(s.presence.Snapshot),
		demux.OnOnlineStatus(func(ev models.OnlineStatusEvent) {
			s.presence.SetOnline(ev.UserID, ev.IsOnline)
		}),
		demux.OnTyping(func(ev models.TypingEvent) {
			s.typing.SetTyping(ev.PeerID, ev.IsTyping)
		}),
		manager.OnStateChange(s.publishStateChange),
	)

	return s
}

// UserID returns the identity this session belongs to.
func (s *Session) UserID() string {
	return s.userID
}

// Open starts the realtime connection.
func (s *Session) Open() {
	s.manager.Open()
}

// Close tears the session down: the connection, its retry timers, and every
// typing timer. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.historyGen++ // discard in-flight history results
	s.mu.Unlock()

	s.manager.Close()
	s.typing.Close()
	for _, unsub := range s.unsubs {
		unsub()
	}
}

// Status reports the connection state for the UI surface.
func (s *Session) Status() Status {
	st := Status{
		State:            s.manager.State(),
		ReconnectAttempt: s.manager.Attempt(),
	}
	if err := s.manager.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// SendMessage sends a new message and inserts it optimistically; the server
// echo carrying the same id upserts over it. Best-effort: dropped if the
// connection is not open.
func (s *Session) SendMessage(conversationID, content string) models.Message {
	now := time.Now().UTC()
	msg := models.Message{
		MessageID:      uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       s.userID,
		Content:        content,
		Type:           models.MessageTypeText,
		CreatedAt:      now,
		UpdatedAt:      now,
		IsRead:         false,
	}
	s.timeline.ApplyInsert(msg)
	s.manager.Send(models.CommandSendMessage, models.SendMessageCommand{
		MessageID:      msg.MessageID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           msg.Type,
		CreatedAt:      msg.CreatedAt,
		IsRead:         msg.IsRead,
	})
	return msg
}

// EditMessage edits a sent message locally and on the server.
func (s *Session) EditMessage(messageID, content string) {
	now := time.Now().UTC()
	s.timeline.ApplyEdit(messageID, content, now)
	s.manager.Send(models.CommandEditMessage, models.EditMessageCommand{
		MessageID: messageID,
		Content:   content,
		UpdatedAt: now,
	})
}

// DeleteMessage removes a message locally and on the server.
func (s *Session) DeleteMessage(messageID string) {
	s.timeline.ApplyDelete(messageID)
	s.manager.Send(models.CommandDeleteMessage, models.DeleteMessageCommand{
		MessageID: messageID,
		DeletedAt: time.Now().UTC(),
	})
}

// NotifyTyping signals composing state toward peerID.
func (s *Session) NotifyTyping(peerID string, isTyping bool) {
	s.typing.NotifyTyping(peerID, isTyping)
}

// IsTyping reports whether peerID is composing toward us.
func (s *Session) IsTyping(peerID string) bool {
	return s.typing.IsTyping(peerID)
}

// OnlineUsers returns the current presence set.
func (s *Session) OnlineUsers() []string {
	return s.presence.AllOnline()
}

// IsOnline reports presence for one user.
func (s *Session) IsOnline(userID string) bool {
	return s.presence.IsOnline(userID)
}

// SetActiveConversation switches the active conversation and loads its
// history. A fetch error is returned, never swallowed. Results of a fetch
// that finished after the active conversation changed again are discarded.
func (s *Session) SetActiveConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.activeConv = conversationID
	s.historyGen++
	gen := s.historyGen
	s.mu.Unlock()

	msgs, err := s.history.Fetch(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	stale := gen != s.historyGen || s.activeConv != conversationID
	s.mu.Unlock()
	if stale {
		log.Debug().Str("conversation_id", conversationID).Msg("stale history fetch discarded")
		return nil
	}

	s.timeline.ReplaceHistory(conversationID, msgs)
	s.timeline.MarkRead(conversationID, s.userID)
	return nil
}

// ActiveConversation returns the currently active conversation id.
func (s *Session) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeConv
}

// Messages returns the ordered timeline of one conversation.
func (s *Session) Messages(conversationID string) []models.Message {
	return s.timeline.Messages(conversationID)
}

// UnreadCount reports unread messages from other senders in a conversation.
func (s *Session) UnreadCount(conversationID string) int {
	return s.timeline.UnreadCount(conversationID, s.userID)
}

func (s *Session) publishStateChange(change realtime.StateChange) {
	name := map[realtime.ConnState]string{
		realtime.StateConnected:    "ws_connect",
		realtime.StateDisconnected: "ws_disconnect",
		realtime.StateErrored:      "ws_error",
	}[change.New]
	if name == "" {
		return
	}

	payload := map[string]interface{}{
		"user_id":           s.userID,
		"old_state":         change.Old.String(),
		"new_state":         change.New.String(),
		"reconnect_attempt": s.manager.Attempt(),
	}
	if change.Err != nil {
		payload["reason"] = change.Err.Error()
	}

	_ = s.publisher.PublishJSON(context.Background(), wsEventsRoutingKey, observability.EventEnvelope{
		EventType: "ws_events",
		EventName: name,
		Payload:   payload,
	}, observability.BuildHeaders("", ""))
}
