package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"chat-client/internal/history"
	"chat-client/internal/observability"
	"chat-client/internal/realtime"
)

// Settings holds the per-deployment knobs shared by every session.
type Settings struct {
	ServerURL            string
	HistoryBaseURL       string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	DialTimeout          time.Duration
	TypingExpiry         time.Duration
}

// FetcherFactory builds the history collaborator for one session's credential.
type FetcherFactory func(token string) history.Fetcher

// Registry enforces the one-live-session-per-user rule and owns session
// construction and teardown.
type Registry struct {
	settings   Settings
	dialer     realtime.Dialer
	publisher  observability.Publisher
	newFetcher FetcherFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry.
func NewRegistry(settings Settings, dialer realtime.Dialer, publisher observability.Publisher, newFetcher FetcherFactory) *Registry {
	return &Registry{
		settings:   settings,
		dialer:     dialer,
		publisher:  publisher,
		newFetcher: newFetcher,
		sessions:   make(map[string]*Session),
	}
}

// Open returns the live session for userID, creating and connecting one if
// none exists. Idempotent per user.
func (r *Registry) Open(userID, token string) *Session {
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		s.Open()
		return s
	}

	cfg := realtime.Config{
		ServerURL:            r.settings.ServerURL,
		UserID:               userID,
		Token:                token,
		MaxReconnectAttempts: r.settings.MaxReconnectAttempts,
		ReconnectDelay:       r.settings.ReconnectDelay,
		DialTimeout:          r.settings.DialTimeout,
	}
	s := New(cfg, r.dialer, r.newFetcher(token), r.publisher, r.settings.TypingExpiry)
	r.sessions[userID] = s
	r.mu.Unlock()

	observability.IncSessionsActive()
	log.Info().Str("user_id", userID).Msg("session opened")
	s.Open()
	return s
}

// Get returns the live session for userID, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Close tears down and removes the session for userID. Reports whether one
// existed.
func (r *Registry) Close(userID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.Close()
	observability.DecSessionsActive()
	log.Info().Str("user_id", userID).Msg("session closed")
	return true
}

// CloseAll tears down every live session, e.g. on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		observability.DecSessionsActive()
	}
}
