package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/history"
	"chat-client/internal/mocks"
	"chat-client/internal/models"
	"chat-client/internal/observability"
	"chat-client/internal/realtime"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []observability.EventEnvelope
}

func (p *capturingPublisher) PublishJSON(ctx context.Context, routingKey string, message interface{}, headers map[string]string) error {
	env, ok := message.(observability.EventEnvelope)
	if !ok {
		return nil
	}
	p.mu.Lock()
	p.events = append(p.events, env)
	p.mu.Unlock()
	return nil
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventName
	}
	return out
}

func newTestSession(t *testing.T, dialer realtime.Dialer, fetcher history.Fetcher) *Session {
	t.Helper()
	cfg := realtime.Config{
		ServerURL:      "ws://chat-server/ws",
		UserID:         "u1",
		Token:          "tok",
		ReconnectDelay: 5 * time.Millisecond,
	}
	s := New(cfg, dialer, fetcher, &capturingPublisher{}, 30*time.Millisecond)
	t.Cleanup(s.Close)
	return s
}

func openConnected(t *testing.T, dialer *mocks.FakeDialer, s *Session) *mocks.FakeTransport {
	t.Helper()
	s.Open()
	var tr *mocks.FakeTransport
	require.Eventually(t, func() bool {
		tr = dialer.LastTransport()
		return tr != nil
	}, time.Second, 5*time.Millisecond)
	tr.Inbound <- models.Envelope{Event: models.EventConnect}
	require.Eventually(t, func() bool {
		return s.Status().State == realtime.StateConnected
	}, time.Second, 5*time.Millisecond)
	return tr
}

func push(t *testing.T, tr *mocks.FakeTransport, event string, data interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	tr.Inbound <- models.Envelope{Event: event, Data: raw}
}

func TestInboundEventsUpdateState(t *testing.T) {
	dialer := &mocks.FakeDialer{}
	s := newTestSession(t, dialer, &mocks.FetcherMock{})
	tr := openConnected(t, dialer, s)

	push(t, tr, models.EventGetUsers, []string{"u2", "u3"})
	require.Eventually(t, func() bool {
		return s.IsOnline("u2") && s.IsOnline("u3")
	}, time.Second, 5*time.Millisecond)

	push(t, tr, models.EventOnlineStatus, models.OnlineStatusEvent{UserID: "u3", IsOnline: false})
	require.Eventually(t, func() bool {
		return !s.IsOnline("u3")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u2"}, s.OnlineUsers())

	push(t, tr, models.EventTyping, models.TypingEvent{PeerID: "u2", IsTyping: true})
	require.Eventually(t, func() bool {
		return s.IsTyping("u2")
	}, time.Second, 5*time.Millisecond)

	at := time.Now().UTC()
	push(t, tr, models.EventMessage, models.Message{
		MessageID: "m1", ConversationID: "c1", SenderID: "u2",
		Content: "hello", Type: models.MessageTypeText, CreatedAt: at,
	})
	require.Eventually(t, func() bool {
		return len(s.Messages("c1")) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, s.UnreadCount("c1"))

	push(t, tr, models.EventEditMessage, models.Message{
		MessageID: "m1", ConversationID: "c1", Content: "hello edited", UpdatedAt: at.Add(time.Second),
	})
	require.Eventually(t, func() bool {
		msgs := s.Messages("c1")
		return len(msgs) == 1 && msgs[0].Content == "hello edited"
	}, time.Second, 5*time.Millisecond)

	push(t, tr, models.EventDeleteMessage, models.DeleteMessageEvent{MessageID: "m1"})
	require.Eventually(t, func() bool {
		return len(s.Messages("c1")) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestSendMessageOptimisticThenEcho(t *testing.T) {
	dialer := &mocks.FakeDialer{}
	s := newTestSession(t, dialer, &mocks.FetcherMock{})
	tr := openConnected(t, dialer, s)

	msg := s.SendMessage("c1", "hi")
	require.Len(t, s.Messages("c1"), 1)
	assert.Equal(t, "u1", msg.SenderID)
	assert.Equal(t, models.MessageTypeText, msg.Type)
	assert.False(t, msg.IsRead)

	// Outbound command reached the transport (after the presence announce).
	require.Eventually(t, func() bool {
		return len(tr.Sent()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.CommandSendMessage, tr.Sent()[1].Event)

	// The server echo with the same id merges, not duplicates.
	push(t, tr, models.EventMessage, msg)
	time.Sleep(30 * time.Millisecond)
	require.Len(t, s.Messages("c1"), 1)
}

func TestSetActiveConversationLoadsHistory(t *testing.T) {
	dialer := &mocks.FakeDialer{}
	fetcher := &mocks.FetcherMock{}
	s := newTestSession(t, dialer, fetcher)

	at := time.Now().UTC()
	fetcher.On("Fetch", context.Background(), "c1").Return([]models.Message{
		{MessageID: "m2", ConversationID: "c1", SenderID: "u2", Content: "two", CreatedAt: at.Add(time.Second)},
		{MessageID: "m1", ConversationID: "c1", SenderID: "u2", Content: "one", CreatedAt: at},
	}, nil).Once()

	require.NoError(t, s.SetActiveConversation(context.Background(), "c1"))
	assert.Equal(t, "c1", s.ActiveConversation())

	msgs := s.Messages("c1")
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].MessageID)
	// History load marks inbound messages read.
	assert.Equal(t, 0, s.UnreadCount("c1"))
	fetcher.AssertExpectations(t)
}

func TestSetActiveConversationSurfacesFetchError(t *testing.T) {
	fetcher := &mocks.FetcherMock{}
	s := newTestSession(t, &mocks.FakeDialer{}, fetcher)

	fetchErr := &history.FetchError{ConversationID: "c1", StatusCode: 500}
	fetcher.On("Fetch", context.Background(), "c1").Return(nil, fetchErr).Once()

	err := s.SetActiveConversation(context.Background(), "c1")
	require.Error(t, err)
	var typed *history.FetchError
	require.ErrorAs(t, err, &typed)
	fetcher.AssertExpectations(t)
}

type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	msgs    map[string][]models.Message
}

func (f *blockingFetcher) Fetch(ctx context.Context, conversationID string) ([]models.Message, error) {
	if conversationID == "c1" {
		f.entered <- struct{}{}
		<-f.release
	}
	return f.msgs[conversationID], nil
}

func TestStaleHistoryFetchDiscarded(t *testing.T) {
	at := time.Now().UTC()
	fetcher := &blockingFetcher{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		msgs: map[string][]models.Message{
			"c1": {{MessageID: "m1", ConversationID: "c1", SenderID: "u2", Content: "old", CreatedAt: at}},
			"c2": {{MessageID: "m2", ConversationID: "c2", SenderID: "u2", Content: "new", CreatedAt: at}},
		},
	}
	s := newTestSession(t, &mocks.FakeDialer{}, fetcher)

	done := make(chan error, 1)
	go func() {
		done <- s.SetActiveConversation(context.Background(), "c1")
	}()

	// Switch away while the c1 fetch is still in flight.
	<-fetcher.entered
	require.NoError(t, s.SetActiveConversation(context.Background(), "c2"))
	close(fetcher.release)
	require.NoError(t, <-done)

	assert.Equal(t, "c2", s.ActiveConversation())
	assert.Len(t, s.Messages("c2"), 1)
	assert.Empty(t, s.Messages("c1"), "late result for a stale conversation must be discarded")
}

func TestStateChangesPublished(t *testing.T) {
	dialer := &mocks.FakeDialer{}
	publisher := &capturingPublisher{}
	cfg := realtime.Config{ServerURL: "ws://chat-server/ws", UserID: "u1", Token: "tok", ReconnectDelay: 5 * time.Millisecond}
	s := New(cfg, dialer, &mocks.FetcherMock{}, publisher, 30*time.Millisecond)
	defer s.Close()

	openConnected(t, dialer, s)

	require.Eventually(t, func() bool {
		for _, name := range publisher.names() {
			if name == "ws_connect" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestCloseIsIdempotent(t *testing.T) {
	dialer := &mocks.FakeDialer{}
	s := newTestSession(t, dialer, &mocks.FetcherMock{})
	openConnected(t, dialer, s)

	s.Close()
	s.Close()
	assert.Equal(t, realtime.StateDisconnected, s.Status().State)
}
