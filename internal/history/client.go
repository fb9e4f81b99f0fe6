package history

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Fetcher is the request-response collaborator returning a conversation's
// message history, outside the realtime channel.
type Fetcher interface {
	Fetch(ctx context.Context, conversationID string) ([]models.Message, error)
}

// FetchError reports a failed history fetch. It is always surfaced to the
// caller; an empty timeline is otherwise indistinguishable from "no messages
// yet".
type FetchError struct {
	ConversationID string
	StatusCode     int
	Err            error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("history fetch for conversation %s: %v", e.ConversationID, e.Err)
	}
	return fmt.Sprintf("history fetch for conversation %s: unexpected status %d", e.ConversationID, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches message history from the chat server's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient constructs the client. A nil httpClient falls back to a client
// with a 10s timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, token: token, httpClient: httpClient}
}

// Fetch returns the ordered message list for one conversation.
func (c *Client) Fetch(ctx context.Context, conversationID string) ([]models.Message, error) {
	ctx, span := otel.Tracer("chat-client/history").Start(ctx, "history.fetch")
	span.SetAttributes(attribute.String("conversation_id", conversationID))
	defer span.End()

	start := time.Now()
	msgs, err := c.fetch(ctx, conversationID)
	observability.ObserveHistoryFetch(time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return msgs, nil
}

func (c *Client) fetch(ctx context.Context, conversationID string) ([]models.Message, error) {
	url := fmt.Sprintf("%s/chats/%s/messages", c.baseURL, conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{ConversationID: conversationID, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{ConversationID: conversationID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{ConversationID: conversationID, StatusCode: resp.StatusCode}
	}

	var msgs []models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, &FetchError{ConversationID: conversationID, Err: err}
	}
	return msgs, nil
}
