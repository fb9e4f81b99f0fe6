package realtime

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"chat-client/internal/models"
)

// Transport is one open bidirectional channel to the messaging server.
type Transport interface {
	ReadEnvelope() (models.Envelope, error)
	WriteEnvelope(env models.Envelope) error
	Close() error
}

// Dialer opens a Transport. Injected so tests can supply a fake.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Transport, error)
}

// WebsocketDialer dials the server over a gorilla websocket.
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string, header http.Header) (Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return &websocketTransport{conn: conn}, nil
}

type websocketTransport struct {
	conn *websocket.Conn
}

func (t *websocketTransport) ReadEnvelope() (models.Envelope, error) {
	var env models.Envelope
	if err := t.conn.ReadJSON(&env); err != nil {
		return models.Envelope{}, err
	}
	return env, nil
}

func (t *websocketTransport) WriteEnvelope(env models.Envelope) error {
	return t.conn.WriteJSON(env)
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}
