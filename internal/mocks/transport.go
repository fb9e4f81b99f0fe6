package mocks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"chat-client/internal/models"
	"chat-client/internal/realtime"
)

// FakeTransport is a scriptable realtime transport. Tests push inbound frames
// on Inbound and inspect outbound frames via Sent.
type FakeTransport struct {
	Inbound chan models.Envelope

	mu     sync.Mutex
	sent   []models.Envelope
	closed bool
	done   chan struct{}
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		Inbound: make(chan models.Envelope, 16),
		done:    make(chan struct{}),
	}
}

func (t *FakeTransport) ReadEnvelope() (models.Envelope, error) {
	select {
	case env, ok := <-t.Inbound:
		if !ok {
			return models.Envelope{}, io.EOF
		}
		return env, nil
	case <-t.done:
		return models.Envelope{}, io.EOF
	}
}

func (t *FakeTransport) WriteEnvelope(env models.Envelope) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("transport closed")
	}
	t.sent = append(t.sent, env)
	return nil
}

func (t *FakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.done)
	}
	return nil
}

// Sent returns a copy of every frame written so far.
func (t *FakeTransport) Sent() []models.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Envelope, len(t.sent))
	copy(out, t.sent)
	return out
}

// FakeDialer hands out FakeTransports, optionally failing every dial.
type FakeDialer struct {
	FailAlways bool

	mu         sync.Mutex
	transports []*FakeTransport
}

func (d *FakeDialer) Dial(ctx context.Context, url string, header http.Header) (realtime.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailAlways {
		d.transports = append(d.transports, nil)
		return nil, errors.New("dial refused")
	}
	ft := NewFakeTransport()
	d.transports = append(d.transports, ft)
	return ft, nil
}

// SetFailAlways toggles dial failures under the lock.
func (d *FakeDialer) SetFailAlways(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FailAlways = fail
}

// DialCount reports how many dial attempts were made.
func (d *FakeDialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// LastTransport returns the most recently dialed transport, or nil.
func (d *FakeDialer) LastTransport() *FakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := len(d.transports) - 1; i >= 0; i-- {
		if d.transports[i] != nil {
			return d.transports[i]
		}
	}
	return nil
}
