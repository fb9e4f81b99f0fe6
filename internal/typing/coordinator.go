package typing

import (
	"sync"
	"time"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// DefaultExpiry bounds how long a typing indicator may live without a refresh.
const DefaultExpiry = 3 * time.Second

// Sender hands outbound typing signals to the realtime connection.
type Sender interface {
	Send(event string, data interface{})
}

// Coordinator tracks per-peer typing state in both directions. Outbound
// signals are auto-stopped after the expiry window so a lost stop event on
// our side cannot leave the peer with a stuck indicator; inbound state gets
// the same expiry so a crashed peer cannot leave one with us. Every timer is
// owned here and cancelled on Close.
type Coordinator struct {
	sender Sender
	expiry time.Duration

	mu       sync.Mutex
	closed   bool
	outbound map[string]*time.Timer
	inbound  map[string]*time.Timer
}

// NewCoordinator builds a coordinator sending through the given sender. A
// non-positive expiry falls back to DefaultExpiry.
func NewCoordinator(sender Sender, expiry time.Duration) *Coordinator {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Coordinator{
		sender:   sender,
		expiry:   expiry,
		outbound: make(map[string]*time.Timer),
		inbound:  make(map[string]*time.Timer),
	}
}

// NotifyTyping sends a typing signal for peerID. A true signal arms (or
// refreshes) the auto-stop timer; a false signal cancels it.
func (c *Coordinator) NotifyTyping(peerID string, isTyping bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if t, ok := c.outbound[peerID]; ok {
		t.Stop()
		delete(c.outbound, peerID)
	}
	if isTyping {
		var t *time.Timer
		t = time.AfterFunc(c.expiry, func() { c.autoStop(peerID, t) })
		c.outbound[peerID] = t
	}
	c.mu.Unlock()

	c.sender.Send(models.CommandTyping, models.TypingCommand{ReceiverID: peerID, IsTyping: isTyping})
}

func (c *Coordinator) autoStop(peerID string, armed *time.Timer) {
	c.mu.Lock()
	if c.closed || c.outbound[peerID] != armed {
		// Refreshed or cancelled after this timer fired.
		c.mu.Unlock()
		return
	}
	delete(c.outbound, peerID)
	c.mu.Unlock()

	observability.IncTypingAutoStop()
	c.sender.Send(models.CommandTyping, models.TypingCommand{ReceiverID: peerID, IsTyping: false})
}

// SetTyping records an inbound typing signal from peerID. A true signal is
// expired automatically after the expiry window absent a refresh.
func (c *Coordinator) SetTyping(peerID string, isTyping bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if t, ok := c.inbound[peerID]; ok {
		t.Stop()
		delete(c.inbound, peerID)
	}
	if isTyping {
		var t *time.Timer
		t = time.AfterFunc(c.expiry, func() { c.expireInbound(peerID, t) })
		c.inbound[peerID] = t
	}
}

func (c *Coordinator) expireInbound(peerID string, armed *time.Timer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inbound[peerID] != armed {
		return
	}
	delete(c.inbound, peerID)
}

// IsTyping reports whether peerID is currently composing.
func (c *Coordinator) IsTyping(peerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inbound[peerID]
	return ok
}

// Close cancels every pending timer. Subsequent calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for peer, t := range c.outbound {
		t.Stop()
		delete(c.outbound, peer)
	}
	for peer, t := range c.inbound {
		t.Stop()
		delete(c.inbound, peer)
	}
}
