package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

const (
	defaultMaxReconnectAttempts = 5
	defaultReconnectDelay       = time.Second
	defaultDialTimeout          = 10 * time.Second
)

// Config configures one realtime connection.
type Config struct {
	ServerURL            string
	UserID               string
	Token                string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	DialTimeout          time.Duration
}

func (c *Config) defaults() {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

// Manager owns the lifecycle of one realtime connection: dial, acknowledge,
// retry with a bounded budget, teardown. It is the sole owner of the transport
// and the only writer to the connection state.
type Manager struct {
	cfg    Config
	dialer Dialer
	demux  *Demux

	mu         sync.Mutex
	state      ConnState
	lastErr    error
	attempt    int
	transport  Transport
	retryTimer *time.Timer
	userClosed bool
	gen        int

	stateSubs handlerSet[StateChange]
}

// NewManager builds a Manager around the given dialer and demultiplexer.
func NewManager(cfg Config, dialer Dialer, demux *Demux) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, dialer: dialer, demux: demux}
}

// Demux returns the demultiplexer inbound frames are fanned out on.
func (m *Manager) Demux() *Demux {
	return m.demux
}

// State returns the current connection state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the error behind the most recent Errored transition.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Attempt returns the current reconnect attempt counter.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// OnStateChange subscribes to connection state transitions. The returned func
// unsubscribes.
func (m *Manager) OnStateChange(h func(StateChange)) func() {
	return m.stateSubs.subscribe(h)
}

// Open starts connecting. Idempotent: a no-op while Connected or Connecting.
// An explicit Open after an exhausted retry budget resets the counter and
// tries again.
func (m *Manager) Open() {
	m.mu.Lock()
	if m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.userClosed = false
	m.attempt = 0
	m.lastErr = nil
	m.gen++
	gen := m.gen
	change := m.setStateLocked(StateConnecting, nil)
	m.mu.Unlock()

	m.emitChange(change)
	go m.connect(gen)
}

// Close tears the connection down on behalf of the user. Pending retry timers
// are cancelled and automatic retries are suppressed until the next Open.
func (m *Manager) Close() {
	m.mu.Lock()
	m.userClosed = true
	m.gen++
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	t := m.transport
	m.transport = nil
	change := m.setStateLocked(StateDisconnected, nil)
	m.mu.Unlock()

	if t != nil {
		_ = t.Close()
	}
	m.emitChange(change)
}

// Send hands a command to the open transport. Dropped silently unless the
// connection is Connected; "sent" means handed to the transport, nothing more.
func (m *Manager) Send(event string, data interface{}) {
	m.mu.Lock()
	if m.state != StateConnected || m.transport == nil {
		m.mu.Unlock()
		observability.IncDroppedSend()
		log.Debug().Str("event", event).Msg("send dropped, connection not open")
		return
	}
	t := m.transport
	m.mu.Unlock()

	raw, err := json.Marshal(data)
	if err != nil {
		log.Warn().Err(err).Str("event", event).Msg("send payload marshal failed")
		return
	}
	if err := t.WriteEnvelope(models.Envelope{Event: event, Data: raw}); err != nil {
		// The matching read error tears the connection down; just record it.
		log.Warn().Err(err).Str("event", event).Msg("transport write failed")
	}
}

func (m *Manager) connect(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	defer cancel()

	target, err := m.connectURL()
	if err != nil {
		m.connectFailed(gen, err)
		return
	}

	t, err := m.dialer.Dial(ctx, target, nil)
	if err != nil {
		m.connectFailed(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.userClosed {
		m.mu.Unlock()
		_ = t.Close()
		return
	}
	m.transport = t
	m.mu.Unlock()

	go m.readLoop(gen, t)
}

func (m *Manager) connectURL() (string, error) {
	u, err := url.Parse(m.cfg.ServerURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("user_id", m.cfg.UserID)
	q.Set("token", m.cfg.Token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) readLoop(gen int, t Transport) {
	for {
		env, err := t.ReadEnvelope()
		if err != nil {
			m.transportLost(gen, err)
			return
		}

		switch env.Event {
		case models.EventConnect:
			observability.IncWSEvent(env.Event)
			m.markConnected(gen)
		case models.EventDisconnect:
			observability.IncWSEvent(env.Event)
			var ev models.DisconnectEvent
			_ = json.Unmarshal(env.Data, &ev)
			_ = t.Close()
			m.transportLost(gen, errors.New(ev.Reason))
			return
		case models.EventConnectError:
			observability.IncWSEvent(env.Event)
			var ev models.ConnectErrorEvent
			_ = json.Unmarshal(env.Data, &ev)
			_ = t.Close()
			m.connectFailed(gen, errors.New(ev.Message))
			return
		default:
			m.demux.Dispatch(env)
		}
	}
}

func (m *Manager) markConnected(gen int) {
	m.mu.Lock()
	if gen != m.gen || m.userClosed {
		m.mu.Unlock()
		return
	}
	m.attempt = 0
	m.lastErr = nil
	change := m.setStateLocked(StateConnected, nil)
	m.mu.Unlock()

	m.emitChange(change)
	log.Info().Str("user_id", m.cfg.UserID).Msg("realtime connected")

	// Register this session as online.
	m.Send(models.CommandNewUserAdd, models.NewUserAddCommand{UserID: m.cfg.UserID})
}

// transportLost handles a mid-session disconnect that was not user-initiated.
func (m *Manager) transportLost(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || m.userClosed {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	var change *StateChange
	retrying := m.armRetryLocked()
	if retrying {
		change = m.setStateLocked(StateDisconnected, nil)
	} else {
		m.lastErr = err
		change = m.setStateLocked(StateErrored, err)
	}
	m.mu.Unlock()

	m.emitChange(change)
	if !retrying {
		log.Error().Err(err).Str("user_id", m.cfg.UserID).Msg("realtime disconnected, retry budget exhausted")
	} else {
		log.Warn().Err(err).Str("user_id", m.cfg.UserID).Msg("realtime disconnected, retry scheduled")
	}
}

// connectFailed handles a failed connection attempt or a server rejection.
func (m *Manager) connectFailed(gen int, err error) {
	m.mu.Lock()
	if gen != m.gen || m.userClosed {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.lastErr = err
	change := m.setStateLocked(StateErrored, err)
	retrying := m.armRetryLocked()
	m.mu.Unlock()

	m.emitChange(change)
	if !retrying {
		log.Error().Err(err).Str("user_id", m.cfg.UserID).Msg("realtime connect failed, retry budget exhausted")
	} else {
		log.Warn().Err(err).Str("user_id", m.cfg.UserID).Msg("realtime connect failed, retry scheduled")
	}
}

// armRetryLocked arms the retry timer if the attempt budget allows.
// Reports whether a retry was scheduled. Caller holds m.mu.
func (m *Manager) armRetryLocked() bool {
	if m.attempt >= m.cfg.MaxReconnectAttempts {
		return false
	}
	m.attempt++
	observability.IncReconnectAttempt()
	m.retryTimer = time.AfterFunc(m.cfg.ReconnectDelay, m.retry)
	return true
}

func (m *Manager) retry() {
	m.mu.Lock()
	if m.userClosed || m.state == StateConnected || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	change := m.setStateLocked(StateConnecting, nil)
	m.mu.Unlock()

	m.emitChange(change)
	m.connect(gen)
}

// setStateLocked records the transition and returns it for emission once the
// lock is released. Caller holds m.mu.
func (m *Manager) setStateLocked(next ConnState, err error) *StateChange {
	if m.state == next {
		return nil
	}
	change := &StateChange{Old: m.state, New: next, Err: err}
	m.state = next
	return change
}

func (m *Manager) emitChange(change *StateChange) {
	if change == nil {
		return
	}
	m.stateSubs.emit(*change)
}
