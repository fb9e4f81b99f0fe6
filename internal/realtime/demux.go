package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// handlerSet holds the subscribers for one event type. Subscribing returns an
// unsubscribe func so consumers can detach without affecting each other.
type handlerSet[T any] struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]func(T)
}

func (s *handlerSet[T]) subscribe(h func(T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = make(map[int]func(T))
	}
	id := s.next
	s.next++
	s.handlers[id] = h
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *handlerSet[T]) emit(v T) {
	s.mu.RLock()
	handlers := make([]func(T), 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()
	for _, h := range handlers {
		h(v)
	}
}

// Demux fans inbound frames out to typed subscribers. Handlers run
// synchronously on the connection's read goroutine, so handlers for distinct
// event types are never invoked concurrently. Frames with no subscriber are
// dropped; consumers needing history fetch it explicitly.
type Demux struct {
	messages  handlerSet[models.Message]
	edits     handlerSet[models.Message]
	deletes   handlerSet[models.DeleteMessageEvent]
	snapshots handlerSet[[]string]
	statuses  handlerSet[models.OnlineStatusEvent]
	typing    handlerSet[models.TypingEvent]
}

// NewDemux creates an empty demultiplexer.
func NewDemux() *Demux {
	return &Demux{}
}

func (d *Demux) OnMessage(h func(models.Message)) func() { return d.messages.subscribe(h) }

func (d *Demux) OnEditMessage(h func(models.Message)) func() { return d.edits.subscribe(h) }

func (d *Demux) OnDeleteMessage(h func(models.DeleteMessageEvent)) func() {
	return d.deletes.subscribe(h)
}

func (d *Demux) OnPresenceSnapshot(h func([]string)) func() { return d.snapshots.subscribe(h) }

func (d *Demux) OnOnlineStatus(h func(models.OnlineStatusEvent)) func() {
	return d.statuses.subscribe(h)
}

func (d *Demux) OnTyping(h func(models.TypingEvent)) func() { return d.typing.subscribe(h) }

// Dispatch decodes one inbound frame and republishes it to subscribers of its
// type. A malformed payload is logged and skipped; one bad frame must not take
// down the pipeline.
func (d *Demux) Dispatch(env models.Envelope) {
	observability.IncWSEvent(env.Event)

	switch env.Event {
	case models.EventMessage:
		var msg models.Message
		if !decode(env, &msg) {
			return
		}
		d.messages.emit(msg)
	case models.EventEditMessage:
		var msg models.Message
		if !decode(env, &msg) {
			return
		}
		d.edits.emit(msg)
	case models.EventDeleteMessage:
		var del models.DeleteMessageEvent
		if !decode(env, &del) {
			return
		}
		d.deletes.emit(del)
	case models.EventGetUsers:
		var ids []string
		if !decode(env, &ids) {
			return
		}
		d.snapshots.emit(ids)
	case models.EventOnlineStatus:
		var status models.OnlineStatusEvent
		if !decode(env, &status) {
			return
		}
		d.statuses.emit(status)
	case models.EventTyping:
		var typing models.TypingEvent
		if !decode(env, &typing) {
			return
		}
		d.typing.emit(typing)
	default:
		log.Debug().Str("event", env.Event).Msg("unhandled realtime event")
	}
}

func decode(env models.Envelope, v interface{}) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		observability.IncMalformedFrame()
		log.Warn().Err(err).Str("event", env.Event).Msg("malformed realtime frame dropped")
		return false
	}
	return true
}
