package realtime_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
	"chat-client/internal/realtime"
)

func envelope(t *testing.T, event string, data interface{}) models.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return models.Envelope{Event: event, Data: raw}
}

func TestDispatchPreservesArrivalOrderPerType(t *testing.T) {
	demux := realtime.NewDemux()

	var got []string
	demux.OnMessage(func(msg models.Message) {
		got = append(got, msg.MessageID)
	})

	for _, id := range []string{"m1", "m2", "m3"} {
		demux.Dispatch(envelope(t, models.EventMessage, models.Message{MessageID: id}))
	}

	assert.Equal(t, []string{"m1", "m2", "m3"}, got)
}

func TestSubscribersAreIndependent(t *testing.T) {
	demux := realtime.NewDemux()

	var first, second int
	unsubFirst := demux.OnTyping(func(models.TypingEvent) { first++ })
	demux.OnTyping(func(models.TypingEvent) { second++ })

	demux.Dispatch(envelope(t, models.EventTyping, models.TypingEvent{PeerID: "p", IsTyping: true}))
	unsubFirst()
	demux.Dispatch(envelope(t, models.EventTyping, models.TypingEvent{PeerID: "p", IsTyping: false}))

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestDispatchWithoutSubscribersDrops(t *testing.T) {
	demux := realtime.NewDemux()
	// Must not panic or buffer.
	demux.Dispatch(envelope(t, models.EventMessage, models.Message{MessageID: "m1"}))

	var got []string
	demux.OnMessage(func(msg models.Message) { got = append(got, msg.MessageID) })
	assert.Empty(t, got, "late subscribers see no history")
}

func TestMalformedFrameSkipped(t *testing.T) {
	demux := realtime.NewDemux()

	var got []string
	demux.OnMessage(func(msg models.Message) { got = append(got, msg.MessageID) })

	demux.Dispatch(models.Envelope{Event: models.EventMessage, Data: json.RawMessage(`{not json`)})
	demux.Dispatch(envelope(t, models.EventMessage, models.Message{MessageID: "m1"}))

	assert.Equal(t, []string{"m1"}, got)
}

func TestPresenceAndDeleteEvents(t *testing.T) {
	demux := realtime.NewDemux()

	var snapshot []string
	var statuses []models.OnlineStatusEvent
	var deletes []string
	demux.OnPresenceSnapshot(func(ids []string) { snapshot = ids })
	demux.OnOnlineStatus(func(ev models.OnlineStatusEvent) { statuses = append(statuses, ev) })
	demux.OnDeleteMessage(func(ev models.DeleteMessageEvent) { deletes = append(deletes, ev.MessageID) })

	demux.Dispatch(envelope(t, models.EventGetUsers, []string{"u1", "u2"}))
	demux.Dispatch(envelope(t, models.EventOnlineStatus, models.OnlineStatusEvent{UserID: "u3", IsOnline: true}))
	demux.Dispatch(envelope(t, models.EventDeleteMessage, models.DeleteMessageEvent{MessageID: "m9"}))

	assert.Equal(t, []string{"u1", "u2"}, snapshot)
	require.Len(t, statuses, 1)
	assert.Equal(t, "u3", statuses[0].UserID)
	assert.Equal(t, []string{"m9"}, deletes)
}

func TestUnknownEventIgnored(t *testing.T) {
	demux := realtime.NewDemux()
	demux.Dispatch(models.Envelope{Event: "mystery", Data: json.RawMessage(`{}`)})
}
