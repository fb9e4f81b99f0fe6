package realtime

import "encoding/json"

// ConnState is the lifecycle state of the realtime connection.
type ConnState int

const (
	// StateDisconnected means no connection is open and none is being opened.
	StateDisconnected ConnState = iota

	// StateConnecting means a connection attempt is in flight.
	StateConnecting

	// StateConnected means the server acknowledged the connection.
	StateConnected

	// StateErrored means the last attempt failed; automatic retry may still
	// be pending, or the retry budget is exhausted.
	StateErrored
)

// String returns the lowercase name of the state.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the state as its string name.
func (s ConnState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// StateChange describes one connection state transition.
type StateChange struct {
	Old ConnState
	New ConnState
	Err error
}
