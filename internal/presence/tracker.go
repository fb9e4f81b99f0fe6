package presence

import (
	"sort"
	"sync"
)

// Tracker maintains the set of user ids currently believed online. It is
// written only by the demultiplexer callbacks and shared-read by consumers.
// State is not persisted across reconnects; a fresh connection is expected to
// deliver a new snapshot.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]struct{})}
}

// Snapshot replaces the entire set with the given user ids.
func (t *Tracker) Snapshot(userIDs []string) {
	next := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		next[id] = struct{}{}
	}
	t.mu.Lock()
	t.online = next
	t.mu.Unlock()
}

// SetOnline applies an incremental join/leave. Adding a present id or
// removing an absent one is a no-op.
func (t *Tracker) SetOnline(userID string, online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if online {
		t.online[userID] = struct{}{}
		return
	}
	delete(t.online, userID)
}

// IsOnline reports whether the user is currently considered online.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// AllOnline returns the online user ids, sorted for determinism.
func (t *Tracker) AllOnline() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
