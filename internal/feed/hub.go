// Package feed publishes status snapshots to web clients over WebSocket.
package feed

import (
	"sync"
	"time"
)

// Snapshot is one status broadcast from a session.
type Snapshot struct {
	Session string    `json:"session"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// Subscriber queue depth; slow readers miss snapshots instead of stalling sessions
const queueSize = 4

// Hub fans snapshots out to subscribers. It implements session.StatusSink.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Snapshot]struct{}
	latest *Snapshot
	closed bool
	now    func() time.Time
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Snapshot]struct{}), now: time.Now}
}

// Status records text as the latest snapshot and offers it to every subscriber.
func (h *Hub) Status(sessionID, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	snap := Snapshot{Session: sessionID, Text: text, Time: h.now()}
	h.latest = &snap
	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Latest returns the most recent snapshot, if any.
func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest == nil {
		return Snapshot{}, false
	}
	return *h.latest, true
}

// Subscribe returns a channel of future snapshots and a function that ends
// the subscription. The channel is closed when either is called or the hub
// closes.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Snapshot, queueSize)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later snapshots are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
