// Package events streams call lifecycle events to connected operator
// consoles over WebSocket.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one call lifecycle notification.
type Event struct {
	Type     string    `json:"type"`
	CallID   string    `json:"call_id,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Language string    `json:"language,omitempty"`
	At       time.Time `json:"at"`
}

// Event types published by the gateway.
const (
	TypeCallStarted   = "call.started"
	TypeTurnSubmitted = "turn.submitted"
	TypeTurnReady     = "turn.ready"
	TypeTurnFailed    = "turn.failed"
	TypeCallEnded     = "call.ended"
	TypeCallExpired   = "call.expired"
)

// Hub fans events out to subscribers. Slow subscribers get dropped events
// instead of blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	subs     map[chan Event]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan Event]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 8 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Publish sends the event to every subscriber, stamping it if needed.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Queue full: skip this subscriber rather than stall the call.
		}
	}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Subscribers reports how many consoles are connected.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Reader goroutine only watches for the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(1 << 10)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}
