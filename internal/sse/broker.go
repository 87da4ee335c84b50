// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event. An empty UserID reaches every client.
type Event struct {
	Type   string
	UserID string
	Data   interface{}
}

type subscription struct {
	ch     chan []byte
	userID string
}

type noteEventReq struct {
	userID string
	kind   string
	noteID string
}

type linksEventReq struct {
	userID   string
	noteID   string
	inserted int
}

// Broker manages SSE client connections and routes events to the clients of
// the user they belong to.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-user graph throttle timestamps). Public methods communicate with
// this loop through channels, so no mutexes are required.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	linksEventCh  chan linksEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		linksEventCh:  make(chan linksEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]string)
	lastGraph := make(map[string]time.Time)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, userID := range clients {
			if event.UserID != "" && event.UserID != userID {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			clients[sub.ch] = sub.userID

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.noteEventCh:
			broadcast(Event{
				Type:   "note." + req.kind,
				UserID: req.userID,
				Data:   map[string]string{"note_id": req.noteID},
			})

		case req := <-b.linksEventCh:
			broadcast(Event{
				Type:   "links.updated",
				UserID: req.userID,
				Data:   map[string]any{"note_id": req.noteID, "inserted": req.inserted},
			})

			now := time.Now()
			if now.Sub(lastGraph[req.userID]) >= b.graphMin {
				lastGraph[req.userID] = now
				broadcast(Event{Type: "graph.updated", UserID: req.userID, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for userID and returns its channel.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{ch: ch, userID: userID}:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to the clients it is addressed to.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes note.<kind> to the user's clients.
func (b *Broker) PublishNoteEvent(userID, kind, noteID string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{userID: userID, kind: kind, noteID: noteID}:
	case <-b.stopped:
	}
}

// PublishLinksEvent publishes links.updated and a per-user throttled
// graph.updated.
func (b *Broker) PublishLinksEvent(userID, noteID string, inserted int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.linksEventCh <- linksEventReq{userID: userID, noteID: noteID, inserted: inserted}:
	case <-b.stopped:
	}
}

// Handler returns the SSE endpoint (GET /api/events). userOf resolves the
// user a connection belongs to.
func (b *Broker) Handler(userOf func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		ch := b.Subscribe(userOf(r))
		defer b.Unsubscribe(ch)

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				_, _ = w.Write(msg)
				flusher.Flush()
			}
		}
	}
}
