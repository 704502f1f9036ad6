// Package sse implements a per-user Server-Sent Events broker for journal updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/solace/internal/auth"
)

// Journal event types.
const (
	EventEntryCreated      = "entry.created"
	EventEntryInsights     = "entry.insights"
	EventReflectionUpdated = "reflection.updated"
	EventAnalyticsUpdated  = "analytics.updated"
)

// Event represents an SSE event to deliver.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type userEvent struct {
	userID string
	event  Event
	// journal events are followed by a throttled analytics.updated.
	journal bool
}

type subscription struct {
	userID string
	ch     chan []byte
}

// Broker manages SSE client connections and delivers events to the clients
// of one user.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + per-user analytics throttle timestamps). Public methods communicate
// with this loop through channels, so no mutexes are required.
type Broker struct {
	analyticsMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan userEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given analytics throttle interval.
func NewBroker(analyticsThrottle time.Duration) *Broker {
	if analyticsThrottle <= 0 {
		analyticsThrottle = 2 * time.Second
	}

	b := &Broker{
		analyticsMin:  analyticsThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan userEvent, 256),
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
	lastAnalytics := make(map[string]time.Time)

	deliver := func(userID string, event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch, owner := range clients {
			if owner != userID {
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

		case ue := <-b.publishCh:
			deliver(ue.userID, ue.event)
			if !ue.journal {
				continue
			}
			now := time.Now()
			if now.Sub(lastAnalytics[ue.userID]) >= b.analyticsMin {
				lastAnalytics[ue.userID] = now
				deliver(ue.userID, Event{Type: EventAnalyticsUpdated, Data: map[string]string{}})
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

// Subscribe adds a new client for userID and returns its channel.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscription{userID: userID, ch: ch}:
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

// Publish sends an event to the clients of userID.
func (b *Broker) Publish(userID string, event Event) {
	b.send(userEvent{userID: userID, event: event})
}

// PublishJournalEvent publishes a journal change and a throttled
// analytics.updated event to the clients of userID.
func (b *Broker) PublishJournalEvent(userID, eventType string, data any) {
	b.send(userEvent{userID: userID, event: Event{Type: eventType, Data: data}, journal: true})
}

func (b *Broker) send(ue userEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ue:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events). The caller's
// identity must already be on the request context.
//
//	@Summary		Stream journal events for the caller
//	@Tags			events
//	@Produce		text/event-stream
//	@Success		200	{string}	string	"event stream"
//	@Failure		401	{object}	map[string]string
//	@Security		BearerAuth
//	@Router			/events [get]
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
		return
	}

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

	ch := b.Subscribe(id.UserID)
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
