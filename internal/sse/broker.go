// Package sse implements a Server-Sent Events broker for import progress.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mcmassia/nexusdrive/internal/importer"
)

// Event types.
const (
	EventImportProgress  = "import.progress"
	EventImportCompleted = "import.completed"
	EventImportFailed    = "import.failed"
	EventImportReverted  = "import.reverted"
	EventInbox           = "inbox.processed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + progress throttle state). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	progressMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	progressCh    chan importer.Progress
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Progress updates within one phase are
// forwarded at most once per progressThrottle.
func NewBroker(progressThrottle time.Duration) *Broker {
	if progressThrottle <= 0 {
		progressThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		progressMin:   progressThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		progressCh:    make(chan importer.Progress, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastProgress time.Time
		lastPhase    importer.Phase
	)

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
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

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case p := <-b.progressCh:
			now := time.Now()
			final := p.Total > 0 && p.Current == p.Total
			if p.Phase == lastPhase && !final && now.Sub(lastProgress) < b.progressMin {
				continue
			}
			lastPhase, lastProgress = p.Phase, now
			broadcast(Event{Type: EventImportProgress, Data: p})

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

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
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

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// ImportProgress forwards a throttled import.progress event.
func (b *Broker) ImportProgress(p importer.Progress) {
	if b.closed.Load() {
		return
	}
	select {
	case b.progressCh <- p:
	case <-b.stopped:
	}
}

// ImportCompleted publishes the result summary of a finished import.
func (b *Broker) ImportCompleted(res *importer.Result) {
	b.Publish(Event{Type: EventImportCompleted, Data: res})
}

// ImportFailed publishes an aborted import. The phase is included for fatal errors.
func (b *Broker) ImportFailed(err error) {
	data := map[string]string{"error": err.Error()}
	var fatal *importer.FatalError
	if errors.As(err, &fatal) {
		data["phase"] = string(fatal.Phase)
	}
	b.Publish(Event{Type: EventImportFailed, Data: data})
}

// ImportReverted publishes the counts removed by a revert.
func (b *Broker) ImportReverted(res *importer.RevertResult) {
	b.Publish(Event{Type: EventImportReverted, Data: res})
}

// InboxEvent reports an archive picked up from the inbox directory.
func (b *Broker) InboxEvent(kind, name string) {
	b.Publish(Event{Type: EventInbox, Data: map[string]string{"status": kind, "archive": name}})
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
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
