// Package sse streams world state updates as Server-Sent Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster manages Server-Sent Events connections. Each client may
// filter the stream on one region.
type Broadcaster struct {
	clients    map[chan Event]string
	newClients chan subscription
	closed     chan chan Event
	events     chan Event
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zerolog.Logger
}

type subscription struct {
	ch     chan Event
	region string
}

// NewBroadcaster creates a new SSE broadcaster.
func NewBroadcaster(logger *zerolog.Logger) *Broadcaster {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Broadcaster{
		clients:    make(map[chan Event]string),
		newClients: make(chan subscription, 10), // clients may connect before Run starts
		closed:     make(chan chan Event, 10),
		events:     make(chan Event, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the broadcaster's main loop and returns when ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for client := range b.clients {
				close(client)
			}
			b.clients = make(map[chan Event]string)
			b.mu.Unlock()
			b.logger.Info().Msg("SSE broadcaster shut down")
			return

		case sub := <-b.newClients:
			b.mu.Lock()
			b.clients[sub.ch] = sub.region
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().
				Str("region", sub.region).
				Int("total_clients", total).
				Msg("SSE client connected")

		case client := <-b.closed:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client)
			}
			total := len(b.clients)
			b.mu.Unlock()
			b.logger.Info().
				Int("total_clients", total).
				Msg("SSE client disconnected")

		case event := <-b.events:
			b.mu.RLock()
			for client, region := range b.clients {
				if region != "" && event.Region != "" && event.Region != region {
					continue
				}
				select {
				case client <- event:
				default:
					b.logger.Warn().Msg("SSE client buffer full, event skipped")
				}
			}
			b.mu.RUnlock()
		}
	}
}

// Broadcast sends an event to all connected SSE clients.
func (b *Broadcaster) Broadcast(event Event) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn().Msg("SSE broadcast channel full, event dropped")
	}
}

// ClientCount returns the number of connected SSE clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP handles SSE connections. The optional region query parameter
// limits the stream to one region.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	region := r.URL.Query().Get("region")
	client := make(chan Event, 256)
	b.newClients <- subscription{ch: client, region: region}
	defer func() {
		select {
		case b.closed <- client:
		case <-b.done:
		}
	}()

	b.writeEvent(w, flusher, Event{
		Event: "connected",
		Data: map[string]any{
			"message":   "Connected to world state updates stream",
			"region":    region,
			"timestamp": time.Now(),
		},
	})

	for {
		select {
		case event, ok := <-client:
			if !ok {
				return
			}
			b.writeEvent(w, flusher, event)

		case <-r.Context().Done():
			return
		}
	}
}

// writeEvent writes an SSE event to the response writer.
func (b *Broadcaster) writeEvent(w http.ResponseWriter, flusher http.Flusher, event Event) {
	if event.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event.Event)
	}
	if event.ID != "" {
		_, _ = fmt.Fprintf(w, "id: %s\n", event.ID)
	}

	data, err := json.Marshal(event.Data)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to marshal SSE event data")
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// Event represents an SSE event.
type Event struct {
	Event  string `json:"event,omitempty"`  // Event type (optional)
	ID     string `json:"id,omitempty"`     // Event ID (optional)
	Region string `json:"region,omitempty"` // Region filter key, not written to the stream
	Data   any    `json:"data"`             // Event data
}
