// Package websocket streams world state updates to WebSocket clients.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Message is one update as written to clients.
type Message struct {
	Type      string    `json:"type"`
	Region    string    `json:"region,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// frame is a message encoded once for every client.
type frame struct {
	region string
	data   []byte
}

// wantedBy reports whether a client following region should get the frame.
// Unregioned frames and unfiltered clients always match.
func (f frame) wantedBy(region string) bool {
	return region == "" || f.region == "" || f.region == region
}

const (
	broadcastQueue = 256
	clientQueue    = 64
)

// Hub tracks connected clients and fans frames out to them. A client whose
// queue is full is dropped.
type Hub struct {
	frames     chan frame
	register   chan *Client
	unregister chan *Client
	logger     *zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a hub. Run must be started for clients to see anything.
func NewHub(logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		frames:     make(chan frame, broadcastQueue),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		logger:     logger,
		clients:    make(map[*Client]struct{}),
	}
}

// Run serves registrations and frames until ctx is cancelled, then closes
// every client queue.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			h.logger.Info().Msg("WebSocket hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info().Str("client_id", c.id).Str("region", c.region).Int("clients", n).Msg("WebSocket client connected")

		case c := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[c]
			if known {
				h.drop(c)
			}
			n := len(h.clients)
			h.mu.Unlock()
			if known {
				h.logger.Info().Str("client_id", c.id).Int("clients", n).Msg("WebSocket client disconnected")
			}

		case f := <-h.frames:
			h.mu.Lock()
			for c := range h.clients {
				if !f.wantedBy(c.region) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					h.drop(c)
					h.logger.Warn().Str("client_id", c.id).Msg("WebSocket client too slow, disconnected")
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop closes a client queue. Callers hold mu.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Broadcast encodes msg and queues it for every matching client. It never
// blocks; a full queue drops the message.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("Encoding WebSocket message failed")
		return
	}
	select {
	case h.frames <- frame{region: msg.Region, data: data}:
	default:
		h.logger.Warn().Str("type", msg.Type).Msg("WebSocket queue full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client is one connection. A client with a region only receives frames
// for that region.
type Client struct {
	id     string
	region string
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
}

// NewClient creates a client for an upgraded connection.
func NewClient(id, region string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:     id,
		region: region,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, clientQueue),
	}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// ReadPump keeps the read deadline moving on pongs and unregisters the
// client once the peer goes away. Inbound messages are ignored.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read failed")
			}
			return
		}
	}
}

// WritePump writes queued frames and keepalive pings until the queue is
// closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		var (
			kind int
			data []byte
		)
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ticker.C:
			kind = websocket.PingMessage
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(kind, data); err != nil {
			return
		}
	}
}
