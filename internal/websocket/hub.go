package websocket

import (
	"context"
	"sync"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/rs/zerolog"
)

// SnapshotFunc returns the frames a newly connected client needs to draw the
// dashboard in its current state
type SnapshotFunc func() [][]byte

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Frames sent to each client on register
	snapshot SnapshotFunc

	// Closed when Run returns
	stopped chan struct{}

	// Mutex to protect clients map
	mu sync.RWMutex

	logger zerolog.Logger
}

// NewHub creates a new Hub
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		stopped:    make(chan struct{}),
		logger:     logger.With().Str("component", "hub").Logger(),
	}
}

// SetSnapshot sets the snapshot sent to new clients. Call before Run.
func (h *Hub) SetSnapshot(fn SnapshotFunc) {
	h.snapshot = fn
}

// Run starts the hub's main loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.Get().RecordWebSocketConnect()

			h.logger.Info().
				Str("client_id", client.id).
				Int("total_clients", total).
				Msg("client connected")

			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWebSocketDisconnect()
				h.logger.Info().
					Str("client_id", client.id).
					Int("total_clients", len(h.clients)).
					Msg("client disconnected")
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.broadcastRaw(message)
		}
	}
}

// Broadcast sends a message to all connected clients. Messages sent after
// the hub stopped are dropped.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.stopped:
	}
}

// Register adds a client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
	}
}

// Unregister removes a client and closes its send channel
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) sendSnapshot(client *Client) {
	if h.snapshot == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, frame := range h.snapshot() {
		if !h.deliver(client, frame) {
			return
		}
	}
}

// broadcastRaw sends a raw message to all clients
func (h *Hub) broadcastRaw(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.deliver(client, message)
	}
	metrics.Get().RecordWebSocketMessage()
}

// deliver queues message for client, dropping the client when its buffer is
// full. Callers hold h.mu.
func (h *Hub) deliver(client *Client, message []byte) bool {
	select {
	case client.send <- message:
		return true
	default:
		close(client.send)
		delete(h.clients, client)
		metrics.Get().RecordWebSocketError()
		h.logger.Warn().
			Str("client_id", client.id).
			Msg("client send buffer full, closing connection")
		return false
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.logger.Info().Msg("hub stopped")
}
