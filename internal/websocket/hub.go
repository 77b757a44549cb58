package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/chatcoins/internal/domain"
)

// Message types
const (
	MessageTypeEvent    = "event"
	MessageTypeFollow   = "follow"
	MessageTypeUnfollow = "unfollow"
	MessageTypePing     = "ping"
	MessageTypePong     = "pong"
	MessageTypeError    = "error"
)

// Message represents a WebSocket frame on the event feed
type Message struct {
	Type      string      `json:"type"`
	ActorID   string      `json:"actor_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub maintains the set of connected feed clients and fans committed
// economy events out to them. A client with no follow filters receives
// the full feed; a client following specific actors receives only
// events those actors appear in.
type Hub struct {
	// All connected clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound events awaiting fan-out
	broadcast chan *Message

	// Follow filter changes
	follow   chan *followRequest
	unfollow chan *followRequest

	mu sync.RWMutex

	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type followRequest struct {
	client  *Client
	actorID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		follow:     make(chan *followRequest, 64),
		unfollow:   make(chan *followRequest, 64),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.follow:
			h.mu.Lock()
			if _, ok := h.clients[req.client]; ok {
				req.client.follows[req.actorID] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client following actor", "client_id", req.client.id, "actor_id", req.actorID)

		case req := <-h.unfollow:
			h.mu.Lock()
			if _, ok := h.clients[req.client]; ok {
				delete(req.client.follows, req.actorID)
			}
			h.mu.Unlock()
			h.logger.Debug("client unfollowed actor", "client_id", req.client.id, "actor_id", req.actorID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage fans one event out to every matching client
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	event, _ := message.Data.(domain.Event)
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client's buffer is full, skip
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastEvent publishes a committed economy event to the feed
func (h *Hub) BroadcastEvent(event domain.Event) {
	message := &Message{
		Type:      MessageTypeEvent,
		ActorID:   event.ActorID,
		Data:      event,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Publish lets the hub act as an event sink for the economy service
func (h *Hub) Publish(event domain.Event) {
	h.BroadcastEvent(event)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Follow narrows a client's feed to events involving the given actor
func (h *Hub) Follow(client *Client, actorID string) {
	h.follow <- &followRequest{client: client, actorID: actorID}
}

// Unfollow removes an actor filter from a client's feed
func (h *Hub) Unfollow(client *Client, actorID string) {
	h.unfollow <- &followRequest{client: client, actorID: actorID}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
