package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients     map[*Client]struct{}
	userClients map[uuid.UUID][]*Client
	register    chan *Client
	unregister  chan *Client
	broadcast   chan []byte
	mu          sync.RWMutex
	logger      *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]struct{}),
		userClients: make(map[uuid.UUID][]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan []byte, 16),
		logger:      logger,
	}
}

func (h *Hub) Register(c *Client) { h.register <- c }

func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Run serves the hub until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.userClients[c.UserID] = append(h.userClients[c.UserID], c)
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered", zap.String("user_id", c.UserID.String()))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.Send <- msg:
				default:
					// slow consumer
					h.drop(c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.Send)
	clients := h.userClients[c.UserID]
	for i, other := range clients {
		if other == c {
			h.userClients[c.UserID] = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(h.userClients[c.UserID]) == 0 {
		delete(h.userClients, c.UserID)
	}
}

// ClientCount is the number of open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(messageType string, payload interface{}) ([]byte, error) {
	return json.Marshal(Envelope{Type: messageType, Payload: payload, Timestamp: time.Now().UTC()})
}

// Broadcast queues payload for every connected client.
func (h *Hub) Broadcast(ctx context.Context, messageType string, payload interface{}) error {
	msg, err := encode(messageType, payload)
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendToUser delivers payload to every connection of userID, skipping full buffers.
func (h *Hub) SendToUser(userID uuid.UUID, messageType string, payload interface{}) error {
	msg, err := encode(messageType, payload)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.userClients[userID] {
		select {
		case c.Send <- msg:
		default:
			h.logger.Warn("WebSocket buffer full, message dropped", zap.String("user_id", userID.String()))
		}
	}
	return nil
}
