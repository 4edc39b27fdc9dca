package websockets

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub fans order events out to connected administrator clients.
type Hub struct {
	clients map[*Client]bool

	register chan *Client

	unregister chan *Client

	broadcast chan []byte

	done     chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		done:       make(chan struct{}),
		logger:     logger.Named("hub"),
	}
}

// Run serves registrations and broadcasts until ctx is cancelled. Every
// client still connected at that point is closed.
func (h *Hub) Run(ctx context.Context) {
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			h.remove(client)
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("Dropping slow websocket client", zap.String("user_id", client.userID))
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		for client := range h.clients {
			h.remove(client)
		}
	})
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Publish queues an event for every connected client. It never blocks once
// the hub has stopped.
func (h *Hub) Publish(eventType MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode websocket event", zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	message, err := json.Marshal(Message{Type: eventType, Data: data})
	if err != nil {
		h.logger.Error("Failed to encode websocket message", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	}
}

// attach registers client unless the hub has stopped.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}
