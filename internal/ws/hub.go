package ws

import (
	"errors"
	"sync"
)

// ErrClientNotFound is returned when sending to an unknown connection.
var ErrClientNotFound = errors.New("client not found")

// Hub is the directory of connected clients, keyed by connection ID.
// Room membership lives in the presence registry.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.ID] == client {
		delete(h.clients, client.ID)
	}
}

// Get returns the client registered under id.
func (h *Hub) Get(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[id]

	return client, ok
}

// Send queues msg on the client registered under id.
func (h *Hub) Send(id string, msg Message) error {
	client, ok := h.Get(id)
	if !ok {
		return ErrClientNotFound
	}

	return client.Send(msg)
}

// TotalClients returns the total number of connected clients.
func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
