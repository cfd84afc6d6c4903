package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of active clients keyed by user ID and pushes
// notification payloads to them.
type Hub struct {
	// Registered clients map: user ID -> connections
	clients map[uint]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]map[*Client]bool),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.UserID] == nil {
				h.clients[client.UserID] = make(map[*Client]bool)
			}
			h.clients[client.UserID][client] = true
			log.Printf("🔔 User connected: %d", client.UserID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.clients[client.UserID]; ok {
				if conns[client] {
					delete(conns, client)
					close(client.send)
					if len(conns) == 0 {
						delete(h.clients, client.UserID)
					}
					log.Printf("🔕 User disconnected: %d", client.UserID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// SendToUser pushes a message to every open connection of the user.
// Returns false when the user has no live connection.
func (h *Hub) SendToUser(userID uint, message interface{}) bool {
	h.mu.RLock()
	conns := h.clients[userID]
	h.mu.RUnlock()

	if len(conns) == 0 {
		return false
	}

	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return false
	}

	delivered := false
	h.mu.RLock()
	for client := range conns {
		select {
		case client.send <- jsonMsg:
			delivered = true
		default:
			// Buffer full or client dead
		}
	}
	h.mu.RUnlock()
	return delivered
}
