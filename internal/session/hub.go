package session

import (
	"sync"

	"github.com/sagar5412/rapidraw/internal/models"
)

// Hub tracks which connections belong to which room so events can be fanned
// out. Document state lives in the registry; the hub only knows membership.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomID]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[roomID] = clients
	}
	clients[c] = struct{}{}
}

// Leave detaches the connection and returns how many remain in the room.
func (h *Hub) Leave(roomID string, c *Client) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.rooms[roomID]
	if !ok {
		return 0
	}
	delete(clients, c)
	if len(clients) == 0 {
		delete(h.rooms, roomID)
	}
	return len(clients)
}

// ClientCount reports the number of connections attached to the room.
func (h *Hub) ClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Broadcast sends the envelope to every room member except sender. The
// member list is snapshotted under the lock and the writes happen outside
// it, so a slow connection never blocks the room.
func (h *Hub) Broadcast(roomID string, sender *Client, env models.Envelope) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		if c != sender {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(env)
	}
}
