package session

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sagar5412/rapidraw/internal/models"
)

// Client wraps one websocket connection. Sends are serialized with a mutex
// because gorilla/websocket does not allow concurrent writers.
type Client struct {
	ID   string
	Conn *websocket.Conn

	mu   sync.Mutex
	hook func(models.Envelope)
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, Conn: conn}
}

// SetSendHook replaces the default websocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.Envelope)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send delivers one envelope to the peer. Delivery is fire-and-forget:
// a write error only means this connection is on its way out, and the read
// loop will notice and run the leave path.
func (c *Client) Send(env models.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(env)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(env)
}
