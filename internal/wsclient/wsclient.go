// Package wsclient is the client side of the event channel: one websocket
// connection carrying envelopes in both directions. Delivery is ordered and
// at-most-once; a dropped connection is not resumable, the client must
// rejoin its room from scratch.
package wsclient

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sagar5412/rapidraw/internal/models"
)

// Client is a connected event channel. It implements canvas.Emitter.
type Client struct {
	conn    *websocket.Conn
	handler func(models.Envelope)
	logger  *zap.Logger

	mu     sync.Mutex // serializes writes
	closed bool
	done   chan struct{}
}

// Dial connects to a gateway websocket URL and starts the read loop. Every
// inbound envelope is passed to handler from a single goroutine, so the
// handler sees events in server order, never concurrently.
func Dial(url string, handler func(models.Envelope), logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Emit sends one envelope, fire-and-forget. The protocol has no retries; a
// lost event is indistinguishable from "no mutation happened" and is
// corrected by the next shapes_sync or a fresh join.
func (c *Client) Emit(env models.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err := c.conn.WriteJSON(env); err != nil {
		c.logger.Warn("write failed", zap.String("type", env.Type), zap.Error(err))
	}
}

// Close tears the channel down. The read loop exits shortly after.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

// Done is closed when the read loop has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var env models.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}
