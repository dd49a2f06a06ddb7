// Package ws adapts gorilla websocket connections to the connection
// registry.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients connect from mobile apps and browser origins unknown in
	// advance; authentication happens at the gateway.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Upgrade upgrades an HTTP request to a websocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(c, defaultWriteTimeout), nil
}

// Conn wraps a websocket connection with serialized, deadline-bounded
// writes. Gorilla connections allow only one concurrent writer.
type Conn struct {
	mu           sync.Mutex
	ws           *websocket.Conn
	writeTimeout time.Duration
}

// NewConn wraps the websocket connection. A non-positive timeout falls
// back to the default.
func NewConn(ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Conn{ws: ws, writeTimeout: writeTimeout}
}

// Send writes one text message. A write failing its deadline reports an
// error so the registry drops the connection.
func (c *Conn) Send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// Close closes the underlying websocket.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// ReadLoop consumes inbound frames until the peer disconnects, invoking
// onClose exactly once. Courier and customer sockets are push-only, but
// reads must still drain to process control frames.
func (c *Conn) ReadLoop(onClose func()) {
	defer onClose()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
