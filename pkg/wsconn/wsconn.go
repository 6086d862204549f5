// Package wsconn wraps a websocket connection with a write lock.
// gorilla/websocket supports one concurrent reader and one concurrent
// writer per connection; broadcasts from other members' handlers make
// concurrent writes routine, so every write goes through this wrapper.
package wsconn

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Output is the wire envelope for every server-to-client message.
type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type Conn struct {
	*websocket.Conn
	mu sync.Mutex
}

func New(ws *websocket.Conn) *Conn {
	return &Conn{Conn: ws}
}

// WriteJSON serializes writers. Reads stay on the embedded connection
// and must remain single-goroutine (the read loop owns them).
func (c *Conn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.Conn.WriteJSON(v)
}
