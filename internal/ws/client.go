package ws

import "sync"

// wsConn is the subset of *websocket.Conn the handler uses; tests substitute a
// fake.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v any) error
	Close() error
}

// client wraps one live connection. Writes are serialized by the mutex because
// fan-out goroutines and the read loop both send; the websocket library does
// not allow concurrent writers.
type client struct {
	mu     sync.Mutex
	conn   wsConn
	userID string
}

func newClient(conn wsConn) *client {
	return &client{conn: conn}
}

// Send implements sessions.Conn.
func (c *client) Send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
