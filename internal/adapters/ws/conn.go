// Package ws is the WebSocket transport adapter: it upgrades HTTP
// requests, pumps frames in and out, and owns the socket lifecycle.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkurev/avagate/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// wsConn pairs the socket with a buffered outbound queue. TrySend never
// blocks: a full queue is a backpressure error the manager treats as a
// dead peer.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newConn(conn *websocket.Conn, queueSize int) *wsConn {
	return &wsConn{
		conn: conn,
		send: make(chan core.Frame, queueSize),
	}
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
