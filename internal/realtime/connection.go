// Package realtime owns the live side of the messaging core: websocket
// connections with bounded outbound buffers, and the per-room registry that
// fans events out to current members. Nothing in this package is persisted;
// durable state lives in repo/services.
package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
	// pingPeriod is the keepalive interval for idle connections.
	pingPeriod = 30 * time.Second
	// defaultSendBuffer is the outbound queue depth per connection.
	defaultSendBuffer = 256
)

// ErrClosed is returned by Send after the connection has been closed.
var ErrClosed = errors.New("connection closed")

// ErrBufferFull is returned by Send when the client cannot keep up and its
// bounded outbound buffer overflows; the connection is closed as a result so
// one slow member can never stall a room broadcast.
var ErrBufferFull = errors.New("connection send buffer exceeded")

// Connection is the ephemeral runtime binding between one authenticated
// identity and one open room subscription. It wraps a websocket and
// coordinates outbound writes via a buffered channel; it is safe for
// concurrent use. The Registry owns a connection for its joined lifetime.
type Connection struct {
	ID     string
	UserID string
	RoomID string

	ws    *websocket.Conn
	send  chan []byte
	start sync.Once
	once  sync.Once
	close chan struct{}
}

// NewConnection constructs a Connection for the given identity and room.
// A bufferSize <= 0 selects the default.
func NewConnection(userID, roomID string, ws *websocket.Conn, bufferSize int) *Connection {
	if bufferSize <= 0 {
		bufferSize = defaultSendBuffer
	}
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		RoomID: roomID,
		ws:     ws,
		send:   make(chan []byte, bufferSize),
		close:  make(chan struct{}),
	}
}

// Start launches the write loop. Repeated calls are no-ops; exactly one
// loop ever writes to the underlying websocket.
func (c *Connection) Start() {
	c.start.Do(func() {
		go c.writeLoop()
	})
}

// Send enqueues payload for delivery. Delivery is best-effort: if the client
// is slow and the buffer is full, the connection is closed to keep
// backpressure bounded, and ErrBufferFull is returned.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferFull
	}
}

// Close terminates the connection with the given close code and reason and
// stops the write loop. It is safe to call multiple times.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		if c.ws == nil {
			return
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Closed reports whether Close has completed.
func (c *Connection) Closed() bool {
	select {
	case <-c.close:
		return true
	default:
		return false
	}
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.writeMessage(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

func (c *Connection) writeMessage(payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

func (c *Connection) writePing() error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}
