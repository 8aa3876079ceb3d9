package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Ruz-on-git/FiguraJustCommunicateServer/internal/protocol"
)

const (
	// writeWait is the deadline for a single outbound write.
	writeWait = 10 * time.Second
	// pongWait is how long an idle connection is kept alive waiting for a pong.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
)

var (
	errConnectionClosed = errors.New("client connection is closed")
	errContextCancelled = errors.New("client context cancelled")
)

// client wraps one WebSocket connection. Outbound frames go through a
// buffered channel drained by a single writer goroutine, so a slow reader
// on the other end never blocks a sibling connection's goroutine.
type client struct {
	id         string
	ws         *websocket.Conn
	remoteAddr string
	ctx        context.Context
	cancel     context.CancelFunc
	sendCh     chan []byte
	mu         sync.RWMutex
	closed     bool
}

// newClient wraps an upgraded connection and starts its write pump. The
// transport-level read limit is installed here, before any frame is read.
func newClient(ws *websocket.Conn, remoteAddr string) *client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &client{
		id:         uuid.New().String(),
		ws:         ws,
		remoteAddr: remoteAddr,
		ctx:        ctx,
		cancel:     cancel,
		sendCh:     make(chan []byte, 256),
	}

	ws.SetReadLimit(protocol.MaxMessageSize)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()

	return c
}

// ID returns the connection's identifier, generated at upgrade time and
// constant for the connection's lifetime.
func (c *client) ID() string {
	return c.id
}

// RemoteAddr returns the peer's network address.
func (c *client) RemoteAddr() string {
	return c.remoteAddr
}

// Send serializes v to JSON and queues it for delivery. Returns an error if
// the connection is already closed; delivery itself is best effort.
func (c *client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errConnectionClosed
	}

	select {
	case c.sendCh <- data:
		c.mu.RUnlock()
		return nil
	case <-c.ctx.Done():
		c.mu.RUnlock()
		return errContextCancelled
	}
}

// read blocks for the next inbound frame, extending the keepalive deadline
// after each successful read.
func (c *client) read() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return nil, err
	}
	return data, nil
}

// readWithin blocks for the next inbound frame with a one-shot deadline,
// then restores the keepalive deadline. A deadline miss surfaces as a
// timeout error from the read.
func (c *client) readWithin(d time.Duration) ([]byte, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(d)); err != nil {
		return nil, err
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return nil, err
	}
	return data, nil
}

// Close closes the connection with a normal closure code.
func (c *client) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

// closeWith sends a close frame with the given code and reason, cancels the
// client context, and tears the connection down. Safe to call more than once.
func (c *client) closeWith(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.cancel()

	message := websocket.FormatCloseMessage(code, reason)
	deadline := time.Now().Add(time.Second)
	c.ws.WriteControl(websocket.CloseMessage, message, deadline)

	close(c.sendCh)
	return c.ws.Close()
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		// Cancel before taking the lock: a Send blocked on a full channel
		// holds a read lock until the context wakes it.
		c.cancel()
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.sendCh:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}
