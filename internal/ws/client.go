// Package ws adapts gorilla/websocket connections to the hub.Conn contract.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
	readLimit     = 512
)

// ErrClosed is returned when sending on a closed client.
var ErrClosed = errors.New("websocket connection closed")

// Client is a push-only view of a WebSocket connection. Writes are serialized;
// client-to-server messages are read and discarded.
type Client struct {
	id    string
	conn  *websocket.Conn
	clock clockwork.Clock

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

func NewClient(conn *websocket.Conn, clock clockwork.Clock) *Client {
	return &Client{
		id:    uuid.NewString(),
		conn:  conn,
		clock: clock,
		done:  make(chan struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// Send writes one text frame.
func (c *Client) Send(data []byte) error {
	return c.SendTimeout(data, writeDeadline)
}

// SendTimeout writes one text frame, failing if the write takes longer than timeout.
func (c *Client) SendTimeout(data []byte, timeout time.Duration) error {
	if !c.IsOpen() {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(c.clock.Now().Add(timeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		_ = c.shutdown(err)
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (c *Client) IsOpen() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Close sends a close frame with code and reason, then closes the socket.
func (c *Client) Close(code int, reason string) error {
	if !c.IsOpen() {
		return nil
	}
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, c.clock.Now().Add(writeDeadline))
	return c.shutdown(ErrClosed)
}

func (c *Client) shutdown(cause error) error {
	var err error
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = cause
		c.errMu.Unlock()
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Run reads from the connection and keeps it alive with pings until the peer
// goes away, a read fails or ctx is cancelled. It returns the close cause.
func (c *Client) Run(ctx context.Context) error {
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(c.clock.Now().Add(pongDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(c.clock.Now().Add(pongDeadline))
	})

	go c.keepAlive(ctx)

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("WebSocket error", "client_id", c.id, "error", err)
			}
			_ = c.shutdown(err)
			return c.Err()
		}
	}
}

func (c *Client) keepAlive(ctx context.Context) {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			_ = c.Close(websocket.CloseGoingAway, "Server shutting down")
			return
		case <-ticker.Chan():
			deadline := c.clock.Now().Add(writeDeadline)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("Ping failed", "client_id", c.id, "error", err)
				_ = c.shutdown(err)
				return
			}
		}
	}
}
