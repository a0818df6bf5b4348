// ABOUTME: Transport abstraction for the session's live connection
// ABOUTME: Wraps gorilla/websocket behind Dialer and Conn interfaces

package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is a live gateway connection. Implementations must allow one
// concurrent reader and one concurrent writer.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Dialer establishes live gateway connections. The controller redials
// through the same Dialer on reconnect.
type Dialer interface {
	Dial(ctx context.Context, url, token string) (Conn, error)
}

// WSDialer dials the gateway over WebSocket with bearer authentication.
type WSDialer struct {
	HandshakeTimeout time.Duration
}

// Dial connects to the gateway's /ws endpoint.
func (d *WSDialer) Dial(ctx context.Context, url, token string) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	dialer := &websocket.Dialer{HandshakeTimeout: timeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

func (c *wsConn) WriteJSON(v any) error {
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
