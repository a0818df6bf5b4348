// ABOUTME: Channel wraps one client's live WebSocket connection
// ABOUTME: Buffered outbound queue with read/write pumps and idempotent close

package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/serviceconnect/chat-gateway/internal/config"
)

// Channel is one client's live, bidirectional connection to the gateway.
// The user identity is fixed at channel open and cannot change for the
// channel's lifetime.
type Channel struct {
	ID     string
	UserID string

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	cfg    config.GatewayConfig
	logger *slog.Logger
}

// NewChannel creates a channel for an upgraded connection.
func NewChannel(id, userID string, hub *Hub, conn *websocket.Conn, cfg config.GatewayConfig, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		ID:     id,
		UserID: userID,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBuffer),
		done:   make(chan struct{}),
		cfg:    cfg,
		logger: logger.With("component", "channel", "channel_id", id),
	}
}

// ReadPump reads inbound frames and passes them to handler. It exits on
// transport loss, dropping the channel from every room it had joined.
func (c *Channel) ReadPump(handler func(*Channel, []byte)) {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Debug("read error", "error", err)
			}
			return
		}

		handler(c, message)
	}
}

// WritePump drains the outbound queue onto the socket and keeps the
// connection alive with pings.
func (c *Channel) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Enqueue marshals v and queues it for delivery. Returns false if the
// channel is closed or its queue is full (slow consumer); the frame is
// dropped rather than blocking the caller.
func (c *Channel) Enqueue(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("marshaling outbound event", "error", err)
		return false
	}
	return c.deliver(data)
}

// deliver queues raw bytes without blocking. A closed channel never accepts
// a delivery.
func (c *Channel) deliver(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Debug("dropped frame for slow channel")
		return false
	}
}

// Close tears down the channel. Safe to call multiple times.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
		c.logger.Debug("channel closed", "user_id", c.UserID)
	})
}

// Closed reports whether Close has been observed.
func (c *Channel) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
