package websocket

import (
	"sync"
	"time"

	"session-tracker/internal/config"
	"session-tracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client is one WebSocket connection. It implements presence.Channel: the
// hub and the engine only ever see Send and Close.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	cfg  config.WebSocketConfig

	// send is never closed; done signals the write pump to stop.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		id:   "conn_" + uuid.NewString(),
		hub:  hub,
		conn: conn,
		cfg:  cfg,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close stops the write pump, which closes the socket. Safe to call more
// than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregisterClient(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket error on %s: %v", c.id, err)
			}
			return
		}
		if !c.hub.submit(c, message) {
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				logger.Error("Write error on %s: %v", c.id, err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
