// Package server manages individual WebSocket clients: one read pump
// decoding inbound frames into the router, one write pump draining the
// buffered send channel, rate limiting, and ping/pong keep-alive.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/logging"
)

const (
	sendBufferSize = 256
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	writeWait      = 10 * time.Second
)

// Client binds one WebSocket connection to its opaque connection id. The hub
// owns registration; the router owns all protocol state for the id.
type Client struct {
	id      chat.ConnID
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	router  *chat.Router
	addr    string
	closed  bool
	limiter *rate.Limiter
}

// newClient wraps an upgraded connection. burst and refill define the
// inbound rate limit: burst messages replenished evenly over refill.
func newClient(id chat.ConnID, conn *websocket.Conn, hub *Hub, router *chat.Router, addr string, maxMessageSize int64, burst int, refill time.Duration) *Client {
	conn.SetReadLimit(maxMessageSize)
	limit := rate.Limit(float64(burst) / refill.Seconds())

	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
		router:  router,
		addr:    addr,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// readPump reads inbound frames and hands them to the router. It exits on
// any read error, unwinding the session through the disconnect path.
func (c *Client) readPump() {
	defer func() {
		c.router.Disconnect(c.id)
		// During shutdown the hub's run loop is gone; nothing would receive
		// the hand-off, so fall through on cancellation instead of blocking.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.closeConnection()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Warn().Err(err).Str("addr", c.addr).Msg("failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			logging.Warn().Str("addr", c.addr).Msg("rate limit exceeded, discarding frame")
			continue
		}

		c.router.Dispatch(c.id, raw)
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel on unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					logging.Warn().Err(err).Str("addr", c.addr).Msg("write failed")
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeConnection closes the socket, tolerating repeated closes.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		logging.Debug().Err(err).Str("addr", c.addr).Msg("error closing connection")
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		logging.Warn().Str("addr", c.addr).Msg("frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		logging.Debug().Str("addr", c.addr).Msg("client disconnected")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		logging.Debug().Str("addr", c.addr).Msg("connection closed")
	default:
		logging.Warn().Err(err).Str("addr", c.addr).Msg("websocket read error")
	}
}
