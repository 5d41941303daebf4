// Package server exposes the WebSocket upgrade and health check handlers.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/config"
	"github.com/roomrelay/roomrelay/internal/logging"
)

// Gateway owns the WebSocket endpoint: it upgrades requests, registers the
// connection with the router, and hands the client to the hub, which starts
// the pump goroutines.
type Gateway struct {
	hub       *Hub
	router    *chat.Router
	upgrader  websocket.Upgrader
	maxSize   int64
	rateLimit config.RateLimitConfig
}

// NewGateway wires the upgrade handler to the hub and router using the
// server's origin allow-list and limits.
func NewGateway(hub *Hub, router *chat.Router, cfg *config.Config) *Gateway {
	origins := newOriginPolicy(cfg.Server.AllowedOrigins)
	return &Gateway{
		hub:    hub,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		maxSize:   cfg.Server.MaxMessageSize,
		rateLimit: cfg.RateLimit,
	}
}

// WebSocket handles upgrade requests on the chat endpoint.
func (g *Gateway) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	id := g.router.Connect()
	client := newClient(id, conn, g.hub, g.router, r.RemoteAddr, g.maxSize, g.rateLimit.Burst, g.rateLimit.RefillInterval)
	select {
	case g.hub.register <- client:
	case <-g.hub.ctx.Done():
		// Hub already stopped; refuse the connection instead of blocking.
		g.router.Disconnect(id)
		client.closeConnection()
	}
}

// HealthHandler reports liveness in plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ok")
}
