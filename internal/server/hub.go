// Package server coordinates client registration, frame delivery, and
// connection cleanup for the chat relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/logging"
	"github.com/roomrelay/roomrelay/internal/metrics"
)

// Hub tracks all live client connections keyed by connection id and delivers
// outbound frames on behalf of the router. It implements chat.Sender.
//
// Delivery through Send is non-blocking: each client has a buffered send
// channel, and a client whose buffer stays full has its socket closed rather
// than stalling delivery to the rest of the room.
type Hub struct {
	clients    map[chat.ConnID]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a hub ready to manage connections. Call Run in its own
// goroutine before registering clients.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[chat.ConnID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop, handling client registration and teardown.
// It returns when Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveConnections.Set(float64(total))
			logging.Info().Str("addr", client.addr).Int("total_clients", total).Msg("client registered")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closed = true
				total := len(h.clients)
				h.mu.Unlock()
				close(client.send)
				metrics.ActiveConnections.Set(float64(total))
				logging.Info().Str("addr", client.addr).Int("total_clients", total).Msg("client unregistered")
			} else {
				h.mu.Unlock()
			}
		}
	}
}

// Send queues one frame for a connection. Unknown or closed connections are
// skipped silently; a full send buffer closes the socket so the slow client
// is torn down through the normal disconnect path.
func (h *Hub) Send(conn chat.ConnID, payload []byte) {
	h.mu.RLock()
	client, ok := h.clients[conn]
	if !ok || client.closed {
		h.mu.RUnlock()
		return
	}

	select {
	case client.send <- payload:
		h.mu.RUnlock()
	default:
		h.mu.RUnlock()
		metrics.DroppedClients.Inc()
		logging.Warn().Str("addr", client.addr).Msg("send buffer full, dropping client")
		client.closeConnection()
	}
}

// Close tears down the connection for an explicit leave. The read pump
// observes the closed socket and unwinds registration as usual.
func (h *Hub) Close(conn chat.ConnID) {
	h.mu.RLock()
	client, ok := h.clients[conn]
	h.mu.RUnlock()
	if ok {
		client.closeConnection()
	}
}

// shutdownClients tears down every live client so the pump goroutines unwind:
// closing the send channel ends the write pump, closing the socket ends the
// read pump. Clients are marked closed under the lock first so a concurrent
// Send cannot write to a closed channel.
func (h *Hub) shutdownClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		if client.closed {
			continue
		}
		client.closed = true
		clients = append(clients, client)
	}
	h.clients = make(map[chat.ConnID]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		close(client.send)
		client.closeConnection()
	}
	metrics.ActiveConnections.Set(0)
	logging.Info().Int("count", len(clients)).Msg("closed client connections")
}

// Shutdown stops the event loop, closes all connections, and waits for the
// pump goroutines to finish or the timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Msg("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
