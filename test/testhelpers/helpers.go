// Package testhelpers provides a full-stack harness for integration tests:
// a relay assembled from real components (BadgerDB store, hub, router,
// gateway) behind an httptest server, plus WebSocket dial and frame helpers.
package testhelpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/config"
	"github.com/roomrelay/roomrelay/internal/server"
	"github.com/roomrelay/roomrelay/internal/store"
)

// Relay is a fully wired chat relay listening on an ephemeral port.
type Relay struct {
	Server *httptest.Server
	Hub    *server.Hub
}

// NewRelay assembles the relay with a throwaway message store. Everything is
// cleaned up when the test finishes.
func NewRelay(t *testing.T) *Relay {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	messages, err := store.New(db)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { _ = messages.Close() })

	cfg := config.Default()
	cfg.Server.AllowedOrigins = []string{"*"}
	cfg.Server.StaticDir = ""
	cfg.RateLimit.Burst = 1000 // tests should not trip the limiter

	hub := server.NewHub()
	router := chat.NewRouter(chat.NewRegistry(), chat.NewSessionTable(), messages, hub, cfg.History.PageSize)
	gateway := server.NewGateway(hub, router, cfg)
	go hub.Run()

	ts := httptest.NewServer(server.Routes(gateway, ""))

	t.Cleanup(func() {
		ts.Close()
		if err := hub.Shutdown(5 * time.Second); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})

	return &Relay{Server: ts, Hub: hub}
}

// Dial opens a WebSocket connection to the relay's chat endpoint.
func (r *Relay) Dial(t *testing.T) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(r.Server.URL, "http") + "/ws"
	header := http.Header{}
	header.Set("Origin", r.Server.URL)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// SendIntent marshals and writes one intent frame.
func SendIntent(t *testing.T, conn *websocket.Conn, intent map[string]any) {
	t.Helper()

	payload, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write intent: %v", err)
	}
}

// ReadEvent reads frames until one of the wanted type arrives or the timeout
// elapses. Other event types received meanwhile are discarded.
func ReadEvent(t *testing.T, conn *websocket.Conn, eventType string, timeout time.Duration) map[string]any {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			t.Fatalf("set read deadline: %v", err)
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %q: %v", eventType, err)
		}
		var frame map[string]any
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("unmarshal frame %q: %v", raw, err)
		}
		if frame["type"] == eventType {
			return frame
		}
	}
}

// ExpectNoEvent asserts that no frame arrives within the timeout.
func ExpectNoEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no frame, received %s", raw)
	}
	if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	t.Fatalf("unexpected error while waiting for absence of frames: %v", err)
}

// Users extracts the users field from a frame.
func Users(frame map[string]any) []string {
	raw, _ := frame["users"].([]any)
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		if s, ok := u.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
