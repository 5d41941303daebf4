// Package server wires the HTTP surface: WebSocket endpoint, health check,
// metrics, and the static asset mount for the web client.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes builds the chi router for the relay. staticDir, when non-empty, is
// served at the root for the web client (an external collaborator; nothing in
// the core depends on it).
func Routes(g *Gateway, staticDir string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthHandler)
	r.Get("/ws", g.WebSocket)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}
