// Package server constructs and runs the HTTP server that fronts the relay.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/roomrelay/roomrelay/internal/logging"
)

// CreateServer builds an HTTP server with production timeout defaults.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer begins listening and blocks until the server exits.
func StartServer(server *http.Server) error {
	logging.Info().Str("addr", server.Addr).Msg("server listening")
	return server.ListenAndServe()
}

// ShutdownServer gracefully stops the HTTP server, waiting for active
// connections up to the timeout.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("http server shutdown error")
		return err
	}
	logging.Info().Msg("http server shutdown completed")
	return nil
}
