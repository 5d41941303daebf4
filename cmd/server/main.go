package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/roomrelay/roomrelay/internal/chat"
	"github.com/roomrelay/roomrelay/internal/config"
	"github.com/roomrelay/roomrelay/internal/logging"
	"github.com/roomrelay/roomrelay/internal/server"
	"github.com/roomrelay/roomrelay/internal/store"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	db, err := badger.Open(badger.DefaultOptions(cfg.Store.Dir).WithLogger(nil))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("error closing message store")
		}
	}()

	messages, err := store.New(db)
	if err != nil {
		return err
	}
	defer func() {
		if err := messages.Close(); err != nil {
			logging.Error().Err(err).Msg("error releasing message id sequence")
		}
	}()

	hub := server.NewHub()
	router := chat.NewRouter(chat.NewRegistry(), chat.NewSessionTable(), messages, hub, cfg.History.PageSize)
	gateway := server.NewGateway(hub, router, cfg)

	go hub.Run()

	httpServer := server.CreateServer(cfg.Server.Listen, server.Routes(gateway, cfg.Server.StaticDir))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.Server.ShutdownTimeout); err != nil {
		logging.Error().Err(err).Msg("http shutdown did not complete cleanly")
	}
	if err := hub.Shutdown(cfg.Server.ShutdownTimeout); err != nil {
		logging.Error().Err(err).Msg("hub shutdown did not complete cleanly")
	}
	return nil
}
