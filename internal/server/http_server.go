// Package server constructs the HTTP server that fronts the WebSocket
// endpoint and the REST API, with production timeouts and graceful shutdown.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// CreateServer returns an HTTP server for the given address and handler with
// conservative timeouts.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownServer drains the HTTP server, waiting up to timeout for active
// requests to finish.
func ShutdownServer(server *http.Server, timeout time.Duration, log zerolog.Logger) error {
	log.Info().Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
		return err
	}
	log.Info().Msg("http server shutdown complete")
	return nil
}
