package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/api"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/auth"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/autoreply"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/config"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/server"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("loading configuration")
	}

	logger := newLogger(cfg)
	logger.Info().Str("addr", cfg.Addr).Str("env", cfg.Env).Msg("starting chat relay")

	st, err := store.OpenBadger(cfg.BadgerPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("opening store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error().Err(err).Msg("closing store")
		}
	}()

	authn := auth.New(cfg.AuthSecret, cfg.AuthTokenTTL)
	if authn.Enabled() {
		logger.Info().Msg("authentication enabled")
	} else {
		logger.Warn().Msg("authentication disabled, trusting client identities")
	}

	hub := server.NewHub(logger, st, autoreply.NewKeyword(), server.Options{
		StoreTimeout:      cfg.StoreTimeout,
		MaxMessageSize:    cfg.MaxMessageSize,
		RateLimitBurst:    cfg.RateBurst,
		RateLimitInterval: cfg.RateInterval,
	})
	go hub.Run()

	router := api.NewRouter(api.Deps{
		Store:           st,
		Registry:        hub.Registry(),
		WS:              server.NewWSHandler(hub, authn, cfg.AllowedOrigins, logger),
		Authn:           authn,
		AssistantUserID: cfg.AssistantUserID,
		AllowedOrigins:  cfg.AllowedOrigins,
		Log:             logger,
	})

	httpServer := server.CreateServer(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("http server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}

	if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, logger); err != nil {
		logger.Error().Err(err).Msg("http shutdown incomplete")
	}
	if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
		logger.Error().Err(err).Msg("hub shutdown incomplete")
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	if cfg.IsDevelopment() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			Level(level).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
}
