// Package api exposes the REST surface around the realtime core: chat
// creation, message history for reconnect reconciliation, read receipts, and
// presence lookups, plus health and metrics endpoints.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/auth"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/metrics"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/server"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// Deps carries everything the router needs.
type Deps struct {
	Store           store.Store
	Registry        *server.Registry
	WS              http.Handler
	Authn           *auth.Authenticator
	AssistantUserID string
	AllowedOrigins  []string
	Log             zerolog.Logger
}

// NewRouter builds the chi router with logging, recovery, CORS, and metrics
// middleware applied to every route.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{
		store:       deps.Store,
		registry:    deps.Registry,
		authn:       deps.Authn,
		assistantID: deps.AssistantUserID,
		log:         deps.Log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(requestLogger(deps.Log))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/ws", deps.WS)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chats", h.CreateChat)
		r.Get("/chats/{chatID}", h.GetChat)
		r.Get("/chats/{chatID}/messages", h.GetMessages)
		r.Post("/chats/{chatID}/read", h.MarkRead)
		r.Get("/users/{userID}/chats", h.ListUserChats)
		r.Get("/users/{userID}/status", h.UserStatus)
	})

	return r
}

// requestLogger logs each request and feeds the HTTP request counter.
func requestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				metrics.HTTPRequestsTotal.WithLabelValues(
					r.Method, r.URL.Path, strconv.Itoa(ww.Status()),
				).Inc()
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
