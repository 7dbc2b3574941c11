// Package server exposes the WebSocket upgrade handler that feeds new
// connections into the hub.
package server

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/auth"
)

// WSHandler upgrades HTTP requests to WebSocket connections and registers
// them with the hub. When authentication is enabled, the upgrade requires a
// valid token (query parameter "token") and the asserted identity is pinned
// to the connection so a later user_connected cannot claim someone else.
type WSHandler struct {
	hub      *Hub
	authn    *auth.Authenticator
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewWSHandler builds the upgrade handler with the given origin allow-list.
func NewWSHandler(hub *Hub, authn *auth.Authenticator, allowedOrigins []string, log zerolog.Logger) *WSHandler {
	policy := newOriginPolicy(allowedOrigins, log)
	return &WSHandler{
		hub:   hub,
		authn: authn,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		log: log,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed, websocket endpoint only accepts GET", http.StatusMethodNotAllowed)
		return
	}

	var claimedUser string
	if h.authn.Enabled() {
		claims, err := h.authn.ValidateToken(r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "invalid or missing token", http.StatusUnauthorized)
			return
		}
		claimedUser = claims.UserID
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, claimedUser)

	// The hub attaches the client and launches its pump goroutines.
	h.hub.register <- client
}
