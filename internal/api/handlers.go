package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/auth"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/server"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// Handler contains shared dependencies for all REST handlers.
type Handler struct {
	store       store.Store
	registry    *server.Registry
	authn       *auth.Authenticator
	assistantID string
	log         zerolog.Logger
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Debug().Err(err).Msg("encoding response")
	}
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorize checks the bearer token against the acting user when
// authentication is enabled.
func (h *Handler) authorize(r *http.Request, userID string) error {
	if !h.authn.Enabled() {
		return nil
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return h.authn.Authorize(token, userID)
}

type createChatRequest struct {
	CreatorID    string   `json:"creatorId"`
	Participants []string `json:"participants"`
	GroupName    string   `json:"groupName,omitempty"`
}

// CreateChat persists a new chat. Participant kinds are tagged here, once,
// by comparing against the configured automated identity; nothing downstream
// re-derives them.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.CreatorID == "" || len(req.Participants) == 0 {
		h.Error(w, http.StatusBadRequest, "creatorId and participants are required")
		return
	}
	if err := h.authorize(r, req.CreatorID); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}

	members := append([]string{req.CreatorID}, req.Participants...)
	seen := make(map[string]struct{}, len(members))
	participants := make([]chat.Participant, 0, len(members))
	for _, id := range members {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		kind := chat.KindHuman
		if id == h.assistantID {
			kind = chat.KindAutomated
		}
		participants = append(participants, chat.Participant{UserID: id, Kind: kind})
	}
	if len(participants) < 2 {
		h.Error(w, http.StatusBadRequest, "a chat needs at least two distinct participants")
		return
	}

	created, err := h.store.CreateChat(r.Context(), chat.Chat{
		Participants: participants,
		GroupName:    req.GroupName,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("creating chat")
		h.Error(w, http.StatusInternalServerError, "chat could not be saved")
		return
	}
	h.JSON(w, http.StatusCreated, created)
}

// GetChat returns a chat by identity.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	c, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, fmt.Sprintf("chat %q not found", chatID))
			return
		}
		h.log.Error().Err(err).Str("chat", chatID).Msg("loading chat")
		h.Error(w, http.StatusInternalServerError, "chat could not be loaded")
		return
	}
	h.JSON(w, http.StatusOK, c)
}

// GetMessages returns the chat's messages in insertion order. This is the
// query path a reconnecting client reconciles against: messages missed while
// offline are never replayed over the relay.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if _, err := h.store.GetChat(r.Context(), chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, fmt.Sprintf("chat %q not found", chatID))
			return
		}
		h.log.Error().Err(err).Str("chat", chatID).Msg("loading chat")
		h.Error(w, http.StatusInternalServerError, "chat could not be loaded")
		return
	}

	messages, err := h.store.MessagesByChat(r.Context(), chatID)
	if err != nil {
		h.log.Error().Err(err).Str("chat", chatID).Msg("loading messages")
		h.Error(w, http.StatusInternalServerError, "messages could not be loaded")
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	h.JSON(w, http.StatusOK, messages)
}

// ListUserChats returns every chat the user belongs to, most recently active
// first. This is the discovery step of reconnect reconciliation: a client
// lists its chats, then fetches the history of each one it is behind on.
func (h *Handler) ListUserChats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	chats, err := h.store.ChatsByUser(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user", userID).Msg("listing chats")
		h.Error(w, http.StatusInternalServerError, "chats could not be loaded")
		return
	}
	if chats == nil {
		chats = []chat.Chat{}
	}
	h.JSON(w, http.StatusOK, chats)
}

type markReadRequest struct {
	UserID string `json:"userId"`
}

// MarkRead flags the chat's messages read for the given user, mirroring the
// realtime read_messages event for clients catching up over REST.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	var req markReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}
	if err := h.authorize(r, req.UserID); err != nil {
		h.Error(w, http.StatusUnauthorized, "invalid token")
		return
	}

	c, err := h.store.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, fmt.Sprintf("chat %q not found", chatID))
			return
		}
		h.log.Error().Err(err).Str("chat", chatID).Msg("loading chat")
		h.Error(w, http.StatusInternalServerError, "chat could not be loaded")
		return
	}
	if !c.HasParticipant(req.UserID) {
		h.Error(w, http.StatusForbidden, "user is not a participant of this chat")
		return
	}

	updated, err := h.store.MarkRead(r.Context(), chatID, req.UserID, time.Now().UTC())
	if err != nil {
		h.log.Error().Err(err).Str("chat", chatID).Msg("marking messages read")
		h.Error(w, http.StatusInternalServerError, "receipt could not be saved")
		return
	}
	h.JSON(w, http.StatusOK, map[string]int{"updated": updated})
}

type userStatusResponse struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// UserStatus reports live presence from the registry, falling back to the
// stored last-seen timestamp for offline users.
func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	resp := userStatusResponse{UserID: userID, IsOnline: h.registry.IsOnline(userID)}
	if !resp.IsOnline {
		_, lastSeen, err := h.store.LastSeen(r.Context(), userID)
		if err != nil {
			h.log.Error().Err(err).Str("user", userID).Msg("loading last seen")
			h.Error(w, http.StatusInternalServerError, "status could not be loaded")
			return
		}
		if !lastSeen.IsZero() {
			resp.LastSeen = &lastSeen
		}
	}
	h.JSON(w, http.StatusOK, resp)
}
