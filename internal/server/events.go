// Package server defines the event envelope and payload types exchanged over
// WebSocket connections. Event names are the wire contract shared with every
// client and must not be renamed.
package server

import (
	"encoding/json"
	"time"
)

// Client-to-server events.
const (
	EventUserConnected = "user_connected"
	EventSendMessage   = "send_message"
	EventTyping        = "typing"
	EventStopTyping    = "stop_typing"
	EventReadMessages  = "read_messages"
)

// Server-to-client events.
const (
	EventMessageSent      = "message_sent"
	EventNewMessage       = "new_message"
	EventUserStatusChange = "user_status_change"
	EventUserTyping       = "user_typing"
	EventUserStopTyping   = "user_stop_typing"
	EventMessagesRead     = "messages_read"
	EventMessageError     = "message_error"
)

// Envelope frames every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// UserConnectedPayload binds a connection to a user identity.
type UserConnectedPayload struct {
	UserID string `json:"userId" validate:"required"`
}

// SendMessagePayload is an outbound send request. RecipientID is accepted for
// wire compatibility but recipients are always resolved from the chat's
// participant set.
type SendMessagePayload struct {
	ChatID      string `json:"chatId" validate:"required,excludes=:"`
	SenderID    string `json:"senderId" validate:"required"`
	RecipientID string `json:"recipientId,omitempty"`
	Content     string `json:"content" validate:"required"`
}

// TypingPayload carries typing and stop_typing signals, and is echoed
// verbatim as user_typing / user_stop_typing.
type TypingPayload struct {
	ChatID string `json:"chatId" validate:"required,excludes=:"`
	UserID string `json:"userId" validate:"required"`
}

// ReadMessagesPayload requests a batch read receipt, and is echoed as
// messages_read to the other participants.
type ReadMessagesPayload struct {
	ChatID string `json:"chatId" validate:"required,excludes=:"`
	UserID string `json:"userId" validate:"required"`
}

// StatusChangePayload announces a presence transition to every connection.
// LastSeen is only present on transitions to offline.
type StatusChangePayload struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// ErrorPayload is the failure acknowledgment sent back to the connection
// whose request could not be completed.
type ErrorPayload struct {
	Event  string `json:"event"`
	Reason string `json:"reason"`
}

// encodeEvent frames data in an Envelope and returns the wire bytes.
func encodeEvent(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
