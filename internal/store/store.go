// Package store provides durable persistence for chats, messages, and the
// last-seen presence flags. The relay core only ever talks to the Store
// interface; BadgerStore is the production implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
)

// ErrNotFound is returned when a referenced chat does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence surface the relay core depends on. A message
// returned by SaveMessage carries its server-assigned identity and timestamp;
// MessagesByChat returns messages in insertion order.
type Store interface {
	// SaveMessage persists msg, assigning ID and CreatedAt when unset, and
	// returns the stored copy.
	SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error)

	// MessagesByChat returns every message of the chat, oldest first.
	MessagesByChat(ctx context.Context, chatID string) ([]chat.Message, error)

	// MarkRead flags every unread message in the chat whose sender is not
	// exceptUserID as read at the given time. It returns the number of
	// messages updated and is idempotent.
	MarkRead(ctx context.Context, chatID, exceptUserID string, at time.Time) (int, error)

	// ParticipantsOf resolves the chat's membership with participant kinds
	// already tagged. Returns ErrNotFound for an unknown chat.
	ParticipantsOf(ctx context.Context, chatID string) ([]chat.Participant, error)

	// CreateChat persists a new chat, assigning its ID when unset.
	CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error)

	// GetChat loads a chat by identity. Returns ErrNotFound when missing.
	GetChat(ctx context.Context, chatID string) (chat.Chat, error)

	// ChatsByUser lists every chat the user participates in, most recently
	// active first.
	ChatsByUser(ctx context.Context, userID string) ([]chat.Chat, error)

	// SetOnline records the user's presence flag and last-seen timestamp.
	SetOnline(ctx context.Context, userID string, online bool, at time.Time) error

	// LastSeen reports the stored presence flag and timestamp for a user.
	// Users never seen report a zero time without error.
	LastSeen(ctx context.Context, userID string) (bool, time.Time, error)

	// Close releases the underlying database.
	Close() error
}
