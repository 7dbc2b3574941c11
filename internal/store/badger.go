package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
)

// BadgerStore persists chats and messages in BadgerDB.
//
// Message keys are formatted as "msg:{chatId}:{timestamp_padded}:{ulid}" so a
// plain prefix scan yields insertion order: the 19-digit zero padding keeps
// lexicographic and chronological order aligned, and the ULID disambiguates
// two messages written in the same nanosecond.
type BadgerStore struct {
	db  *badger.DB
	log zerolog.Logger
}

// OpenBadger opens (or creates) a BadgerStore at path. An empty path opens an
// in-memory database, used by tests and throwaway environments.
func OpenBadger(path string, log zerolog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerStore{db: db, log: log}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func messageKey(msg chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", msg.ChatID, msg.CreatedAt.UnixNano(), msg.ID))
}

// validChatID rejects ids that would alias another chat's key prefix: a ":"
// inside a chat id makes "a:x" messages land inside chat "a"'s scan range.
func validChatID(chatID string) bool {
	return chatID != "" && !strings.Contains(chatID, ":")
}

func messagePrefix(chatID string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

func chatKey(chatID string) []byte { return []byte("chat:" + chatID) }

func statusKey(userID string) []byte { return []byte("status:" + userID) }

// SaveMessage persists msg, assigning ID and CreatedAt when unset.
func (s *BadgerStore) SaveMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	if !validChatID(msg.ChatID) {
		return chat.Message{}, chat.ValidationError("chat id %q is empty or contains a reserved character", msg.ChatID)
	}
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return chat.Message{}, fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg), value); err != nil {
			return err
		}
		return s.updateLastMessage(txn, msg)
	})
	if err != nil {
		return chat.Message{}, fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return msg, nil
}

// updateLastMessage stamps the saved message onto its chat record, in the
// same transaction as the message write. Messages for chats with no record
// leave nothing to stamp.
func (s *BadgerStore) updateLastMessage(txn *badger.Txn, msg chat.Message) error {
	item, err := txn.Get(chatKey(msg.ChatID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	var c chat.Chat
	if err := item.Value(func(value []byte) error { return json.Unmarshal(value, &c) }); err != nil {
		return err
	}
	c.LastMessage = &msg
	value, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return txn.Set(chatKey(c.ID), value)
}

// MessagesByChat returns every message of the chat, oldest first.
func (s *BadgerStore) MessagesByChat(ctx context.Context, chatID string) ([]chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var messages []chat.Message
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var msg chat.Message
				if err := json.Unmarshal(value, &msg); err != nil {
					return fmt.Errorf("decode message at %s: %w", it.Item().Key(), err)
				}
				messages = append(messages, msg)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead flags unread messages not sent by exceptUserID as read.
func (s *BadgerStore) MarkRead(ctx context.Context, chatID, exceptUserID string, at time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	updated := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg chat.Message
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				return fmt.Errorf("decode message at %s: %w", item.Key(), err)
			}
			if msg.Read || msg.SenderID == exceptUserID {
				continue
			}
			readAt := at
			msg.Read = true
			msg.ReadAt = &readAt
			value, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("marshal message %s: %w", msg.ID, err)
			}
			if err := txn.Set(item.KeyCopy(nil), value); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark read in chat %s: %w", chatID, err)
	}
	return updated, nil
}

// CreateChat persists a new chat, assigning its ID when unset.
func (s *BadgerStore) CreateChat(ctx context.Context, c chat.Chat) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	} else if !validChatID(c.ID) {
		return chat.Chat{}, chat.ValidationError("chat id %q contains a reserved character", c.ID)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	value, err := json.Marshal(c)
	if err != nil {
		return chat.Chat{}, fmt.Errorf("marshal chat %s: %w", c.ID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(chatKey(c.ID), value)
	})
	if err != nil {
		return chat.Chat{}, fmt.Errorf("create chat %s: %w", c.ID, err)
	}
	return c, nil
}

// GetChat loads a chat by identity.
func (s *BadgerStore) GetChat(ctx context.Context, chatID string) (chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return chat.Chat{}, err
	}
	var c chat.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &c)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return chat.Chat{}, ErrNotFound
		}
		return chat.Chat{}, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return c, nil
}

// ChatsByUser lists every chat the user participates in, most recently
// active first. Chat records carry their last message, so recency ordering
// needs no message scans.
func (s *BadgerStore) ChatsByUser(ctx context.Context, userID string) ([]chat.Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var chats []chat.Chat
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("chat:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var c chat.Chat
				if err := json.Unmarshal(value, &c); err != nil {
					return fmt.Errorf("decode chat at %s: %w", it.Item().Key(), err)
				}
				if c.HasParticipant(userID) {
					chats = append(chats, c)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(chats, func(i, j int) bool {
		return lastActivity(chats[i]).After(lastActivity(chats[j]))
	})
	return chats, nil
}

func lastActivity(c chat.Chat) time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.CreatedAt
}

// ParticipantsOf resolves the chat's tagged membership.
func (s *BadgerStore) ParticipantsOf(ctx context.Context, chatID string) ([]chat.Participant, error) {
	c, err := s.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return c.Participants, nil
}

type presenceRecord struct {
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"lastSeen"`
}

// SetOnline records the user's presence flag and last-seen timestamp.
func (s *BadgerStore) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(presenceRecord{Online: online, LastSeen: at})
	if err != nil {
		return fmt.Errorf("marshal presence for %s: %w", userID, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(statusKey(userID), value)
	})
	if err != nil {
		return fmt.Errorf("set online for %s: %w", userID, err)
	}
	return nil
}

// LastSeen reports the stored presence flag and timestamp for a user. Unknown
// users are reported as never seen.
func (s *BadgerStore) LastSeen(ctx context.Context, userID string) (bool, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return false, time.Time{}, err
	}
	var rec presenceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(statusKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &rec)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, fmt.Errorf("last seen for %s: %w", userID, err)
	}
	return rec.Online, rec.LastSeen, nil
}
