package store

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	st, err := OpenBadger("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestSaveMessageAssignsIdentity(t *testing.T) {
	st := newTestStore(t)

	saved, err := st.SaveMessage(t.Context(), chat.Message{
		ChatID: "c1", SenderID: "alice", Content: "hi",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.False(t, saved.Read)

	// A pre-assigned identity and timestamp survive untouched.
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	saved, err = st.SaveMessage(t.Context(), chat.Message{
		ID: "fixed", ChatID: "c1", SenderID: "alice", Content: "again", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed", saved.ID)
	assert.True(t, saved.CreatedAt.Equal(at))
}

func TestSaveMessageRejectsAliasingChatID(t *testing.T) {
	st := newTestStore(t)

	_, err := st.SaveMessage(t.Context(), chat.Message{ChatID: "room-a", SenderID: "alice", Content: "mine"})
	require.NoError(t, err)

	// A chat id carrying the key separator must not be able to plant
	// messages inside another chat's scan range.
	_, err = st.SaveMessage(t.Context(), chat.Message{ChatID: "room-a:x", SenderID: "mallory", Content: "injected"})
	assert.ErrorIs(t, err, chat.ErrValidation)

	_, err = st.SaveMessage(t.Context(), chat.Message{ChatID: "", SenderID: "mallory", Content: "injected"})
	assert.ErrorIs(t, err, chat.ErrValidation)

	messages, err := st.MessagesByChat(t.Context(), "room-a")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "mine", messages[0].Content)
}

func TestCreateChatRejectsAliasingID(t *testing.T) {
	st := newTestStore(t)

	_, err := st.CreateChat(t.Context(), chat.Chat{
		ID: "room-a:x",
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "bob", Kind: chat.KindHuman},
		},
	})
	assert.ErrorIs(t, err, chat.ErrValidation)
}

func TestMessagesByChatOrderAndIsolation(t *testing.T) {
	st := newTestStore(t)

	for i, content := range []string{"first", "second", "third"} {
		_, err := st.SaveMessage(t.Context(), chat.Message{
			ChatID:    "c1",
			SenderID:  "alice",
			Content:   content,
			CreatedAt: time.Date(2026, 3, 1, 10, 0, i, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	_, err := st.SaveMessage(t.Context(), chat.Message{ChatID: "c2", SenderID: "bob", Content: "elsewhere"})
	require.NoError(t, err)

	messages, err := st.MessagesByChat(t.Context(), "c1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Equal(t, "third", messages[2].Content)

	empty, err := st.MessagesByChat(t.Context(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMarkReadSkipsReaderAndIsIdempotent(t *testing.T) {
	st := newTestStore(t)

	for _, m := range []chat.Message{
		{ChatID: "c1", SenderID: "bob", Content: "one"},
		{ChatID: "c1", SenderID: "bob", Content: "two"},
		{ChatID: "c1", SenderID: "alice", Content: "mine"},
	} {
		_, err := st.SaveMessage(t.Context(), m)
		require.NoError(t, err)
	}

	at := time.Now().UTC()
	updated, err := st.MarkRead(t.Context(), "c1", "alice", at)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	messages, err := st.MessagesByChat(t.Context(), "c1")
	require.NoError(t, err)
	for _, m := range messages {
		if m.SenderID == "bob" {
			assert.True(t, m.Read)
			require.NotNil(t, m.ReadAt)
			assert.True(t, m.ReadAt.Equal(at))
		} else {
			assert.False(t, m.Read)
		}
	}

	// Already-read messages keep their original receipt time.
	updated, err = st.MarkRead(t.Context(), "c1", "alice", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, updated)

	messages, err = st.MessagesByChat(t.Context(), "c1")
	require.NoError(t, err)
	require.NotNil(t, messages[0].ReadAt)
	assert.True(t, messages[0].ReadAt.Equal(at))
}

func TestMarkReadEmptyChat(t *testing.T) {
	st := newTestStore(t)

	updated, err := st.MarkRead(t.Context(), "nothing-here", "alice", time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, updated)
}

func TestCreateAndGetChat(t *testing.T) {
	st := newTestStore(t)

	created, err := st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "assistant-bot", Kind: chat.KindAutomated},
		},
		GroupName: "support",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	loaded, err := st.GetChat(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, loaded.ID)
	assert.Equal(t, "support", loaded.GroupName)
	require.Len(t, loaded.Participants, 2)
	assert.Equal(t, chat.KindAutomated, loaded.Participants[1].Kind)

	_, err = st.GetChat(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParticipantsOf(t *testing.T) {
	st := newTestStore(t)

	created, err := st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "bob", Kind: chat.KindHuman},
		},
	})
	require.NoError(t, err)

	participants, err := st.ParticipantsOf(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 2)

	_, err = st.ParticipantsOf(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveMessageStampsLastMessage(t *testing.T) {
	st := newTestStore(t)

	created, err := st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "bob", Kind: chat.KindHuman},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, created.LastMessage)

	_, err = st.SaveMessage(t.Context(), chat.Message{ChatID: created.ID, SenderID: "alice", Content: "one"})
	require.NoError(t, err)
	second, err := st.SaveMessage(t.Context(), chat.Message{ChatID: created.ID, SenderID: "bob", Content: "two"})
	require.NoError(t, err)

	loaded, err := st.GetChat(t.Context(), created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.LastMessage)
	assert.Equal(t, second.ID, loaded.LastMessage.ID)
	assert.Equal(t, "two", loaded.LastMessage.Content)
}

func TestChatsByUserOrdersByActivity(t *testing.T) {
	st := newTestStore(t)

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	older, err := st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "bob", Kind: chat.KindHuman},
		},
		CreatedAt: base,
	})
	require.NoError(t, err)
	newer, err := st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "alice", Kind: chat.KindHuman},
			{UserID: "carol", Kind: chat.KindHuman},
		},
		CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = st.CreateChat(t.Context(), chat.Chat{
		Participants: []chat.Participant{
			{UserID: "bob", Kind: chat.KindHuman},
			{UserID: "carol", Kind: chat.KindHuman},
		},
		CreatedAt: base,
	})
	require.NoError(t, err)

	chats, err := st.ChatsByUser(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, newer.ID, chats[0].ID)
	assert.Equal(t, older.ID, chats[1].ID)

	// A message in the older chat bumps it to the front.
	_, err = st.SaveMessage(t.Context(), chat.Message{
		ChatID: older.ID, SenderID: "bob", Content: "bump",
		CreatedAt: base.Add(2 * time.Hour),
	})
	require.NoError(t, err)

	chats, err = st.ChatsByUser(t.Context(), "alice")
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ID, chats[0].ID)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "bump", chats[0].LastMessage.Content)

	none, err := st.ChatsByUser(t.Context(), "stranger")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPresenceRoundTrip(t *testing.T) {
	st := newTestStore(t)

	online, lastSeen, err := st.LastSeen(t.Context(), "ghost")
	require.NoError(t, err)
	assert.False(t, online)
	assert.True(t, lastSeen.IsZero())

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, st.SetOnline(t.Context(), "alice", true, at))

	online, lastSeen, err = st.LastSeen(t.Context(), "alice")
	require.NoError(t, err)
	assert.True(t, online)
	assert.True(t, lastSeen.Equal(at))

	later := at.Add(time.Minute)
	require.NoError(t, st.SetOnline(t.Context(), "alice", false, later))

	online, lastSeen, err = st.LastSeen(t.Context(), "alice")
	require.NoError(t, err)
	assert.False(t, online)
	assert.True(t, lastSeen.Equal(later))
}

func TestStoreHonorsCanceledContext(t *testing.T) {
	st := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.SaveMessage(ctx, chat.Message{ChatID: "c1", SenderID: "a", Content: "x"})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = st.MessagesByChat(ctx, "c1")
	assert.ErrorIs(t, err, context.Canceled)
}
