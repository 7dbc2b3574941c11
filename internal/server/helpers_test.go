package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/autoreply"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// newTestHub builds a hub over an in-memory store. Lifecycle methods are
// driven directly instead of through Run, so tests stay synchronous.
func newTestHub(t *testing.T) (*Hub, *store.BadgerStore) {
	t.Helper()
	st, err := store.OpenBadger("", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := NewHub(zerolog.Nop(), st, autoreply.NewKeyword(), Options{StoreTimeout: time.Second})
	return h, st
}

// connectUser attaches a transport-less client and binds it to userID.
func connectUser(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c := NewClient(nil, h, "test", "")
	h.attachClient(c)
	h.bindClient(c, userID)
	return c
}

// attachOnly attaches a client without binding an identity.
func attachOnly(t *testing.T, h *Hub, claimedUser string) *Client {
	t.Helper()
	c := NewClient(nil, h, "test", claimedUser)
	h.attachClient(c)
	return c
}

// drainEvents empties the client's send queue and returns the envelopes.
func drainEvents(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var events []Envelope
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return events
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(payload, &env))
			events = append(events, env)
		default:
			return events
		}
	}
}

// eventsNamed filters envelopes by event name.
func eventsNamed(events []Envelope, name string) []Envelope {
	var matched []Envelope
	for _, env := range events {
		if env.Event == name {
			matched = append(matched, env)
		}
	}
	return matched
}

// decodeData unmarshals an envelope payload into v.
func decodeData(t *testing.T, env Envelope, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, v))
}

// envelope frames a payload the way a client would send it.
func envelope(t *testing.T, event string, data any) Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return Envelope{Event: event, Data: raw}
}

// seedChat persists a chat with the given participants.
func seedChat(t *testing.T, st store.Store, participants ...chat.Participant) chat.Chat {
	t.Helper()
	created, err := st.CreateChat(t.Context(), chat.Chat{Participants: participants})
	require.NoError(t, err)
	return created
}

func human(userID string) chat.Participant {
	return chat.Participant{UserID: userID, Kind: chat.KindHuman}
}

func automated(userID string) chat.Participant {
	return chat.Participant{UserID: userID, Kind: chat.KindAutomated}
}
