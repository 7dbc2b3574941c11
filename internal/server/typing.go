package server

import (
	"encoding/json"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
)

// TypingCoordinator relays ephemeral typing signals to the other participants
// of a chat. There is no server-side typing state, no deduplication, and no
// expiry: the sending client re-arms a 2-second inactivity timer per
// keystroke and emits stop_typing itself, and a receiver clears a stale
// indicator through its own timeout if the stop signal is lost in transit.
type TypingCoordinator struct {
	hub *Hub
}

// NewTypingCoordinator creates the coordinator bound to the hub.
func NewTypingCoordinator(hub *Hub) *TypingCoordinator {
	return &TypingCoordinator{hub: hub}
}

// Relay forwards one typing or stop_typing signal as user_typing or
// user_stop_typing to every live connection of every other participant.
// Unknown chats and validation failures degrade to a no-op: typing is
// best-effort by contract.
func (t *TypingCoordinator) Relay(sender *Client, event string, data json.RawMessage) error {
	var payload TypingPayload
	if err := unmarshalPayload(data, &payload); err != nil {
		return err
	}
	if bound := sender.User(); bound == "" || bound != payload.UserID {
		return chat.ValidationError("userId %q does not match bound user %q", payload.UserID, bound)
	}

	outbound := EventUserTyping
	if event == EventStopTyping {
		outbound = EventUserStopTyping
	}

	ctx, cancel := t.hub.storeContext()
	defer cancel()
	participants, err := t.hub.store.ParticipantsOf(ctx, payload.ChatID)
	if err != nil {
		return err
	}

	for _, p := range participants {
		if p.UserID == payload.UserID {
			continue
		}
		t.hub.emitToUser(p.UserID, outbound, payload)
	}
	return nil
}
