package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// ReceiptPropagator handles batch read receipts: it marks every unread
// message in a chat that the reader did not send as read, then notifies the
// other participants' live connections. Recipients reinterpret the coarse
// (chatId, userId) receipt as "everything I sent in this chat is now read";
// there is no per-message acknowledgment.
type ReceiptPropagator struct {
	hub *Hub
}

// NewReceiptPropagator creates the propagator bound to the hub.
func NewReceiptPropagator(hub *Hub) *ReceiptPropagator {
	return &ReceiptPropagator{hub: hub}
}

// Propagate persists the batch receipt and fans it out. The operation is
// idempotent: a repeated call updates nothing further and re-broadcasts a
// receipt that is harmless to re-deliver.
func (p *ReceiptPropagator) Propagate(reader *Client, data json.RawMessage) error {
	var payload ReadMessagesPayload
	if err := unmarshalPayload(data, &payload); err != nil {
		p.hub.emitError(reader, EventReadMessages, "chatId and userId are required")
		return err
	}
	if bound := reader.User(); bound == "" || bound != payload.UserID {
		p.hub.emitError(reader, EventReadMessages, "userId does not match connection identity")
		return chat.ValidationError("userId %q does not match bound user %q", payload.UserID, bound)
	}

	ctx, cancel := p.hub.storeContext()
	updated, err := p.hub.store.MarkRead(ctx, payload.ChatID, payload.UserID, time.Now().UTC())
	cancel()
	if err != nil {
		p.hub.emitError(reader, EventReadMessages, "receipt could not be saved")
		return chat.StorageError("mark read", err)
	}
	reader.log.Debug().Str("chat", payload.ChatID).Int("updated", updated).Msg("marked messages read")

	pctx, pcancel := p.hub.storeContext()
	room, err := p.hub.store.GetChat(pctx, payload.ChatID)
	pcancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.UnknownTargetError("chat", payload.ChatID)
		}
		return err
	}

	for _, participant := range room.OtherParticipants(payload.UserID) {
		p.hub.emitToUser(participant.UserID, EventMessagesRead, payload)
	}
	return nil
}
