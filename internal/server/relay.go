// Package server relays chat messages: persist first, then fan out to the
// sender and every other participant's live connections.
package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/autoreply"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/metrics"
	"github.com/Himanshu-test-account/real-time-messaging-app/internal/store"
)

// Relay accepts outbound send requests. Side effects are strictly ordered:
// the store write completes before any delivery, the sender's
// acknowledgment precedes recipient fan-out, and an automated reply is
// persisted and delivered only after the original message.
type Relay struct {
	hub   *Hub
	reply autoreply.Generator
}

// NewRelay creates a Relay bound to the hub's registry and store.
func NewRelay(hub *Hub, gen autoreply.Generator) *Relay {
	return &Relay{hub: hub, reply: gen}
}

// Send validates, persists, and fans out one message from the given
// connection. Validation and storage failures are acknowledged to the sender
// as a message_error; nothing is ever delivered for an unpersisted message.
func (r *Relay) Send(sender *Client, data json.RawMessage) error {
	var payload SendMessagePayload
	if err := unmarshalPayload(data, &payload); err != nil {
		r.hub.emitError(sender, EventSendMessage, "chatId, senderId and content are required")
		return err
	}
	if bound := sender.User(); bound == "" || bound != payload.SenderID {
		r.hub.emitError(sender, EventSendMessage, "senderId does not match connection identity")
		return chat.ValidationError("senderId %q does not match bound user %q", payload.SenderID, sender.User())
	}

	msg, err := r.persist(chat.Message{
		ChatID:   payload.ChatID,
		SenderID: payload.SenderID,
		Content:  payload.Content,
	})
	if err != nil {
		r.hub.emitError(sender, EventSendMessage, "message could not be saved")
		return err
	}
	metrics.MessagesPersisted.WithLabelValues("human").Inc()

	// Ack to the originating connection so the sender's UI reflects the
	// canonical persisted message, server-assigned id and timestamp included.
	r.hub.emit(sender, EventMessageSent, msg)

	participants, err := r.participants(payload.ChatID)
	if err != nil {
		if errors.Is(err, chat.ErrUnknownTarget) {
			// Persisted and acked, but there is nobody to deliver to.
			sender.log.Warn().Str("chat", payload.ChatID).Msg("send to unknown chat, skipping delivery")
			return nil
		}
		return err
	}

	others := lo.Filter(participants, func(p chat.Participant, _ int) bool {
		return p.UserID != payload.SenderID
	})
	for _, p := range others {
		r.hub.emitToUser(p.UserID, EventNewMessage, msg)
	}

	bot, found := lo.Find(others, func(p chat.Participant) bool {
		return p.Kind == chat.KindAutomated
	})
	if !found {
		return nil
	}
	return r.sendAutomatedReply(sender, bot, participants, msg)
}

// sendAutomatedReply produces the scripted answer, persists it as a second
// message, and delivers it to every participant except the automated one.
func (r *Relay) sendAutomatedReply(sender *Client, bot chat.Participant, participants []chat.Participant, original chat.Message) error {
	reply, err := r.persist(chat.Message{
		ChatID:    original.ChatID,
		SenderID:  bot.UserID,
		Content:   r.reply.Generate(original.Content),
		Automated: true,
	})
	if err != nil {
		r.hub.emitError(sender, EventSendMessage, "automated reply could not be saved")
		return err
	}
	metrics.MessagesPersisted.WithLabelValues("automated").Inc()

	for _, p := range participants {
		if p.UserID == bot.UserID {
			continue
		}
		r.hub.emitToUser(p.UserID, EventNewMessage, reply)
	}
	return nil
}

func (r *Relay) persist(msg chat.Message) (chat.Message, error) {
	ctx, cancel := r.hub.storeContext()
	defer cancel()

	saved, err := r.hub.store.SaveMessage(ctx, msg)
	if err != nil {
		return chat.Message{}, chat.StorageError("save message", err)
	}
	return saved, nil
}

func (r *Relay) participants(chatID string) ([]chat.Participant, error) {
	ctx, cancel := r.hub.storeContext()
	defer cancel()

	participants, err := r.hub.store.ParticipantsOf(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, chat.UnknownTargetError("chat", chatID)
		}
		return nil, fmt.Errorf("resolve participants of %s: %w", chatID, err)
	}
	return participants, nil
}
