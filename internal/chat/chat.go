// Package chat defines the domain entities shared by the relay core, the
// durable store, and the HTTP API: messages, chats, and tagged participants.
package chat

import "time"

// ParticipantKind distinguishes people from the scripted responder. The kind
// is resolved once, when a chat's participants are loaded, and never
// re-derived from the identity string afterwards.
type ParticipantKind string

const (
	KindHuman     ParticipantKind = "HUMAN"
	KindAutomated ParticipantKind = "AUTOMATED"
)

// Participant is one member of a chat.
type Participant struct {
	UserID string          `json:"userId"`
	Kind   ParticipantKind `json:"kind"`
}

// Chat is a persisted grouping of participants that messages belong to. The
// relay never mutates membership; it only resolves "who else is in here".
// LastMessage is maintained by the store on every save so chat listings can
// be ordered by recency without scanning message history.
type Chat struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	GroupName    string        `json:"groupName,omitempty"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// Message is the canonical persisted message. The server assigns ID and
// CreatedAt before saving; clients must treat the delivered copy as the
// source of truth for both.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chatId"`
	SenderID  string     `json:"senderId"`
	Content   string     `json:"content"`
	Read      bool       `json:"read"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	Automated bool       `json:"automated"`
	CreatedAt time.Time  `json:"createdAt"`
}

// OtherParticipants returns every participant except the given user.
func (c Chat) OtherParticipants(userID string) []Participant {
	others := make([]Participant, 0, len(c.Participants))
	for _, p := range c.Participants {
		if p.UserID != userID {
			others = append(others, p)
		}
	}
	return others
}

// HasParticipant reports whether the user is a member of the chat.
func (c Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
