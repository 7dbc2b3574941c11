// Package autoreply produces the scripted responses attributed to the
// automated chat participant. Replies are generated synchronously from the
// incoming text alone; the generator holds no state.
package autoreply

import (
	"fmt"
	"strings"
)

// Generator turns an incoming message into a reply.
type Generator interface {
	Generate(text string) string
}

// Keyword is the default Generator: a small pattern table checked in order,
// with an echo fallback.
type Keyword struct{}

// NewKeyword returns the keyword-based generator.
func NewKeyword() Keyword { return Keyword{} }

// Generate returns the reply for the given message text.
func (Keyword) Generate(text string) string {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "hello"), strings.Contains(lower, "hi"):
		return "Hello! How can I assist you today?"
	case strings.Contains(lower, "how are you"):
		return "I'm just a bot, but I'm doing well, thanks for asking!"
	case strings.Contains(lower, "weather"):
		return "I don't know the weather, but I hope it's sunny where you are!"
	case strings.Contains(lower, "help"):
		return "I'm here to help! What can I assist you with?"
	default:
		return fmt.Sprintf("I'm not sure I understand, but you said: %q. Try asking me something else!", text)
	}
}
