package server

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/Himanshu-test-account/real-time-messaging-app/internal/chat"
)

var validate = validator.New()

// unmarshalPayload decodes an event payload and checks its required fields.
// Any failure maps to the validation branch of the error taxonomy, before
// the caller has produced a side effect.
func unmarshalPayload(data json.RawMessage, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return chat.ValidationError("malformed payload: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		return chat.ValidationError("missing required fields: %v", err)
	}
	return nil
}
