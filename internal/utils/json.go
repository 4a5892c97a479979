package utils

import (
	"encoding/json"
	"fmt"

	"taskforge-chat/internal/models"

	"github.com/rs/zerolog/log"
)

// JSONWriter is satisfied by both the server and client websocket conns.
type JSONWriter interface {
	WriteJSON(v interface{}) error
}

// SafeJSONParse parses JSON safely
func SafeJSONParse(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Encode wraps payload into an envelope for event.
func Encode(event string, payload interface{}) (models.Envelope, error) {
	env := models.Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode %s: %w", event, err)
	}
	env.Data = data
	return env, nil
}

// SendEvent writes an envelope to a websocket connection.
// Writes on one conn are not safe for concurrent use; the caller serialises.
func SendEvent(c JSONWriter, event string, payload interface{}) error {
	env, err := Encode(event, payload)
	if err != nil {
		return err
	}
	return c.WriteJSON(env)
}

// LogError logs an error if it's not nil
func LogError(err error, context string) {
	if err != nil {
		log.Error().Err(err).Str("context", context).Msg("operation failed")
	}
}
