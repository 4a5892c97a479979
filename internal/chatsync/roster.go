package chatsync

import (
	"encoding/json"
)

// DecodeRoster reads a room:presence payload. Relays send either a bare
// array of names or {"roomId": ..., "users": [...]}. Anything else yields an
// empty, unscoped roster; it never fails.
func DecodeRoster(data json.RawMessage) (roomID string, users []string) {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return "", nonNil(list)
	}

	var scoped struct {
		RoomID string          `json:"roomId"`
		Users  json.RawMessage `json:"users"`
	}
	if err := json.Unmarshal(data, &scoped); err != nil {
		return "", []string{}
	}
	if err := json.Unmarshal(scoped.Users, &list); err != nil {
		return scoped.RoomID, []string{}
	}
	return scoped.RoomID, nonNil(list)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
