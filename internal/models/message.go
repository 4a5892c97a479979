package models

import "encoding/json"

// Event names exchanged over the realtime transport.
const (
	EventJoin     = "room:join"
	EventLeave    = "room:leave"
	EventMessage  = "room:message"
	EventTyping   = "room:typing"
	EventPresence = "room:presence"

	// Raised locally by the transport, never sent over the wire.
	EventConnect    = "connect"
	EventDisconnect = "disconnect"
)

// ChatMessage is a single chat line in a room. It is never mutated after
// creation.
type ChatMessage struct {
	ID        string `json:"id,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// SameAs reports whether m and other identify the same message. Server ids
// win when both sides carry one; otherwise (author, text, timestamp) decides.
func (m ChatMessage) SameAs(other ChatMessage) bool {
	if m.ID != "" && other.ID != "" {
		return m.ID == other.ID
	}
	return m.Author == other.Author && m.Text == other.Text && m.Timestamp == other.Timestamp
}

// Envelope is the frame carried over the websocket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type JoinPayload struct {
	RoomID string `json:"roomId"`
	User   string `json:"user"`
}

type LeavePayload struct {
	RoomID string `json:"roomId"`
}

// MessagePayload is the room:message body in both directions.
type MessagePayload struct {
	ID        string `json:"id,omitempty"`
	RoomID    string `json:"roomId"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Message converts the payload into a ChatMessage.
func (p MessagePayload) Message() ChatMessage {
	return ChatMessage{
		ID:        p.ID,
		RoomID:    p.RoomID,
		Author:    p.Author,
		Text:      p.Text,
		Timestamp: p.Timestamp,
	}
}

type TypingPayload struct {
	RoomID string `json:"roomId"`
	Author string `json:"author"`
	Typing bool   `json:"typing"`
}

// PresencePayload is the scoped roster form. Relays may also send a bare
// JSON array of names.
type PresencePayload struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}
